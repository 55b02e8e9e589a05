package stats

import (
	"maps"
	"slices"
	"strconv"

	"github.com/xtding233/dicepool-tables/internal/montecarlo"
)

// Cutoff is the smallest probability kept in a cumulative table. Entries at
// or below it are dropped: a missing threshold means "negligible", not zero.
const Cutoff = 1e-6

// Cumulative maps a threshold t to P(total >= t).
type Cumulative map[int]float64

// BuildCumulative turns a histogram into its survival table. The running
// tail is accumulated as an integer count, so the lowest observed value
// lands on exactly 1.0 and the table is monotone by construction.
// Threshold 0 is always present with probability 1.
func BuildCumulative(h montecarlo.Histogram, total int) (Cumulative, error) {
	buckets := h.Sorted()
	if len(buckets) == 0 || total <= 0 {
		return nil, ErrEmptyHistogram
	}
	out := make(Cumulative, len(buckets)+1)
	tail := 0
	for i := len(buckets) - 1; i >= 0; i-- {
		tail += buckets[i].Count
		p := float64(tail) / float64(total)
		if p > Cutoff {
			out[buckets[i].Value] = p
		}
	}
	out[0] = 1.0
	return out, nil
}

// Thresholds returns the table's keys in ascending order.
func (c Cumulative) Thresholds() []int {
	return slices.Sorted(maps.Keys(c))
}

// StringKeys renders thresholds as decimal strings for JSON objects.
func (c Cumulative) StringKeys() map[string]float64 {
	out := make(map[string]float64, len(c))
	for t, p := range c {
		out[strconv.Itoa(t)] = p
	}
	return out
}

// ParseCumulative is the inverse of StringKeys.
func ParseCumulative(m map[string]float64) (Cumulative, error) {
	out := make(Cumulative, len(m))
	for k, p := range m {
		t, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		out[t] = p
	}
	return out, nil
}

// AtLeast returns P(total >= tn) from the table: the exact entry when
// present, else the entry for the greatest threshold below tn. Anything at
// or below the smallest threshold is certain; anything above the largest
// fell under the cutoff.
func (c Cumulative) AtLeast(tn int) float64 {
	if p, ok := c[tn]; ok {
		return p
	}
	ts := c.Thresholds()
	if len(ts) == 0 || tn <= ts[0] {
		return 1.0
	}
	if tn > ts[len(ts)-1] {
		return 0.0
	}
	i, _ := slices.BinarySearch(ts, tn)
	return c[ts[i-1]]
}
