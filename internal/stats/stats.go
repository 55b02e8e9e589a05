package stats

import (
	"errors"
	"math"

	"github.com/xtding233/dicepool-tables/internal/montecarlo"
)

var ErrEmptyHistogram = errors.New("histogram is empty")

// Statistics summarizes one configuration's distribution.
type Statistics struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median int     `json:"median"`
	P25    int     `json:"percentile_25"`
	P75    int     `json:"percentile_75"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// Reduce computes summary statistics over total trials.
// Mean uses an integer numerator; StdDev is the population deviation;
// percentiles are nearest-rank.
func Reduce(h montecarlo.Histogram, total int) (Statistics, error) {
	buckets := h.Sorted()
	if len(buckets) == 0 || total <= 0 {
		return Statistics{}, ErrEmptyHistogram
	}

	var sum int64
	for _, b := range buckets {
		sum += int64(b.Value) * int64(b.Count)
	}
	mean := float64(sum) / float64(total)

	var acc float64
	for _, b := range buckets {
		d := float64(b.Value) - mean
		acc += float64(b.Count) * d * d
	}

	return Statistics{
		Mean:   mean,
		StdDev: math.Sqrt(acc / float64(total)),
		Median: percentile(buckets, total, 0.50),
		P25:    percentile(buckets, total, 0.25),
		P75:    percentile(buckets, total, 0.75),
		Min:    buckets[0].Value,
		Max:    buckets[len(buckets)-1].Value,
	}, nil
}

// percentile returns the first value whose running count reaches
// floor(total*p). buckets must be sorted ascending and non-empty.
func percentile(buckets []montecarlo.Bucket, total int, p float64) int {
	target := int(math.Floor(float64(total) * p))
	running := 0
	for _, b := range buckets {
		running += b.Count
		if running >= target {
			return b.Value
		}
	}
	return buckets[len(buckets)-1].Value
}

// Percentile is the exported nearest-rank percentile over a histogram.
func Percentile(h montecarlo.Histogram, total int, p float64) (int, error) {
	buckets := h.Sorted()
	if len(buckets) == 0 {
		return 0, ErrEmptyHistogram
	}
	return percentile(buckets, total, p), nil
}
