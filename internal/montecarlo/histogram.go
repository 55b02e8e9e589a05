package montecarlo

import (
	"slices"

	"github.com/samber/lo"
)

// Histogram maps a trial total to how many trials produced it.
// Accumulation order is irrelevant; Sorted materializes an ordered view
// when a reducer needs one.
type Histogram map[int]int

// Bucket is one (value, count) pair of a sorted histogram.
type Bucket struct {
	Value int
	Count int
}

func (h Histogram) Add(v int) { h[v]++ }

// Merge adds every count of o into h.
func (h Histogram) Merge(o Histogram) {
	for v, c := range o {
		h[v] += c
	}
}

// Total is the sum of all counts.
func (h Histogram) Total() int {
	return lo.Sum(lo.Values(h))
}

// Sorted returns the non-empty buckets ordered by ascending value.
func (h Histogram) Sorted() []Bucket {
	out := make([]Bucket, 0, len(h))
	for v, c := range h {
		if c == 0 {
			continue
		}
		out = append(out, Bucket{Value: v, Count: c})
	}
	slices.SortFunc(out, func(a, b Bucket) int { return a.Value - b.Value })
	return out
}
