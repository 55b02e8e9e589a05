package stats

import (
	"fmt"
	"math"

	"github.com/xtding233/dicepool-tables/internal/montecarlo"
)

// Tolerance absorbs float rounding in the validators.
const Tolerance = 1e-9

// InvariantError reports a distribution that must not be published.
type InvariantError struct {
	Check     string // "histogram" or "cumulative"
	Threshold int    // offending threshold, cumulative checks only
	Reason    string
}

func (e *InvariantError) Error() string {
	if e.Check == "cumulative" {
		return fmt.Sprintf("cumulative invariant violated at threshold %d: %s", e.Threshold, e.Reason)
	}
	return fmt.Sprintf("%s invariant violated: %s", e.Check, e.Reason)
}

// ValidateHistogram checks that counts sum to total exactly and that the
// implied probabilities sum to 1.
func ValidateHistogram(h montecarlo.Histogram, total int) error {
	if total <= 0 {
		return &InvariantError{Check: "histogram", Reason: fmt.Sprintf("total trials %d must be positive", total)}
	}
	sum := 0
	var prob float64
	for v, c := range h {
		if c < 0 {
			return &InvariantError{Check: "histogram", Reason: fmt.Sprintf("negative count %d at value %d", c, v)}
		}
		sum += c
		prob += float64(c) / float64(total)
	}
	if sum != total {
		return &InvariantError{Check: "histogram", Reason: fmt.Sprintf("count sum mismatch: %d != %d", sum, total)}
	}
	if math.Abs(prob-1.0) > Tolerance {
		return &InvariantError{Check: "histogram", Reason: fmt.Sprintf("probability sum not 1.0: %v", prob)}
	}
	return nil
}

// ValidateCumulative checks that probabilities stay within [0,1] and never
// rise as the threshold rises.
func ValidateCumulative(c Cumulative) error {
	prev := 1.0
	for _, t := range c.Thresholds() {
		p := c[t]
		if math.IsNaN(p) || p < -Tolerance || p > 1.0+Tolerance {
			return &InvariantError{Check: "cumulative", Threshold: t, Reason: fmt.Sprintf("probability %v outside [0,1]", p)}
		}
		if p > prev+Tolerance {
			return &InvariantError{Check: "cumulative", Threshold: t, Reason: fmt.Sprintf("non-monotonic: %v > %v", p, prev)}
		}
		prev = p
	}
	return nil
}
