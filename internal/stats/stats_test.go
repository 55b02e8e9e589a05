package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
)

func sample() montecarlo.Histogram {
	return montecarlo.Histogram{10: 100, 20: 200, 30: 100}
}

func TestReduce(t *testing.T) {
	s, err := Reduce(sample(), 400)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, s.Mean, 1e-12)
	// variance = (100*100 + 0 + 100*100) / 400 = 50
	assert.InDelta(t, math.Sqrt(50), s.StdDev, 1e-12)
	assert.Equal(t, 20, s.Median)
	assert.Equal(t, 10, s.P25)
	assert.Equal(t, 20, s.P75)
	assert.Equal(t, 10, s.Min)
	assert.Equal(t, 30, s.Max)
}

func TestReduceSingleValue(t *testing.T) {
	s, err := Reduce(montecarlo.Histogram{7: 5}, 5)
	require.NoError(t, err)
	assert.Equal(t, Statistics{Mean: 7, Median: 7, P25: 7, P75: 7, Min: 7, Max: 7}, s)
}

func TestReduceEmpty(t *testing.T) {
	_, err := Reduce(montecarlo.Histogram{}, 10)
	assert.ErrorIs(t, err, ErrEmptyHistogram)
}

func TestPercentileNearestRank(t *testing.T) {
	h := montecarlo.Histogram{1: 1, 2: 1, 3: 1, 4: 1}
	p, err := Percentile(h, 4, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, p)
	p, err = Percentile(h, 4, 0.75)
	require.NoError(t, err)
	assert.Equal(t, 3, p)
	p, err = Percentile(h, 4, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, p)
}

func TestBuildCumulative(t *testing.T) {
	c, err := BuildCumulative(sample(), 400)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c[0])
	assert.Equal(t, 1.0, c[10])
	assert.InDelta(t, 0.75, c[20], 1e-12)
	assert.InDelta(t, 0.25, c[30], 1e-12)
	assert.Equal(t, []int{0, 10, 20, 30}, c.Thresholds())
	assert.NoError(t, ValidateCumulative(c))
}

func TestBuildCumulativeCutoff(t *testing.T) {
	c, err := BuildCumulative(montecarlo.Histogram{10: 999_999, 100: 1}, 1_000_000)
	require.NoError(t, err)
	// exactly at the cutoff is dropped
	_, ok := c[100]
	assert.False(t, ok)
	assert.Equal(t, 1.0, c[10])
	assert.Equal(t, 1.0, c[0])

	c, err = BuildCumulative(montecarlo.Histogram{10: 999_998, 100: 2}, 1_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 2e-6, c[100], 1e-15)
}

func TestCumulativeAtLeast(t *testing.T) {
	c := Cumulative{0: 1, 10: 1, 20: 0.75, 30: 0.25}
	assert.Equal(t, 0.75, c.AtLeast(20))
	assert.Equal(t, 0.75, c.AtLeast(25))
	assert.Equal(t, 1.0, c.AtLeast(-3))
	assert.Equal(t, 0.0, c.AtLeast(31))
}

func TestStringKeysRoundTrip(t *testing.T) {
	c := Cumulative{0: 1, 12: 0.5}
	m := c.StringKeys()
	assert.Equal(t, map[string]float64{"0": 1, "12": 0.5}, m)
	back, err := ParseCumulative(m)
	require.NoError(t, err)
	assert.Equal(t, c, back)

	_, err = ParseCumulative(map[string]float64{"x": 1})
	assert.Error(t, err)
}

func TestValidateHistogram(t *testing.T) {
	assert.NoError(t, ValidateHistogram(sample(), 400))

	err := ValidateHistogram(sample(), 500)
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "histogram", inv.Check)
	assert.Contains(t, err.Error(), "400 != 500")

	assert.Error(t, ValidateHistogram(montecarlo.Histogram{1: -1, 2: 2}, 1))
	assert.Error(t, ValidateHistogram(sample(), 0))
}

func TestValidateCumulative(t *testing.T) {
	assert.NoError(t, ValidateCumulative(Cumulative{0: 1, 10: 1, 20: 0.75, 30: 0.25}))

	err := ValidateCumulative(Cumulative{0: 1, 10: 0.5, 20: 0.75})
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 20, inv.Threshold)

	// within tolerance
	assert.NoError(t, ValidateCumulative(Cumulative{0: 1, 10: 0.5, 20: 0.5 + 1e-12}))

	assert.Error(t, ValidateCumulative(Cumulative{0: 1, 5: -0.1}))
	assert.Error(t, ValidateCumulative(Cumulative{0: 1.5}))
}
