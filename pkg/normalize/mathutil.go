package normalize

import (
	"math"
	"sort"
)

// Median returns the middle value of xs for odd lengths and the mean of the
// two central values for even lengths. The input is copied before sorting.
// An empty slice returns ErrEmptyInput rather than a silent zero.
func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptyInput
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	half := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[half], nil
	}
	return (sorted[half-1] + sorted[half]) / 2, nil
}

// PercentileOfValue returns 100 * count(s < v) / N for an ascending slice.
// The scan stops at the first entry >= v, so boundary ties are excluded
// from the count and the minimum of the set maps to percentile 0.
func PercentileOfValue(sorted []float64, v float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	below := 0
	for _, s := range sorted {
		if s >= v {
			break
		}
		below++
	}
	return 100 * float64(below) / float64(len(sorted))
}

// ValueAtPercentile returns the value at percentile p of an ascending slice
// using linear interpolation between the two nearest ranks. p is clamped to
// [0,100] before the position is computed; clamping after would change the
// tail values.
func ValueAtPercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// EstimatePercentile maps a raw 0-10 score to an approximate percentile.
// Used only for shows whose release-year cohort is too small to carry real
// statistics. The breakpoints and slopes are fixed policy constants, not a
// fitted distribution. A score above 10 would nominally exceed 100; the
// 0-10 score bound makes that unreachable, so no upper clamp is applied.
func EstimatePercentile(score float64) float64 {
	switch {
	case score < 6.5:
		return score / 6.5 * 15
	case score < 7.0:
		return 15 + (score-6.5)/0.5*15
	case score < 7.5:
		return 30 + (score-7.0)/0.5*20
	case score < 8.0:
		return 50 + (score-7.5)/0.5*20
	case score < 8.5:
		return 70 + (score-8.0)/0.5*15
	default:
		return 85 + (score-8.5)/1.5*15
	}
}
