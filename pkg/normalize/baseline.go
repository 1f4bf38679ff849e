package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/harukimoto/truerank/pkg/anime"
)

const (
	// lookupSteps is the grid size of the percentile lookup table:
	// 0.0 through 100.0 in 0.1 steps.
	lookupSteps = 1001

	// FallbackScore seeds a degenerate baseline when the configured year
	// range matches nothing, so an opted-in run can still produce output.
	FallbackScore = 7.30
)

// Baseline is the reference score distribution every cohort is mapped onto,
// plus a fixed-resolution percentile lookup table. It is rebuilt whole for
// each run; nothing patches it in place.
type Baseline struct {
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Scores     []float64       `json:"-"` // ascending
	Count      int             `json:"count"`
	Median     float64         `json:"median"`
	Snapshot   map[int]float64 `json:"percentiles"`
	Degenerate bool            `json:"degenerate"`

	table [lookupSteps]float64
}

// NewBaseline collects the scores of items whose release year falls inside
// [start, end] inclusive and precomputes the lookup table at every 0.1
// percentile step. When the range matches no items it returns a degenerate
// baseline (every percentile maps to FallbackScore) together with
// ErrEmptyBaseline; the caller decides whether that is fatal.
func NewBaseline(items []anime.Anime, start, end int) (*Baseline, error) {
	b := &Baseline{Start: start, End: end}

	var scores []float64
	for _, a := range items {
		if a.HasYear && a.Year >= start && a.Year <= end {
			scores = append(scores, a.Score)
		}
	}

	if len(scores) == 0 {
		b.Degenerate = true
		b.Median = FallbackScore
		b.Snapshot = make(map[int]float64, len(snapshotLevels))
		for _, p := range snapshotLevels {
			b.Snapshot[p] = FallbackScore
		}
		for i := range b.table {
			b.table[i] = FallbackScore
		}
		return b, ErrEmptyBaseline
	}

	sort.Float64s(scores)
	b.Scores = scores
	b.Count = len(scores)
	b.Median, _ = Median(scores)
	b.Snapshot = snapshot(scores)
	for i := range b.table {
		b.table[i] = ValueAtPercentile(scores, float64(i)/10)
	}
	return b, nil
}

// At returns the baseline score at percentile p. The query is rounded to
// the nearest 0.1 grid point; anything outside the grid falls back to
// direct interpolation.
func (b *Baseline) At(p float64) float64 {
	idx := int(math.Round(p * 10))
	if idx >= 0 && idx < lookupSteps {
		return b.table[idx]
	}
	if b.Degenerate {
		return FallbackScore
	}
	return ValueAtPercentile(b.Scores, p)
}

// Max returns the 100th-percentile value, the hard ceiling applied to items
// at or above the 99th percentile of their own cohort.
func (b *Baseline) Max() float64 { return b.Snapshot[100] }

// P95 returns the 95th-percentile value, the softer ceiling for items at or
// above the 95th percentile of their own cohort.
func (b *Baseline) P95() float64 { return b.Snapshot[95] }

// RangeLabel describes the baseline years for run metadata and reports.
func (b *Baseline) RangeLabel() string {
	if b.Start == b.End {
		return fmt.Sprintf("%d", b.Start)
	}
	return fmt.Sprintf("%d-%d", b.Start, b.End)
}
