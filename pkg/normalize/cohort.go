package normalize

import (
	"sort"

	"github.com/harukimoto/truerank/pkg/anime"
)

// snapshotLevels are the percentiles captured in cohort and baseline
// summaries, for diagnostics and the tail caps.
var snapshotLevels = []int{50, 75, 90, 95, 99, 100}

// CohortStats summarizes one release-year cohort's score distribution.
type CohortStats struct {
	Year     int             `json:"year"`
	Scores   []float64       `json:"-"` // ascending
	Count    int             `json:"count"`
	Median   float64         `json:"median"`
	Snapshot map[int]float64 `json:"percentiles"`
}

// BuildCohorts groups items by release year and computes per-cohort
// statistics. Items with no known year are skipped here; they take the
// fixed 50th-percentile path later. Cohorts with fewer than minSize members
// produce no entry, which is expected for sparse early years and the
// current season, not an error; their shows fall back to the estimator.
func BuildCohorts(items []anime.Anime, minSize int) map[int]CohortStats {
	if minSize <= 0 {
		minSize = DefaultMinCohortSize
	}

	byYear := make(map[int][]float64)
	for _, a := range items {
		if !a.HasYear {
			continue
		}
		byYear[a.Year] = append(byYear[a.Year], a.Score)
	}

	cohorts := make(map[int]CohortStats, len(byYear))
	for year, scores := range byYear {
		if len(scores) < minSize {
			continue
		}
		sort.Float64s(scores)
		med, _ := Median(scores) // non-empty by the size check
		cohorts[year] = CohortStats{
			Year:     year,
			Scores:   scores,
			Count:    len(scores),
			Median:   med,
			Snapshot: snapshot(scores),
		}
	}
	return cohorts
}

// snapshot captures the standard percentile levels of a sorted score array.
func snapshot(sorted []float64) map[int]float64 {
	snap := make(map[int]float64, len(snapshotLevels))
	for _, p := range snapshotLevels {
		snap[p] = ValueAtPercentile(sorted, float64(p))
	}
	return snap
}
