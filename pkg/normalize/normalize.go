// Package normalize renormalizes anime scores collected across release
// years onto one baseline era's score distribution, so that a 2005 show and
// a 2024 show can be compared under the same standard. Each show is placed
// at a percentile inside its own release-year cohort, that percentile is
// looked up in the baseline distribution, tail caps and the directional
// policy are applied, and the collection is re-ranked by adjusted score.
package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/harukimoto/truerank/pkg/anime"
)

// Algorithm names the normalization scheme recorded with every run.
const Algorithm = "cohort-percentile-v1"

// Defaults for the shipped configuration.
const (
	DefaultMinSampleSize = 5000
	DefaultMinCohortSize = 10
	DefaultBaselineStart = 2000
	DefaultBaselineEnd   = 2015
)

// Config carries the normalization knobs. It is a plain immutable value
// threaded into Run; there is no package-level policy state, so two runs
// with different policies can coexist in one process.
type Config struct {
	// MinSampleSize drops shows rated by fewer people than this before
	// anything else happens. Zero keeps everything.
	MinSampleSize int
	// MinCohortSize is how many members a release-year cohort needs before
	// its real distribution is trusted over the heuristic estimator.
	MinCohortSize int
	// BaselineStart and BaselineEnd bound the reference era, inclusive.
	BaselineStart int
	BaselineEnd   int
	// AllowIncreases permits adjusted scores above the original. Off by
	// default: normalization corrects inflation, it does not hand out
	// points.
	AllowIncreases bool
}

// DefaultConfig returns the shipped normalization settings.
func DefaultConfig() Config {
	return Config{
		MinSampleSize: DefaultMinSampleSize,
		MinCohortSize: DefaultMinCohortSize,
		BaselineStart: DefaultBaselineStart,
		BaselineEnd:   DefaultBaselineEnd,
	}
}

// Ranked is an input show plus its renormalized score and standing.
type Ranked struct {
	anime.Anime
	AdjustedScore float64 `json:"adjusted_score"`
	AdjustedRank  int     `json:"adjusted_rank"`
	Delta         float64 `json:"delta"`
	Percentile    float64 `json:"percentile"`
	Estimated     bool    `json:"estimated"`
}

// Result is the complete output of one normalization run. Everything in it
// belongs to that run alone and is rebuilt from scratch next time.
type Result struct {
	Ranked         []Ranked
	Cohorts        map[int]CohortStats
	Baseline       *Baseline
	EstimatedCount int
	DroppedCount   int
}

// Run executes a full normalization pass: sample-size filter, cohort
// statistics, baseline construction, per-show remapping, re-rank. It either
// returns a complete consistent Result or an error with no partial output.
// A baseline range that matches no items fails with ErrEmptyBaseline;
// callers that want the degenerate fallback anyway can build it with
// NewBaseline and hand it to RunWithBaseline.
func Run(items []anime.Anime, cfg Config) (*Result, error) {
	kept, dropped, err := filterBySamples(items, cfg.MinSampleSize)
	if err != nil {
		return nil, err
	}

	baseline, err := NewBaseline(kept, cfg.BaselineStart, cfg.BaselineEnd)
	if err != nil {
		return nil, fmt.Errorf("baseline %d-%d: %w", cfg.BaselineStart, cfg.BaselineEnd, err)
	}

	res := adjust(kept, BuildCohorts(kept, cfg.MinCohortSize), baseline, cfg)
	res.DroppedCount = dropped
	return res, nil
}

// RunWithBaseline runs the same pass against a caller-supplied baseline.
// This is the opt-in path for degenerate baselines and for replaying a run
// against a frozen reference distribution.
func RunWithBaseline(items []anime.Anime, baseline *Baseline, cfg Config) (*Result, error) {
	kept, dropped, err := filterBySamples(items, cfg.MinSampleSize)
	if err != nil {
		return nil, err
	}

	res := adjust(kept, BuildCohorts(kept, cfg.MinCohortSize), baseline, cfg)
	res.DroppedCount = dropped
	return res, nil
}

func filterBySamples(items []anime.Anime, minSamples int) ([]anime.Anime, int, error) {
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("normalize: %w", ErrEmptyInput)
	}

	kept := make([]anime.Anime, 0, len(items))
	for _, a := range items {
		if a.ScoredBy < minSamples {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil, 0, fmt.Errorf("normalize: no show has %d or more raters: %w", minSamples, ErrEmptyInput)
	}
	return kept, len(items) - len(kept), nil
}

// adjust is the central transform described in the package comment. The
// caps at the 95th and 99th cohort percentiles are ceilings only; they
// never raise a value. The directional clamp runs after the caps.
func adjust(items []anime.Anime, cohorts map[int]CohortStats, baseline *Baseline, cfg Config) *Result {
	ranked := make([]Ranked, len(items))
	estimated := 0

	for i, a := range items {
		p, est := percentileInCohort(a, cohorts)
		if est {
			estimated++
		}

		adjusted := baseline.At(p)
		switch {
		case p >= 99:
			adjusted = math.Min(adjusted, baseline.Max())
		case p >= 95:
			adjusted = math.Min(adjusted, baseline.P95())
		}

		if !cfg.AllowIncreases {
			adjusted = math.Min(adjusted, a.Score)
		}
		adjusted = round2(adjusted)

		ranked[i] = Ranked{
			Anime:         a,
			AdjustedScore: adjusted,
			Delta:         round2(adjusted - a.Score),
			Percentile:    p,
			Estimated:     est,
		}
	}

	// Stable sort: shows with equal adjusted scores keep their input order,
	// so the rank assignment is deterministic across reruns.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AdjustedScore > ranked[j].AdjustedScore
	})
	for i := range ranked {
		ranked[i].AdjustedRank = i + 1
	}

	return &Result{
		Ranked:         ranked,
		Cohorts:        cohorts,
		Baseline:       baseline,
		EstimatedCount: estimated,
	}
}

// percentileInCohort places one show inside its release-year cohort. The
// second return reports whether the heuristic estimator supplied the value.
func percentileInCohort(a anime.Anime, cohorts map[int]CohortStats) (float64, bool) {
	if !a.HasYear {
		// No cohort to compare against; treat as a median member.
		return 50.0, false
	}
	if stats, ok := cohorts[a.Year]; ok {
		return PercentileOfValue(stats.Scores, a.Score), false
	}
	return EstimatePercentile(a.Score), true
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
