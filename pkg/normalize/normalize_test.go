package normalize_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/harukimoto/truerank/pkg/anime"
	normalize "github.com/harukimoto/truerank/pkg/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func mkShow(id int64, year int, score float64) anime.Anime {
	return anime.Anime{
		ID:       id,
		Provider: anime.ProviderMAL,
		Title:    fmt.Sprintf("show-%d", id),
		Score:    score,
		ScoredBy: 50000,
		Year:     year,
		HasYear:  true,
	}
}

func mkNoYear(id int64, score float64) anime.Anime {
	return anime.Anime{
		ID:       id,
		Provider: anime.ProviderMAL,
		Title:    fmt.Sprintf("show-%d", id),
		Score:    score,
		ScoredBy: 50000,
	}
}

func findRanked(ranked []normalize.Ranked, id int64) (normalize.Ranked, bool) {
	for _, r := range ranked {
		if r.ID == id {
			return r, true
		}
	}
	return normalize.Ranked{}, false
}

// baselineTrio is a minimal 2010 reference era with scores 7.0, 7.5, 8.0.
func baselineTrio() []anime.Anime {
	return []anime.Anime{
		mkShow(1, 2010, 7.0),
		mkShow(2, 2010, 7.5),
		mkShow(3, 2010, 8.0),
	}
}

func trioConfig() normalize.Config {
	return normalize.Config{
		MinCohortSize: normalize.DefaultMinCohortSize,
		BaselineStart: 2010,
		BaselineEnd:   2010,
	}
}

func TestRun_WorkedExample(t *testing.T) {
	Convey("Given a 2010 reference era and a full 2015 cohort", t, func() {
		// Eight 2015 shows score strictly below 8.5, the subject sits at
		// 8.5 and one more show sits above it, so the subject lands at the
		// cohort's 80th percentile.
		items := baselineTrio()
		for i, s := range []float64{6.0, 6.5, 7.0, 7.2, 7.4, 7.6, 7.8, 8.0, 8.5, 8.7} {
			items = append(items, mkShow(int64(100+i), 2015, s))
		}
		const subjectID = 108 // the 8.5 show

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then the subject maps onto the reference distribution", func() {
				subject, ok := findRanked(res.Ranked, subjectID)
				So(ok, ShouldBeTrue)
				So(subject.Percentile, ShouldEqual, 80.0)
				So(subject.AdjustedScore, ShouldEqual, 7.8)
				So(subject.Delta, ShouldEqual, -0.7)
				So(subject.Estimated, ShouldBeFalse)
			})

			Convey("And the run bookkeeping is consistent", func() {
				So(res.Ranked, ShouldHaveLength, 13)
				So(res.DroppedCount, ShouldEqual, 0)
				So(res.Baseline.Count, ShouldEqual, 3)
				So(res.Cohorts, ShouldContainKey, 2015)
				So(res.Cohorts, ShouldNotContainKey, 2010)
				// The 2010 trio is too small for a cohort of its own, so
				// those three shows went through the estimator.
				So(res.EstimatedCount, ShouldEqual, 3)
			})

			Convey("And nothing is adjusted above its original score", func() {
				for _, r := range res.Ranked {
					So(r.AdjustedScore, ShouldBeLessThanOrEqualTo, r.Score)
				}
			})
		})
	})
}

func TestRun_RanksArePermutation(t *testing.T) {
	Convey("Given a mixed collection", t, func() {
		items := baselineTrio()
		for i, s := range []float64{6.0, 6.5, 7.0, 7.2, 7.4, 7.6, 7.8, 8.0, 8.5, 8.7} {
			items = append(items, mkShow(int64(100+i), 2015, s))
		}
		items = append(items, mkNoYear(200, 9.0))

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then ranks are a strict 1..N permutation in score order", func() {
				for i, r := range res.Ranked {
					So(r.AdjustedRank, ShouldEqual, i+1)
					if i > 0 {
						So(res.Ranked[i-1].AdjustedScore, ShouldBeGreaterThanOrEqualTo, r.AdjustedScore)
					}
				}
			})
		})
	})
}

func TestRun_UnknownYear(t *testing.T) {
	Convey("Given a show with no release year", t, func() {
		items := baselineTrio()
		for i, s := range []float64{6.0, 6.5, 7.0, 7.2, 7.4, 7.6, 7.8, 8.0, 8.5, 8.7} {
			items = append(items, mkShow(int64(100+i), 2015, s))
		}
		items = append(items, mkNoYear(200, 9.0))

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then it is treated as a median member of the era", func() {
				subject, ok := findRanked(res.Ranked, 200)
				So(ok, ShouldBeTrue)
				So(subject.Percentile, ShouldEqual, 50.0)
				So(subject.AdjustedScore, ShouldEqual, 7.5) // baseline median
				So(subject.Delta, ShouldEqual, -1.5)
				So(subject.Estimated, ShouldBeFalse)
			})
		})
	})
}

func TestRun_StableTies(t *testing.T) {
	Convey("Given shows that normalize to the same adjusted score", t, func() {
		// Both year-less shows map to the baseline median 7.5, and so does
		// the 7.5 reference show itself.
		items := baselineTrio()
		items = append(items, mkNoYear(101, 9.2))
		items = append(items, mkNoYear(102, 9.0))

		Convey("When running a normalization pass twice", func() {
			first, err1 := normalize.Run(items, trioConfig())
			second, err2 := normalize.Run(items, trioConfig())
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)

			Convey("Then tied shows keep their input order", func() {
				trio, _ := findRanked(first.Ranked, 2)
				a, _ := findRanked(first.Ranked, 101)
				b, _ := findRanked(first.Ranked, 102)
				So(trio.AdjustedScore, ShouldEqual, 7.5)
				So(a.AdjustedScore, ShouldEqual, 7.5)
				So(b.AdjustedScore, ShouldEqual, 7.5)
				So(trio.AdjustedRank, ShouldEqual, 2)
				So(a.AdjustedRank, ShouldEqual, 3)
				So(b.AdjustedRank, ShouldEqual, 4)
			})

			Convey("And reruns over the same input agree rank for rank", func() {
				for i := range first.Ranked {
					So(second.Ranked[i].ID, ShouldEqual, first.Ranked[i].ID)
					So(second.Ranked[i].AdjustedRank, ShouldEqual, first.Ranked[i].AdjustedRank)
				}
			})
		})
	})
}

func TestRun_DirectionalPolicy(t *testing.T) {
	Convey("Given a show whose era value is above its own score", t, func() {
		items := baselineTrio()
		items = append(items, mkNoYear(300, 6.0)) // maps to median 7.5

		Convey("When increases are not allowed", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then the original score is the ceiling", func() {
				subject, _ := findRanked(res.Ranked, 300)
				So(subject.AdjustedScore, ShouldEqual, 6.0)
				So(subject.Delta, ShouldEqual, 0.0)
			})
		})

		Convey("When increases are allowed", func() {
			cfg := trioConfig()
			cfg.AllowIncreases = true
			res, err := normalize.Run(items, cfg)
			So(err, ShouldBeNil)

			Convey("Then the mapped value wins", func() {
				subject, _ := findRanked(res.Ranked, 300)
				So(subject.AdjustedScore, ShouldEqual, 7.5)
				So(subject.Delta, ShouldEqual, 1.5)
			})
		})
	})
}

func TestRun_TailCaps(t *testing.T) {
	Convey("Given a large cohort with members at the tail percentiles", t, func() {
		// One hundred distinct 2015 scores; member i has exactly i smaller
		// neighbors, so its cohort percentile is i.
		items := baselineTrio()
		for i := 0; i < 100; i++ {
			items = append(items, mkShow(int64(1000+i), 2015, 9.0+float64(i)*0.005))
		}
		// A lone 1995 show with a perfect score takes the estimator path
		// straight to the 100th percentile.
		items = append(items, mkShow(2000, 1995, 10.0))

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then percentiles below the caps map straight through", func() {
				r, _ := findRanked(res.Ranked, 1094)
				So(r.Percentile, ShouldEqual, 94.0)
				So(r.AdjustedScore, ShouldEqual, 7.94)
			})

			Convey("And the band from 95 is held at the era's 95th value", func() {
				at95, _ := findRanked(res.Ranked, 1095)
				So(at95.AdjustedScore, ShouldEqual, 7.95)

				at96, _ := findRanked(res.Ranked, 1096)
				So(at96.Percentile, ShouldEqual, 96.0)
				So(at96.AdjustedScore, ShouldEqual, 7.95)

				at98, _ := findRanked(res.Ranked, 1098)
				So(at98.AdjustedScore, ShouldEqual, 7.95)
			})

			Convey("And from 99 the looser cap at the era maximum applies", func() {
				at99, _ := findRanked(res.Ranked, 1099)
				So(at99.Percentile, ShouldEqual, 99.0)
				So(at99.AdjustedScore, ShouldEqual, 7.99)
			})

			Convey("And a perfect estimator score lands on the era maximum", func() {
				top, _ := findRanked(res.Ranked, 2000)
				So(top.Percentile, ShouldEqual, 100.0)
				So(top.Estimated, ShouldBeTrue)
				So(top.AdjustedScore, ShouldEqual, 8.0)
			})
		})
	})
}

func TestRun_CohortThreshold(t *testing.T) {
	Convey("Given a 2015 cohort one show short of the minimum", t, func() {
		items := baselineTrio()
		for i := 0; i < 9; i++ {
			items = append(items, mkShow(int64(400+i), 2015, 7.0+float64(i)*0.1))
		}

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then every member takes the estimator path", func() {
				for i := 0; i < 9; i++ {
					r, ok := findRanked(res.Ranked, int64(400+i))
					So(ok, ShouldBeTrue)
					So(r.Estimated, ShouldBeTrue)
				}
				So(res.Cohorts, ShouldNotContainKey, 2015)
			})
		})

		Convey("When a tenth member completes the cohort", func() {
			items = append(items, mkShow(409, 2015, 7.9))
			res, err := normalize.Run(items, trioConfig())
			So(err, ShouldBeNil)

			Convey("Then the cohort's real statistics take over", func() {
				So(res.Cohorts, ShouldContainKey, 2015)
				for i := 0; i < 10; i++ {
					r, _ := findRanked(res.Ranked, int64(400+i))
					So(r.Estimated, ShouldBeFalse)
				}
				// Only the undersized 2010 trio still estimates.
				So(res.EstimatedCount, ShouldEqual, 3)
			})
		})
	})
}

func TestRun_SampleFilter(t *testing.T) {
	Convey("Given shows with mixed rater counts", t, func() {
		obscure := mkShow(500, 2010, 9.9)
		obscure.ScoredBy = 120
		items := append(baselineTrio(), obscure)

		cfg := trioConfig()
		cfg.MinSampleSize = 5000

		Convey("When running with the sample-size filter on", func() {
			res, err := normalize.Run(items, cfg)
			So(err, ShouldBeNil)

			Convey("Then thinly rated shows are excluded up front", func() {
				_, ok := findRanked(res.Ranked, 500)
				So(ok, ShouldBeFalse)
				So(res.Ranked, ShouldHaveLength, 3)
				So(res.DroppedCount, ShouldEqual, 1)
				// The filter runs before the baseline is collected.
				So(res.Baseline.Count, ShouldEqual, 3)
			})
		})

		Convey("When the filter removes every show", func() {
			cfg.MinSampleSize = 10_000_000
			_, err := normalize.Run(items, cfg)

			Convey("Then the run fails as if the input were empty", func() {
				So(errors.Is(err, normalize.ErrEmptyInput), ShouldBeTrue)
			})
		})
	})
}

func TestRun_EmptyInput(t *testing.T) {
	Convey("Given no shows at all", t, func() {
		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(nil, normalize.DefaultConfig())

			Convey("Then it fails fast with the empty input error", func() {
				So(res, ShouldBeNil)
				So(errors.Is(err, normalize.ErrEmptyInput), ShouldBeTrue)
			})
		})
	})
}

func TestRun_EmptyBaseline(t *testing.T) {
	Convey("Given a reference era that matches no show", t, func() {
		items := []anime.Anime{
			mkShow(1, 2020, 7.1),
			mkShow(2, 2021, 7.9),
		}
		cfg := normalize.Config{BaselineStart: 2000, BaselineEnd: 2005}

		Convey("When running a normalization pass", func() {
			res, err := normalize.Run(items, cfg)

			Convey("Then the run refuses rather than degrade silently", func() {
				So(res, ShouldBeNil)
				So(errors.Is(err, normalize.ErrEmptyBaseline), ShouldBeTrue)
			})
		})
	})
}

func TestRunWithBaseline_Degenerate(t *testing.T) {
	Convey("Given an explicitly accepted degenerate baseline", t, func() {
		items := []anime.Anime{
			mkNoYear(1, 9.0),
			mkNoYear(2, 6.0),
			mkNoYear(3, 7.3),
		}
		b, err := normalize.NewBaseline(items, 2000, 2005)
		So(errors.Is(err, normalize.ErrEmptyBaseline), ShouldBeTrue)

		Convey("When running against it anyway", func() {
			res, err := normalize.RunWithBaseline(items, b, normalize.Config{})
			So(err, ShouldBeNil)

			Convey("Then every show maps to the fallback, floored by itself", func() {
				So(res.Baseline, ShouldEqual, b)
				high, _ := findRanked(res.Ranked, 1)
				low, _ := findRanked(res.Ranked, 2)
				exact, _ := findRanked(res.Ranked, 3)
				So(high.AdjustedScore, ShouldEqual, normalize.FallbackScore)
				So(low.AdjustedScore, ShouldEqual, 6.0)
				So(exact.AdjustedScore, ShouldEqual, normalize.FallbackScore)
			})
		})
	})
}
