package normalize_test

import (
	"testing"

	normalize "github.com/harukimoto/truerank/pkg/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMedian(t *testing.T) {
	Convey("Given score slices of various shapes", t, func() {
		Convey("When the slice has an odd length", func() {
			m, err := normalize.Median([]float64{8.1, 6.3, 7.2})

			Convey("Then it should return the middle value", func() {
				So(err, ShouldBeNil)
				So(m, ShouldEqual, 7.2)
			})
		})

		Convey("When the slice has an even length", func() {
			m, err := normalize.Median([]float64{8.0, 2.0, 6.0, 4.0})

			Convey("Then it should return the mean of the two central values", func() {
				So(err, ShouldBeNil)
				So(m, ShouldEqual, 5.0)
			})
		})

		Convey("When the slice has a single element", func() {
			m, err := normalize.Median([]float64{7.5})

			Convey("Then it should return that element", func() {
				So(err, ShouldBeNil)
				So(m, ShouldEqual, 7.5)
			})
		})

		Convey("When the slice is empty", func() {
			_, err := normalize.Median(nil)

			Convey("Then it should return the empty input error", func() {
				So(err, ShouldEqual, normalize.ErrEmptyInput)
			})
		})

		Convey("When the input is unsorted", func() {
			input := []float64{9.0, 1.0, 5.0}
			m, err := normalize.Median(input)

			Convey("Then it should sort a copy and leave the input alone", func() {
				So(err, ShouldBeNil)
				So(m, ShouldEqual, 5.0)
				So(input[0], ShouldEqual, 9.0)
				So(input[1], ShouldEqual, 1.0)
				So(input[2], ShouldEqual, 5.0)
			})
		})
	})
}

func TestPercentileOfValue(t *testing.T) {
	Convey("Given an ascending score slice", t, func() {
		sorted := []float64{1.0, 2.0, 3.0, 4.0, 5.0}

		Convey("When the value sits inside the distribution", func() {
			p := normalize.PercentileOfValue(sorted, 3.0)

			Convey("Then it should count strictly smaller entries only", func() {
				So(p, ShouldEqual, 40.0)
			})
		})

		Convey("When the value equals the minimum", func() {
			Convey("Then nothing is below it", func() {
				So(normalize.PercentileOfValue(sorted, 1.0), ShouldEqual, 0.0)
			})
		})

		Convey("When the value is below every entry", func() {
			Convey("Then the percentile is zero", func() {
				So(normalize.PercentileOfValue(sorted, 0.5), ShouldEqual, 0.0)
			})
		})

		Convey("When the value is above every entry", func() {
			Convey("Then the percentile is one hundred", func() {
				So(normalize.PercentileOfValue(sorted, 6.0), ShouldEqual, 100.0)
			})
		})

		Convey("When the distribution is all duplicates of the value", func() {
			Convey("Then ties do not count as below", func() {
				So(normalize.PercentileOfValue([]float64{5, 5, 5, 5}, 5.0), ShouldEqual, 0.0)
			})
		})

		Convey("When the slice is empty", func() {
			Convey("Then the percentile is zero", func() {
				So(normalize.PercentileOfValue(nil, 7.0), ShouldEqual, 0.0)
			})
		})
	})
}

func TestValueAtPercentile(t *testing.T) {
	Convey("Given an ascending score slice", t, func() {
		sorted := []float64{7.0, 7.5, 8.0}

		Convey("When the percentile lands between two ranks", func() {
			v := normalize.ValueAtPercentile(sorted, 80.0)

			Convey("Then it should interpolate linearly", func() {
				// pos = 0.8 * 2 = 1.6, so 40% of 7.5 plus 60% of 8.0.
				So(v, ShouldAlmostEqual, 7.8)
			})
		})

		Convey("When the percentile lands exactly on a rank", func() {
			So(normalize.ValueAtPercentile(sorted, 50.0), ShouldAlmostEqual, 7.5)
		})

		Convey("When the percentile is at the extremes", func() {
			So(normalize.ValueAtPercentile(sorted, 0.0), ShouldEqual, 7.0)
			So(normalize.ValueAtPercentile(sorted, 100.0), ShouldEqual, 8.0)
		})

		Convey("When the percentile is out of range", func() {
			Convey("Then it should clamp before computing the position", func() {
				So(normalize.ValueAtPercentile(sorted, -20.0), ShouldEqual, 7.0)
				So(normalize.ValueAtPercentile(sorted, 150.0), ShouldEqual, 8.0)
			})
		})

		Convey("When the slice has a single element", func() {
			Convey("Then every percentile returns that element", func() {
				So(normalize.ValueAtPercentile([]float64{9.1}, 0), ShouldEqual, 9.1)
				So(normalize.ValueAtPercentile([]float64{9.1}, 50), ShouldEqual, 9.1)
				So(normalize.ValueAtPercentile([]float64{9.1}, 100), ShouldEqual, 9.1)
			})
		})

		Convey("When the slice is empty", func() {
			So(normalize.ValueAtPercentile(nil, 50.0), ShouldEqual, 0.0)
		})

		Convey("When interpolating an even-length slice", func() {
			v := normalize.ValueAtPercentile([]float64{1, 2, 3, 4}, 50.0)

			Convey("Then the midpoint falls between the central ranks", func() {
				So(v, ShouldAlmostEqual, 2.5)
			})
		})
	})
}

func TestEstimatePercentile(t *testing.T) {
	Convey("Given the piecewise score-to-percentile estimator", t, func() {
		Convey("When the score is in the bottom band", func() {
			So(normalize.EstimatePercentile(0.0), ShouldEqual, 0.0)
			So(normalize.EstimatePercentile(3.25), ShouldAlmostEqual, 7.5)
		})

		Convey("When the score sits on a band boundary", func() {
			Convey("Then each boundary maps to its anchor percentile", func() {
				So(normalize.EstimatePercentile(6.5), ShouldAlmostEqual, 15.0)
				So(normalize.EstimatePercentile(7.0), ShouldAlmostEqual, 30.0)
				So(normalize.EstimatePercentile(7.5), ShouldAlmostEqual, 50.0)
				So(normalize.EstimatePercentile(8.0), ShouldAlmostEqual, 70.0)
				So(normalize.EstimatePercentile(8.5), ShouldAlmostEqual, 85.0)
			})
		})

		Convey("When the score is inside a band", func() {
			So(normalize.EstimatePercentile(6.75), ShouldAlmostEqual, 22.5)
			So(normalize.EstimatePercentile(7.25), ShouldAlmostEqual, 40.0)
			So(normalize.EstimatePercentile(8.25), ShouldAlmostEqual, 77.5)
			So(normalize.EstimatePercentile(9.25), ShouldAlmostEqual, 92.5)
		})

		Convey("When the score is a perfect ten", func() {
			So(normalize.EstimatePercentile(10.0), ShouldAlmostEqual, 100.0)
		})

		Convey("When scanning the whole score range", func() {
			Convey("Then the mapping never decreases", func() {
				prev := -1.0
				for s := 0.0; s <= 10.0; s += 0.05 {
					p := normalize.EstimatePercentile(s)
					So(p, ShouldBeGreaterThanOrEqualTo, prev)
					prev = p
				}
			})
		})
	})
}
