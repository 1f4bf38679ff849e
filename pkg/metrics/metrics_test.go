package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("Then it is created with all metrics wired", func() {
			So(m, ShouldNotBeNil)
			So(m.showsFetched, ShouldNotBeNil)
			So(m.rankRuns, ShouldNotBeNil)
			So(m.httpRequests, ShouldNotBeNil)
		})

		Convey("When recording on its metrics", func() {
			m.showsFetched.WithLabelValues("mal").Add(25)
			m.rankRuns.Inc()
			m.rankRuns.Inc()
			m.rankedShows.Set(120)
			m.fetchDuration.WithLabelValues("anilist").Observe(3.2)

			Convey("Then the values are observable through the registry", func() {
				So(testutil.ToFloat64(m.showsFetched.WithLabelValues("mal")), ShouldEqual, 25)
				So(testutil.ToFloat64(m.rankRuns), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rankedShows), ShouldEqual, 120)
				So(testutil.CollectAndCount(m.fetchDuration), ShouldEqual, 1)
			})
		})
	})

	Convey("Given custom naming options", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("testrank"),
			WithSubsystem("api"),
			WithHistogramBuckets([]float64{0.1, 1, 10}),
			WithPrometheusRegistry(registry),
		)
		m.rankRuns.Inc()

		Convey("Then metric names carry the namespace and subsystem", func() {
			count, err := testutil.GatherAndCount(registry, "testrank_api_rank_runs_total")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the process-wide metrics", t, func() {
		Convey("Then fetch metrics record without panicking", func() {
			So(func() {
				RecordFetched("mal", 25)
				RecordFetchError("anilist")
				ObserveFetchDuration("mal", 4.5)
			}, ShouldNotPanic)
		})

		Convey("Then ranking metrics record without panicking", func() {
			So(func() {
				RecordRankRun()
				RecordRankFailure()
				RecordDegenerateRun()
				ObserveRankDuration(0.8)
				UpdateRankedShows(120, 7, 3)
				UpdateStoredShows("mal", 500)
			}, ShouldNotPanic)
		})

		Convey("Then HTTP metrics record without panicking", func() {
			So(func() {
				RecordHTTPRequest("/api/v1/rankings", "GET", "200")
				RecordHTTPRequestDuration("/api/v1/rankings", "GET", "200", 0.012)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed for scraping", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
