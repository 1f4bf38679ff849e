package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/harukimoto/truerank/internal/store"
	"github.com/harukimoto/truerank/pkg/alert"
	"github.com/harukimoto/truerank/pkg/anime"
	"github.com/harukimoto/truerank/pkg/normalize"
	"github.com/harukimoto/truerank/pkg/rank"
)

type stubProvider struct {
	name  anime.ProviderType
	items []anime.Anime
	err   error
}

func (p *stubProvider) Name() anime.ProviderType { return p.name }

func (p *stubProvider) FetchTop(context.Context) ([]anime.Anime, error) {
	return p.items, p.err
}

type capturingNotifier struct {
	got *alert.Notification
}

func (c *capturingNotifier) Name() string { return "capture" }

func (c *capturingNotifier) Send(_ context.Context, n *alert.Notification) error {
	c.got = n
	return nil
}

func schedShow(id int64, year int, score float64) anime.Anime {
	return anime.Anime{
		ID:       id,
		Provider: anime.ProviderMAL,
		Title:    fmt.Sprintf("show-%d", id),
		Score:    score,
		ScoredBy: 50000,
		Year:     year,
		HasYear:  year != 0,
	}
}

func schedCatalog() []anime.Anime {
	items := []anime.Anime{
		schedShow(1, 2010, 7.0),
		schedShow(2, 2010, 7.5),
		schedShow(3, 2010, 8.0),
	}
	scores := []float64{6.0, 6.5, 7.0, 7.2, 7.4, 7.6, 7.8, 8.0, 8.5, 8.7}
	for i, s := range scores {
		items = append(items, schedShow(int64(100+i), 2015, s))
	}
	return items
}

func testConfig() normalize.Config {
	return normalize.Config{
		MinSampleSize: 5000,
		MinCohortSize: 10,
		BaselineStart: 2010,
		BaselineEnd:   2010,
	}
}

func TestNewDefaults(t *testing.T) {
	Convey("Given a scheduler built with zero values", t, func() {
		s := New(nil, nil, nil, alert.NewManager(nil), 0, 0, 0)

		Convey("Then the intervals and threshold fall back to defaults", func() {
			So(s.fetchInt, ShouldEqual, 6*time.Hour)
			So(s.rankInt, ShouldEqual, 12*time.Hour)
			So(s.minRankDelta, ShouldEqual, 10)
		})
	})
}

func TestFetchAll(t *testing.T) {
	Convey("Given providers with one healthy and one broken", t, func() {
		ctx := context.Background()
		st, err := store.New(filepath.Join(t.TempDir(), "truerank.db"))
		So(err, ShouldBeNil)
		Reset(func() { st.Close() })

		providers := []anime.Provider{
			&stubProvider{name: anime.ProviderMAL, items: []anime.Anime{
				schedShow(1, 2009, 9.09),
				schedShow(2, 2011, 9.05),
			}},
			&stubProvider{name: anime.ProviderAniList, err: errors.New("rate limited")},
		}
		s := New(st, providers, nil, alert.NewManager(nil), 0, 0, 0)

		Convey("When fetching", func() {
			s.fetchAll(ctx)

			Convey("Then the healthy provider's shows land in the store", func() {
				counts, err := st.CountByProvider(ctx)
				So(err, ShouldBeNil)
				So(counts[anime.ProviderMAL], ShouldEqual, 2)
				So(counts[anime.ProviderAniList], ShouldEqual, 0)
			})
		})
	})
}

func TestRankAndAlert(t *testing.T) {
	Convey("Given a seeded store and a capturing destination", t, func() {
		ctx := context.Background()
		st, err := store.New(filepath.Join(t.TempDir(), "truerank.db"))
		So(err, ShouldBeNil)
		Reset(func() { st.Close() })
		So(st.UpsertAll(ctx, schedCatalog()), ShouldBeNil)

		capture := &capturingNotifier{}
		engine := rank.NewEngine(st, testConfig(), false)
		s := New(st, nil, engine, alert.NewManager([]alert.Notifier{capture}), 0, 0, 0)

		Convey("When the first pass runs", func() {
			s.rankAndAlert(ctx)

			Convey("Then a run lands but nothing is alerted", func() {
				_, err := st.LatestRun(ctx)
				So(err, ShouldBeNil)
				So(capture.got, ShouldBeNil)
			})

			Convey("And a show surges before the second pass", func() {
				So(st.UpsertAll(ctx, []anime.Anime{schedShow(100, 2015, 9.5)}), ShouldBeNil)
				s.rankAndAlert(ctx)

				Convey("Then the surge is alerted as a mover", func() {
					So(capture.got, ShouldNotBeNil)
					So(capture.got.Movers, ShouldHaveLength, 1)
					So(capture.got.Movers[0].Key, ShouldEqual, "mal:100")
					So(capture.got.Movers[0].Delta, ShouldEqual, 12)
					So(capture.got.Movers[0].ToRank, ShouldEqual, 1)
				})
			})

			Convey("And nothing changes before the second pass", func() {
				s.rankAndAlert(ctx)

				Convey("Then no alert goes out", func() {
					So(capture.got, ShouldBeNil)
				})
			})
		})
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	Convey("Given a running scheduler", t, func() {
		st, err := store.New(filepath.Join(t.TempDir(), "truerank.db"))
		So(err, ShouldBeNil)
		Reset(func() { st.Close() })

		engine := rank.NewEngine(st, testConfig(), false)
		s := New(st, nil, engine, alert.NewManager(nil), time.Hour, time.Hour, 0)

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- s.Run(ctx) }()
			cancel()

			Convey("Then the loop returns the cancellation", func() {
				So(errors.Is(<-errCh, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
