// Package scheduler drives the periodic pipeline in daemon mode: pull the
// provider top lists, re-rank the stored catalog and notify on big movers.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/harukimoto/truerank/internal/store"
	"github.com/harukimoto/truerank/pkg/alert"
	"github.com/harukimoto/truerank/pkg/anime"
	"github.com/harukimoto/truerank/pkg/metrics"
	"github.com/harukimoto/truerank/pkg/rank"
)

// Scheduler runs periodic fetches and normalization passes.
type Scheduler struct {
	store        store.Store
	providers    []anime.Provider
	engine       *rank.Engine
	alertMgr     *alert.Manager
	fetchInt     time.Duration
	rankInt      time.Duration
	minRankDelta int
}

// New creates a new scheduler.
func New(
	s store.Store,
	providers []anime.Provider,
	engine *rank.Engine,
	alertMgr *alert.Manager,
	fetchInt, rankInt time.Duration,
	minRankDelta int,
) *Scheduler {
	if fetchInt == 0 {
		fetchInt = 6 * time.Hour
	}
	if rankInt == 0 {
		rankInt = 12 * time.Hour
	}
	if minRankDelta == 0 {
		minRankDelta = 10
	}
	return &Scheduler{
		store:        s,
		providers:    providers,
		engine:       engine,
		alertMgr:     alertMgr,
		fetchInt:     fetchInt,
		rankInt:      rankInt,
		minRankDelta: minRankDelta,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	fetchTicker := time.NewTicker(s.fetchInt)
	rankTicker := time.NewTicker(s.rankInt)
	defer fetchTicker.Stop()
	defer rankTicker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial fetch...")
	s.fetchAll(ctx)
	fmt.Fprintln(os.Stderr, "scheduler: initial ranking...")
	s.rankAndAlert(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (fetch every %s, rank every %s)\n",
		s.fetchInt, s.rankInt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-fetchTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: fetching...")
			s.fetchAll(ctx)
		case <-rankTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: ranking...")
			s.rankAndAlert(ctx)
		}
	}
}

func (s *Scheduler) fetchAll(ctx context.Context) {
	total := 0
	for _, p := range s.providers {
		name := string(p.Name())
		start := time.Now()
		items, err := p.FetchTop(ctx)
		if err != nil {
			metrics.RecordFetchError(name)
			fmt.Fprintf(os.Stderr, "  %s error: %v\n", name, err)
			continue
		}
		metrics.ObserveFetchDuration(name, time.Since(start).Seconds())

		if err := s.store.UpsertAll(ctx, items); err != nil {
			fmt.Fprintf(os.Stderr, "  %s store error: %v\n", name, err)
			continue
		}
		metrics.RecordFetched(name, len(items))
		fmt.Fprintf(os.Stderr, "  %s: %d shows\n", name, len(items))
		total += len(items)
	}
	fmt.Fprintf(os.Stderr, "  total: %d shows\n", total)

	if counts, err := s.store.CountByProvider(ctx); err == nil {
		for _, provider := range anime.AllProviderTypes() {
			metrics.UpdateStoredShows(string(provider), counts[provider])
		}
	}
}

func (s *Scheduler) rankAndAlert(ctx context.Context) {
	// Capture the standing order before the new run replaces it.
	var prevDetails []store.RankingDetail
	if prev, err := s.store.LatestRun(ctx); err == nil {
		prevDetails, _ = s.store.ListRankings(ctx, prev.ID, 0)
	}

	run, res, err := s.engine.Rank(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ranking error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  run %s: %d shows (%d estimated, %d dropped)\n",
		run.ID, len(res.Ranked), res.EstimatedCount, res.DroppedCount)

	if !s.alertMgr.HasNotifiers() || len(prevDetails) == 0 {
		return
	}

	currDetails, err := s.store.ListRankings(ctx, run.ID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  mover check error: %v\n", err)
		return
	}

	movers := alert.Movers(prevDetails, currDetails, s.minRankDelta)
	if len(movers) == 0 {
		return
	}

	n := alert.BuildNotification(run, movers, s.minRankDelta)
	if err := s.alertMgr.Broadcast(ctx, n); err != nil {
		fmt.Fprintf(os.Stderr, "  alert error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  alerted: %d mover(s)\n", len(movers))
}
