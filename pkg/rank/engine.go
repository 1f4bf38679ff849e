// Package rank ties the store and the normalization core together: load the
// stored shows, run a pass, persist the outcome as a run.
package rank

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/harukimoto/truerank/internal/store"
	"github.com/harukimoto/truerank/pkg/metrics"
	"github.com/harukimoto/truerank/pkg/normalize"
)

// rankWindow caps how many stored shows a pass loads. Provider top lists
// stay far below this.
const rankWindow = 10000

// Engine runs normalization passes against the store.
type Engine struct {
	store           store.Store
	cfg             normalize.Config
	allowDegenerate bool
}

// NewEngine creates a ranking engine. With allowDegenerate set, a baseline
// era that matches no stored show degrades to the flat fallback distribution
// instead of failing the pass.
func NewEngine(s store.Store, cfg normalize.Config, allowDegenerate bool) *Engine {
	return &Engine{store: s, cfg: cfg, allowDegenerate: allowDegenerate}
}

// Rank loads every stored show, normalizes the scores and persists the
// result. The returned run is already saved.
func (e *Engine) Rank(ctx context.Context) (*store.Run, *normalize.Result, error) {
	items, err := e.store.ListAnime(ctx, store.ListOpts{Limit: rankWindow})
	if err != nil {
		return nil, nil, fmt.Errorf("load shows: %w", err)
	}

	start := time.Now()
	res, err := normalize.Run(items, e.cfg)
	if err != nil && errors.Is(err, normalize.ErrEmptyBaseline) && e.allowDegenerate {
		baseline, _ := normalize.NewBaseline(items, e.cfg.BaselineStart, e.cfg.BaselineEnd)
		res, err = normalize.RunWithBaseline(items, baseline, e.cfg)
	}
	if err != nil {
		metrics.RecordRankFailure()
		return nil, nil, err
	}

	run, rankings, cohorts := store.RowsFromResult(res, e.cfg, time.Now().UTC())
	if err := e.store.SaveRun(ctx, run, rankings, cohorts); err != nil {
		metrics.RecordRankFailure()
		return nil, nil, fmt.Errorf("save run %s: %w", run.ID, err)
	}

	if run.Degenerate {
		fmt.Fprintf(os.Stderr, "WARNING: baseline %s matched no shows, run %s uses the fallback distribution\n",
			run.BaselineLabel(), run.ID)
		metrics.RecordDegenerateRun()
	}
	metrics.RecordRankRun()
	metrics.ObserveRankDuration(time.Since(start).Seconds())
	metrics.UpdateRankedShows(len(res.Ranked), res.EstimatedCount, res.DroppedCount)

	return run, res, nil
}
