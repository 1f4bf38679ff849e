// Package alert reports big rank movers after a re-rank. It compares the
// latest run against the previous one and pushes a digest to the configured
// destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/harukimoto/truerank/internal/store"
)

// Mover is one show whose adjusted rank changed enough to report.
type Mover struct {
	Key           string  `json:"key"`
	Title         string  `json:"title"`
	URL           string  `json:"url,omitempty"`
	FromRank      int     `json:"from_rank"`
	ToRank        int     `json:"to_rank"`
	Delta         int     `json:"delta"`
	AdjustedScore float64 `json:"adjusted_score"`
}

// Movement renders the rank change as an arrow label.
func (m Mover) Movement() string {
	if m.Delta > 0 {
		return fmt.Sprintf("↑%d", m.Delta)
	}
	return fmt.Sprintf("↓%d", -m.Delta)
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Baseline string  `json:"baseline"`
	RunID    string  `json:"run_id"`
	Movers   []Mover `json:"movers"`
}

// Movers compares two runs and returns shows whose adjusted rank moved by
// at least minDelta places, biggest movement first. Delta is positive when
// a show climbed. Shows present in only one of the runs are skipped.
func Movers(prev, curr []store.RankingDetail, minDelta int) []Mover {
	if minDelta < 1 {
		minDelta = 1
	}
	prevRank := make(map[string]int, len(prev))
	for _, d := range prev {
		prevRank[d.AnimeKey] = d.AdjustedRank
	}

	var movers []Mover
	for _, d := range curr {
		from, ok := prevRank[d.AnimeKey]
		if !ok {
			continue
		}
		delta := from - d.AdjustedRank
		if delta >= minDelta || delta <= -minDelta {
			movers = append(movers, Mover{
				Key:           d.AnimeKey,
				Title:         d.Title,
				URL:           d.URL,
				FromRank:      from,
				ToRank:        d.AdjustedRank,
				Delta:         delta,
				AdjustedScore: d.AdjustedScore,
			})
		}
	}

	sort.SliceStable(movers, func(i, j int) bool {
		return abs(movers[i].Delta) > abs(movers[j].Delta)
	})
	return movers
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// BuildNotification summarizes movers for delivery.
func BuildNotification(run *store.Run, movers []Mover, minDelta int) *Notification {
	return &Notification{
		Title:    fmt.Sprintf("%d big mover(s) in the anime ranking", len(movers)),
		Body:     fmt.Sprintf("Re-rank of %d shows against baseline %s moved %d of them by %d or more places.", run.ItemCount, run.BaselineLabel(), len(movers), minDelta),
		Baseline: run.BaselineLabel(),
		RunID:    run.ID,
		Movers:   movers,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
