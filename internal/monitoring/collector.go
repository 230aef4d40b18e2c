// Package monitoring watches harvest health: run outcomes over a lookback
// window, the notification backlog, and threshold alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of harvest health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsPartial   int     `json:"runs_partial"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Aggregated pipeline counters (within lookback window).
	PagesFound   int `json:"pages_found"`
	Created      int `json:"created"`
	Renewed      int `json:"renewed"`
	Skipped      int `json:"skipped"`
	PagesFailed  int `json:"pages_failed"`

	// Notification backlog depth.
	PendingNotifications int `json:"pending_notifications"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of harvest metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		StartedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		snap.PagesFound += r.Found
		snap.Created += r.Created
		snap.Renewed += r.Renewed
		snap.Skipped += r.Skipped
		snap.PagesFailed += r.Failed
	}

	finished := snap.RunsCompleted + snap.RunsPartial + snap.RunsFailed
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	pending, err := c.store.CountPendingNotifications(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count pending notifications")
	}
	snap.PendingNotifications = pending

	return snap, nil
}
