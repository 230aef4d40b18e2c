// Package store persists scholarship records, renewal cycles, watchers,
// queued notifications, and harvest runs. Two implementations exist:
// SQLite for single-operator use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/scholarscope/harvest-cli/internal/model"
)

// RunFilter specifies criteria for listing harvest runs.
type RunFilter struct {
	Source string          `json:"source,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	// StartedAfter keeps only runs started at or after this instant.
	StartedAfter time.Time `json:"started_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// RenewalRequest carries everything needed to renew an expired record from a
// fresh candidate in one transaction: snapshot the prior cycle, fold the
// candidate's values into the record, and queue watcher notifications.
type RenewalRequest struct {
	RecordID string
	// Candidate supplies the fresh values. Only non-empty fields overwrite.
	Candidate model.Candidate
	// PriorBatchYear labels the cycle snapshot of the terms being replaced.
	PriorBatchYear int
	// NewYear is the batch year watchers are notified for.
	NewYear int
	// Message is the notification body queued for each watcher.
	Message string
}

// Store defines the persistence interface for the harvest pipeline.
type Store interface {
	// Records
	CreateRecord(ctx context.Context, rec *model.Record) (bool, error)
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	GetRecordByFingerprint(ctx context.Context, fingerprint string) (*model.Record, error)
	SearchRecords(ctx context.Context, terms []string) ([]model.Record, error)
	ListFingerprints(ctx context.Context) ([]string, error)
	RecentTitles(ctx context.Context, source string, limit int) ([]string, error)

	// Lifecycle
	ExpireRecords(ctx context.Context, cutoff time.Time) (int, error)
	RenewRecord(ctx context.Context, req RenewalRequest) error
	RecentlyRenewed(ctx context.Context, since time.Time) ([]model.Record, error)
	ListCycles(ctx context.Context, recordID string) ([]model.Cycle, error)

	// Watchers and notifications
	CreateWatcher(ctx context.Context, recordID, email string) (*model.Watcher, error)
	ListWatchers(ctx context.Context, recordID string) ([]model.Watcher, error)
	MarkWatcherNotified(ctx context.Context, watcherID string, year int) error
	EnqueueNotification(ctx context.Context, n model.Notification) error
	PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	CountPendingNotifications(ctx context.Context) (int, error)
	MarkNotificationSent(ctx context.Context, id string, delivered bool) error

	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	RecordPageFailure(ctx context.Context, f model.PageFailure) error
	ListPageFailures(ctx context.Context, runID string) ([]model.PageFailure, error)

	Migrate(ctx context.Context) error
	Close() error
}
