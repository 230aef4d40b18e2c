package model

import "time"

// RunStatus represents the final state of one harvest run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one harvest of a single source's listing page. Counters are the
// operator-facing summary; individual page failures hang off the run.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	Found       int        `json:"found"`
	Created     int        `json:"created"`
	Renewed     int        `json:"renewed"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PageFailure records one detail page that could not be processed. Failures
// never abort sibling pages; they are recorded and the run continues.
type PageFailure struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	URL       string    `json:"url"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
