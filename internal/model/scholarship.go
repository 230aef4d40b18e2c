package model

import "time"

// RecordStatus represents the lifecycle state of a scholarship record.
type RecordStatus string

const (
	RecordStatusActive  RecordStatus = "active"
	RecordStatusExpired RecordStatus = "expired"
)

// FieldOrigin describes which strategy produced a field value.
type FieldOrigin string

const (
	OriginSelector FieldOrigin = "selector" // configured per-source selector
	OriginFallback FieldOrigin = "fallback" // heuristic ladder strategy
	OriginLLM      FieldOrigin = "llm"      // recovered by the LLM fallback
	OriginSentinel FieldOrigin = "sentinel" // nothing usable found
)

// Stable sentinels for fields where nothing usable was found. Extraction
// never returns an empty string for these fields.
const (
	TitleNotFound     = "Untitled scholarship"
	RewardUnspecified = "Amount not specified"
	NoDescription     = "No description available"
)

// Candidate is a raw extraction result for a single detail page, before
// identity resolution and persistence.
type Candidate struct {
	Source       string                 `json:"source"`
	Link         string                 `json:"link"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Reward       string                 `json:"reward"`
	StartDate    *time.Time             `json:"start_date,omitempty"`
	EndDate      *time.Time             `json:"end_date,omitempty"`
	Requirements []string               `json:"requirements"`
	Eligibility  []string               `json:"eligibility"`
	Tags         []string               `json:"tags"`
	Levels       []string               `json:"levels"`
	Fingerprint  string                 `json:"fingerprint"`
	ScrapedAt    time.Time              `json:"scraped_at"`
	Origins      map[string]FieldOrigin `json:"origins,omitempty"`
}

// SetOrigin records which strategy produced the named field.
func (c *Candidate) SetOrigin(field string, origin FieldOrigin) {
	if c.Origins == nil {
		c.Origins = make(map[string]FieldOrigin)
	}
	c.Origins[field] = origin
}

// Origin returns the recorded origin for a field, defaulting to fallback.
func (c *Candidate) Origin(field string) FieldOrigin {
	if o, ok := c.Origins[field]; ok {
		return o
	}
	return OriginFallback
}

// Record is the canonical persisted scholarship.
type Record struct {
	ID            string       `json:"id"`
	Fingerprint   string       `json:"fingerprint"`
	Source        string       `json:"source"`
	Link          string       `json:"link"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Reward        string       `json:"reward"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
	Requirements  []string     `json:"requirements"`
	Eligibility   []string     `json:"eligibility"`
	Tags          []string     `json:"tags"`
	Levels        []string     `json:"levels"`
	Status        RecordStatus `json:"status"`
	IsRecurring   bool         `json:"is_recurring"`
	LastRenewedAt *time.Time   `json:"last_renewed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Cycle is a dated snapshot of a record's prior deadline and terms, created
// once per detected renewal. At most one cycle exists per (record, batch year).
type Cycle struct {
	ID        string       `json:"id"`
	RecordID  string       `json:"record_id"`
	BatchYear int          `json:"batch_year"`
	Deadline  *time.Time   `json:"deadline,omitempty"`
	Reward    string       `json:"reward,omitempty"`
	Status    RecordStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Watcher is a user registered to be told when an expired record reopens.
type Watcher struct {
	ID              string    `json:"id"`
	RecordID        string    `json:"record_id"`
	Email           string    `json:"email"`
	NotifiedForYear int       `json:"notified_for_year"`
	CreatedAt       time.Time `json:"created_at"`
}

// NotificationStatus tracks delivery of a queued notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is one queued message to a watcher about a renewed record.
// Rows are written inside the renewal transaction and delivered later.
type Notification struct {
	ID        string             `json:"id"`
	WatcherID string             `json:"watcher_id"`
	RecordID  string             `json:"record_id"`
	Email     string             `json:"email"`
	Year      int                `json:"year"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`
}
