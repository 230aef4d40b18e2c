package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scholarscope/harvest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single connection: SQLite is single-writer, and an in-memory DSN would
	// otherwise give each pooled connection its own empty database.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id              TEXT PRIMARY KEY,
	fingerprint     TEXT NOT NULL UNIQUE,
	source          TEXT NOT NULL,
	link            TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL,
	reward          TEXT NOT NULL,
	start_date      DATETIME,
	end_date        DATETIME,
	requirements    TEXT NOT NULL DEFAULT '[]',
	eligibility     TEXT NOT NULL DEFAULT '[]',
	tags            TEXT NOT NULL DEFAULT '[]',
	levels          TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL DEFAULT 'active',
	is_recurring    INTEGER NOT NULL DEFAULT 0,
	last_renewed_at DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
	id         TEXT PRIMARY KEY,
	record_id  TEXT NOT NULL REFERENCES records(id),
	batch_year INTEGER NOT NULL,
	deadline   DATETIME,
	reward     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'expired',
	created_at DATETIME NOT NULL,
	UNIQUE (record_id, batch_year)
);

CREATE TABLE IF NOT EXISTS watchers (
	id                TEXT PRIMARY KEY,
	record_id         TEXT NOT NULL REFERENCES records(id),
	email             TEXT NOT NULL,
	notified_for_year INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	UNIQUE (record_id, email)
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	watcher_id TEXT NOT NULL REFERENCES watchers(id),
	record_id  TEXT NOT NULL REFERENCES records(id),
	email      TEXT NOT NULL,
	year       INTEGER NOT NULL,
	message    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	sent_at    DATETIME
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	found        INTEGER NOT NULL DEFAULT 0,
	created      INTEGER NOT NULL DEFAULT 0,
	renewed      INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS page_failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	url        TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);
CREATE INDEX IF NOT EXISTS idx_records_end_date ON records(end_date);
CREATE INDEX IF NOT EXISTS idx_cycles_record_id ON cycles(record_id);
CREATE INDEX IF NOT EXISTS idx_watchers_record_id ON watchers(record_id);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_page_failures_run_id ON page_failures(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, fingerprint, source, link, title, description, reward,
	start_date, end_date, requirements, eligibility, tags, levels,
	status, is_recurring, last_renewed_at, created_at, updated_at`

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.RecordStatusActive
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		rec.ID, rec.Fingerprint, rec.Source, rec.Link, rec.Title, rec.Description, rec.Reward,
		nullTime(rec.StartDate), nullTime(rec.EndDate),
		marshalStrings(rec.Requirements), marshalStrings(rec.Eligibility),
		marshalStrings(rec.Tags), marshalStrings(rec.Levels),
		string(rec.Status), rec.IsRecurring, nullTime(rec.LastRenewedAt), now, now,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *SQLiteStore) GetRecordByFingerprint(ctx context.Context, fingerprint string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE fingerprint = ?`, fingerprint)
	rec, err := scanRecord(row)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) SearchRecords(ctx context.Context, terms []string) ([]model.Record, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var clauses []string
	var args []any
	for _, term := range terms {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+term+"%")
	}
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` +
		strings.Join(clauses, " OR ") + ` ORDER BY updated_at DESC LIMIT 50`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search records")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteStore) ListFingerprints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM records`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fingerprints")
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fingerprint")
		}
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "sqlite: list fingerprints iterate")
}

func (s *SQLiteStore) RecentTitles(ctx context.Context, source string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT title FROM records`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent titles")
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan title")
		}
		titles = append(titles, t)
	}
	return titles, eris.Wrap(rows.Err(), "sqlite: recent titles iterate")
}

func (s *SQLiteStore) ExpireRecords(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ?
		 WHERE status = ? AND end_date IS NOT NULL AND end_date < ?`,
		string(model.RecordStatusExpired), time.Now().UTC(),
		string(model.RecordStatusActive), cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire records")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// RenewRecord runs the whole renewal in one transaction: snapshot the prior
// terms as a cycle, fold the candidate's fresh values into the record, and
// queue one notification per watcher not yet told about the new year.
func (s *SQLiteStore) RenewRecord(ctx context.Context, req RenewalRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin renewal")
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, req.RecordID)
	prior, err := scanRecord(row)
	if err != nil {
		return eris.Wrapf(err, "sqlite: renewal target %s", req.RecordID)
	}

	now := time.Now().UTC()

	// At most one cycle per (record, batch year); a re-detected renewal is a
	// no-op here.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cycles (id, record_id, batch_year, deadline, reward, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_id, batch_year) DO NOTHING`,
		uuid.New().String(), req.RecordID, req.PriorBatchYear,
		nullTime(prior.EndDate), prior.Reward, string(model.RecordStatusExpired), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert cycle")
	}

	cols, vals := renewalAssignments(req.Candidate)
	var set []string
	for _, col := range cols {
		set = append(set, col+" = ?")
	}
	set = append(set, "status = ?", "is_recurring = 1", "last_renewed_at = ?", "updated_at = ?")
	vals = append(vals, string(model.RecordStatusActive), now, now, req.RecordID)

	res, err := tx.ExecContext(ctx,
		`UPDATE records SET `+strings.Join(set, ", ")+` WHERE id = ?`, vals...)
	if err != nil {
		return eris.Wrap(err, "sqlite: renew record")
	}
	if err := checkRowsAffected(res, "record", req.RecordID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, email FROM watchers WHERE record_id = ? AND notified_for_year != ?`,
		req.RecordID, req.NewYear,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: renewal watchers")
	}
	type pending struct{ id, email string }
	var toNotify []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.email); err != nil {
			rows.Close()
			return eris.Wrap(err, "sqlite: scan watcher")
		}
		toNotify = append(toNotify, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: renewal watchers iterate")
	}

	for _, p := range toNotify {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO notifications (id, watcher_id, record_id, email, year, message, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), p.id, req.RecordID, p.email, req.NewYear, req.Message,
			string(model.NotificationPending), now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: queue notification")
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE watchers SET notified_for_year = ? WHERE id = ?`, req.NewYear, p.id)
		if err != nil {
			return eris.Wrap(err, "sqlite: mark watcher notified")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit renewal")
}

func (s *SQLiteStore) RecentlyRenewed(ctx context.Context, since time.Time) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE last_renewed_at IS NOT NULL AND last_renewed_at >= ?
		 ORDER BY last_renewed_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recently renewed")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteStore) ListCycles(ctx context.Context, recordID string) ([]model.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, batch_year, deadline, reward, status, created_at
		 FROM cycles WHERE record_id = ? ORDER BY batch_year DESC`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cycles")
	}
	defer rows.Close()

	var cycles []model.Cycle
	for rows.Next() {
		var c model.Cycle
		var deadline sql.NullTime
		if err := rows.Scan(&c.ID, &c.RecordID, &c.BatchYear, &deadline, &c.Reward, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cycle")
		}
		if deadline.Valid {
			d := deadline.Time
			c.Deadline = &d
		}
		cycles = append(cycles, c)
	}
	return cycles, eris.Wrap(rows.Err(), "sqlite: list cycles iterate")
}

func (s *SQLiteStore) CreateWatcher(ctx context.Context, recordID, email string) (*model.Watcher, error) {
	w := &model.Watcher{
		ID:        uuid.New().String(),
		RecordID:  recordID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchers (id, record_id, email, notified_for_year, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		w.ID, w.RecordID, w.Email, w.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert watcher for record %s", recordID)
	}
	return w, nil
}

func (s *SQLiteStore) ListWatchers(ctx context.Context, recordID string) ([]model.Watcher, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, email, notified_for_year, created_at
		 FROM watchers WHERE record_id = ? ORDER BY created_at`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list watchers")
	}
	defer rows.Close()

	var watchers []model.Watcher
	for rows.Next() {
		var w model.Watcher
		if err := rows.Scan(&w.ID, &w.RecordID, &w.Email, &w.NotifiedForYear, &w.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan watcher")
		}
		watchers = append(watchers, w)
	}
	return watchers, eris.Wrap(rows.Err(), "sqlite: list watchers iterate")
}

func (s *SQLiteStore) MarkWatcherNotified(ctx context.Context, watcherID string, year int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE watchers SET notified_for_year = ? WHERE id = ?`, year, watcherID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark watcher %s", watcherID)
	}
	return checkRowsAffected(res, "watcher", watcherID)
}

func (s *SQLiteStore) EnqueueNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = model.NotificationPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, watcher_id, record_id, email, year, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.WatcherID, n.RecordID, n.Email, n.Year, n.Message, string(n.Status), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue notification")
}

func (s *SQLiteStore) PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, watcher_id, record_id, email, year, message, status, created_at, sent_at
		 FROM notifications WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(model.NotificationPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending notifications")
	}
	defer rows.Close()

	var ns []model.Notification
	for rows.Next() {
		var n model.Notification
		var sentAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.WatcherID, &n.RecordID, &n.Email, &n.Year, &n.Message, &n.Status, &n.CreatedAt, &sentAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notification")
		}
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		ns = append(ns, n)
	}
	return ns, eris.Wrap(rows.Err(), "sqlite: pending notifications iterate")
}

func (s *SQLiteStore) CountPendingNotifications(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status = ?`,
		string(model.NotificationPending),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count pending notifications")
}

func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, id string, delivered bool) error {
	status := model.NotificationSent
	if !delivered {
		status = model.NotificationFailed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, sent_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark notification %s", id)
	}
	return checkRowsAffected(res, "notification", id)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, found = ?, created = ?, renewed = ?, skipped = ?,
		 failed = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), run.Found, run.Created, run.Renewed, run.Skipped,
		run.Failed, run.Error, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, found, created, renewed, skipped, failed, error, started_at, completed_at
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Found, &r.Created, &r.Renewed,
			&r.Skipped, &r.Failed, &r.Error, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordPageFailure(ctx context.Context, f model.PageFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_failures (id, run_id, url, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.RunID, f.URL, f.Reason, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record page failure")
}

func (s *SQLiteStore) ListPageFailures(ctx context.Context, runID string) ([]model.PageFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, url, reason, created_at FROM page_failures
		 WHERE run_id = ? ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list page failures")
	}
	defer rows.Close()

	var failures []model.PageFailure
	for rows.Next() {
		var f model.PageFailure
		if err := rows.Scan(&f.ID, &f.RunID, &f.URL, &f.Reason, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page failure")
		}
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "sqlite: list page failures iterate")
}

// helpers

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = eris.New("not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(raw string, dest *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// renewalAssignments returns the record columns a renewal may overwrite and
// their values, skipping empty and sentinel candidate fields so stale data is
// never replaced with nothing.
func renewalAssignments(c model.Candidate) ([]string, []any) {
	var cols []string
	var vals []any
	set := func(col string, val any) {
		cols = append(cols, col)
		vals = append(vals, val)
	}
	if c.Link != "" {
		set("link", c.Link)
	}
	if c.Description != "" && c.Description != model.NoDescription {
		set("description", c.Description)
	}
	if c.Reward != "" && c.Reward != model.RewardUnspecified {
		set("reward", c.Reward)
	}
	if c.StartDate != nil {
		set("start_date", nullTime(c.StartDate))
	}
	if c.EndDate != nil {
		set("end_date", nullTime(c.EndDate))
	}
	if len(c.Requirements) > 0 {
		set("requirements", marshalStrings(c.Requirements))
	}
	if len(c.Eligibility) > 0 {
		set("eligibility", marshalStrings(c.Eligibility))
	}
	if len(c.Tags) > 0 {
		set("tags", marshalStrings(c.Tags))
	}
	if len(c.Levels) > 0 {
		set("levels", marshalStrings(c.Levels))
	}
	return cols, vals
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.Record, error) {
	var r model.Record
	var startDate, endDate, lastRenewed sql.NullTime
	var reqs, elig, tags, levels string

	err := row.Scan(&r.ID, &r.Fingerprint, &r.Source, &r.Link, &r.Title, &r.Description, &r.Reward,
		&startDate, &endDate, &reqs, &elig, &tags, &levels,
		&r.Status, &r.IsRecurring, &lastRenewed, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan record")
	}

	if startDate.Valid {
		t := startDate.Time
		r.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		r.EndDate = &t
	}
	if lastRenewed.Valid {
		t := lastRenewed.Time
		r.LastRenewedAt = &t
	}
	for _, pair := range []struct {
		raw  string
		dest *[]string
	}{
		{reqs, &r.Requirements}, {elig, &r.Eligibility}, {tags, &r.Tags}, {levels, &r.Levels},
	} {
		if err := unmarshalStrings(pair.raw, pair.dest); err != nil {
			return nil, eris.Wrap(err, "unmarshal record lists")
		}
	}
	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]model.Record, error) {
	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "collect records")
}
