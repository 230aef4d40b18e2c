package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scholarscope/harvest-cli/internal/db"
	"github.com/scholarscope/harvest-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_record": `INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (fingerprint) DO NOTHING`,
	"get_record_by_fingerprint": `SELECT ` + recordColumns + ` FROM records WHERE fingerprint = $1`,
	"list_fingerprints":         `SELECT fingerprint FROM records`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id              TEXT PRIMARY KEY,
	fingerprint     TEXT NOT NULL UNIQUE,
	source          TEXT NOT NULL,
	link            TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL,
	reward          TEXT NOT NULL,
	start_date      TIMESTAMPTZ,
	end_date        TIMESTAMPTZ,
	requirements    JSONB NOT NULL DEFAULT '[]',
	eligibility     JSONB NOT NULL DEFAULT '[]',
	tags            JSONB NOT NULL DEFAULT '[]',
	levels          JSONB NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL DEFAULT 'active',
	is_recurring    BOOLEAN NOT NULL DEFAULT false,
	last_renewed_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cycles (
	id         TEXT PRIMARY KEY,
	record_id  TEXT NOT NULL REFERENCES records(id),
	batch_year INTEGER NOT NULL,
	deadline   TIMESTAMPTZ,
	reward     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'expired',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (record_id, batch_year)
);

CREATE TABLE IF NOT EXISTS watchers (
	id                TEXT PRIMARY KEY,
	record_id         TEXT NOT NULL REFERENCES records(id),
	email             TEXT NOT NULL,
	notified_for_year INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at    TIMESTAMPTZ
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
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS page_failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	url        TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.RecordStatusActive
	}

	tag, err := s.pool.Exec(ctx, "insert_record",
		rec.ID, rec.Fingerprint, rec.Source, rec.Link, rec.Title, rec.Description, rec.Reward,
		rec.StartDate, rec.EndDate,
		marshalStrings(rec.Requirements), marshalStrings(rec.Eligibility),
		marshalStrings(rec.Tags), marshalStrings(rec.Levels),
		string(rec.Status), rec.IsRecurring, rec.LastRenewedAt, now, now,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert record")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	return scanPgRecord(row)
}

func (s *PostgresStore) GetRecordByFingerprint(ctx context.Context, fingerprint string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx, "get_record_by_fingerprint", fingerprint)
	rec, err := scanPgRecord(row)
	if eris.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) SearchRecords(ctx context.Context, terms []string) ([]model.Record, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var clauses []string
	var args []any
	for i, term := range terms {
		clauses = append(clauses, "title ILIKE $"+strconv.Itoa(i+1))
		args = append(args, "%"+term+"%")
	}
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` +
		strings.Join(clauses, " OR ") + ` ORDER BY updated_at DESC LIMIT 50`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search records")
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (s *PostgresStore) ListFingerprints(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "list_fingerprints")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fingerprints")
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fingerprint")
		}
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "postgres: list fingerprints iterate")
}

func (s *PostgresStore) RecentTitles(ctx context.Context, source string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT title FROM records`
	var args []any
	if source != "" {
		query += ` WHERE source = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, source, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent titles")
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan title")
		}
		titles = append(titles, t)
	}
	return titles, eris.Wrap(rows.Err(), "postgres: recent titles iterate")
}

func (s *PostgresStore) ExpireRecords(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, updated_at = now()
		 WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3`,
		string(model.RecordStatusExpired), string(model.RecordStatusActive), cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire records")
	}
	return int(tag.RowsAffected()), nil
}

// RenewRecord runs the whole renewal in one transaction. See the SQLite
// implementation for the step-by-step shape; the semantics are identical.
func (s *PostgresStore) RenewRecord(ctx context.Context, req RenewalRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin renewal")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, req.RecordID)
	prior, err := scanPgRecord(row)
	if err != nil {
		return eris.Wrapf(err, "postgres: renewal target %s", req.RecordID)
	}

	now := time.Now().UTC()

	_, err = tx.Exec(ctx,
		`INSERT INTO cycles (id, record_id, batch_year, deadline, reward, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (record_id, batch_year) DO NOTHING`,
		uuid.New().String(), req.RecordID, req.PriorBatchYear,
		prior.EndDate, prior.Reward, string(model.RecordStatusExpired), now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert cycle")
	}

	cols, vals := renewalAssignments(req.Candidate)
	var set []string
	for i, col := range cols {
		set = append(set, col+" = $"+strconv.Itoa(i+1))
	}
	n := len(cols)
	set = append(set,
		"status = $"+strconv.Itoa(n+1),
		"is_recurring = true",
		"last_renewed_at = $"+strconv.Itoa(n+2),
		"updated_at = $"+strconv.Itoa(n+3),
	)
	vals = append(vals, string(model.RecordStatusActive), now, now, req.RecordID)

	tag, err := tx.Exec(ctx,
		`UPDATE records SET `+strings.Join(set, ", ")+` WHERE id = $`+strconv.Itoa(n+4), vals...)
	if err != nil {
		return eris.Wrap(err, "postgres: renew record")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", req.RecordID)
	}

	rows, err := tx.Query(ctx,
		`SELECT id, email FROM watchers WHERE record_id = $1 AND notified_for_year != $2`,
		req.RecordID, req.NewYear,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: renewal watchers")
	}
	type pending struct{ id, email string }
	var toNotify []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.email); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan watcher")
		}
		toNotify = append(toNotify, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: renewal watchers iterate")
	}

	for _, p := range toNotify {
		_, err = tx.Exec(ctx,
			`INSERT INTO notifications (id, watcher_id, record_id, email, year, message, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), p.id, req.RecordID, p.email, req.NewYear, req.Message,
			string(model.NotificationPending), now,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: queue notification")
		}
		_, err = tx.Exec(ctx,
			`UPDATE watchers SET notified_for_year = $1 WHERE id = $2`, req.NewYear, p.id)
		if err != nil {
			return eris.Wrap(err, "postgres: mark watcher notified")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit renewal")
}

func (s *PostgresStore) RecentlyRenewed(ctx context.Context, since time.Time) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE last_renewed_at IS NOT NULL AND last_renewed_at >= $1
		 ORDER BY last_renewed_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recently renewed")
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (s *PostgresStore) ListCycles(ctx context.Context, recordID string) ([]model.Cycle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, batch_year, deadline, reward, status, created_at
		 FROM cycles WHERE record_id = $1 ORDER BY batch_year DESC`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cycles")
	}
	defer rows.Close()

	var cycles []model.Cycle
	for rows.Next() {
		var c model.Cycle
		if err := rows.Scan(&c.ID, &c.RecordID, &c.BatchYear, &c.Deadline, &c.Reward, &c.Status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cycle")
		}
		cycles = append(cycles, c)
	}
	return cycles, eris.Wrap(rows.Err(), "postgres: list cycles iterate")
}

func (s *PostgresStore) CreateWatcher(ctx context.Context, recordID, email string) (*model.Watcher, error) {
	w := &model.Watcher{
		ID:        uuid.New().String(),
		RecordID:  recordID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchers (id, record_id, email, notified_for_year, created_at)
		 VALUES ($1, $2, $3, 0, $4)`,
		w.ID, w.RecordID, w.Email, w.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert watcher for record %s", recordID)
	}
	return w, nil
}

func (s *PostgresStore) ListWatchers(ctx context.Context, recordID string) ([]model.Watcher, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, email, notified_for_year, created_at
		 FROM watchers WHERE record_id = $1 ORDER BY created_at`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list watchers")
	}
	defer rows.Close()

	var watchers []model.Watcher
	for rows.Next() {
		var w model.Watcher
		if err := rows.Scan(&w.ID, &w.RecordID, &w.Email, &w.NotifiedForYear, &w.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan watcher")
		}
		watchers = append(watchers, w)
	}
	return watchers, eris.Wrap(rows.Err(), "postgres: list watchers iterate")
}

func (s *PostgresStore) MarkWatcherNotified(ctx context.Context, watcherID string, year int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE watchers SET notified_for_year = $1 WHERE id = $2`, year, watcherID)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark watcher %s", watcherID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("watcher not found: %s", watcherID)
	}
	return nil
}

func (s *PostgresStore) EnqueueNotification(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = model.NotificationPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, watcher_id, record_id, email, year, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.WatcherID, n.RecordID, n.Email, n.Year, n.Message, string(n.Status), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: enqueue notification")
}

func (s *PostgresStore) PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, watcher_id, record_id, email, year, message, status, created_at, sent_at
		 FROM notifications WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(model.NotificationPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending notifications")
	}
	defer rows.Close()

	var ns []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.WatcherID, &n.RecordID, &n.Email, &n.Year, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notification")
		}
		ns = append(ns, n)
	}
	return ns, eris.Wrap(rows.Err(), "postgres: pending notifications iterate")
}

func (s *PostgresStore) CountPendingNotifications(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status = $1`,
		string(model.NotificationPending),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count pending notifications")
}

func (s *PostgresStore) MarkNotificationSent(ctx context.Context, id string, delivered bool) error {
	status := model.NotificationSent
	if !delivered {
		status = model.NotificationFailed
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET status = $1, sent_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark notification %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("notification not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, found = $2, created = $3, renewed = $4, skipped = $5,
		 failed = $6, error = $7, completed_at = $8 WHERE id = $9`,
		string(run.Status), run.Found, run.Created, run.Renewed, run.Skipped,
		run.Failed, run.Error, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, found, created, renewed, skipped, failed, error, started_at, completed_at
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filter.StartedAfter.IsZero() {
		args = append(args, filter.StartedAfter.UTC())
		query += ` AND started_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Found, &r.Created, &r.Renewed,
			&r.Skipped, &r.Failed, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordPageFailure(ctx context.Context, f model.PageFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_failures (id, run_id, url, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.RunID, f.URL, f.Reason, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record page failure")
}

func (s *PostgresStore) ListPageFailures(ctx context.Context, runID string) ([]model.PageFailure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, url, reason, created_at FROM page_failures
		 WHERE run_id = $1 ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list page failures")
	}
	defer rows.Close()

	var failures []model.PageFailure
	for rows.Next() {
		var f model.PageFailure
		if err := rows.Scan(&f.ID, &f.RunID, &f.URL, &f.Reason, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page failure")
		}
		failures = append(failures, f)
	}
	return failures, eris.Wrap(rows.Err(), "postgres: list page failures iterate")
}

// helpers

func scanPgRecord(row pgx.Row) (*model.Record, error) {
	var r model.Record
	var reqs, elig, tags, levels []byte

	err := row.Scan(&r.ID, &r.Fingerprint, &r.Source, &r.Link, &r.Title, &r.Description, &r.Reward,
		&r.StartDate, &r.EndDate, &reqs, &elig, &tags, &levels,
		&r.Status, &r.IsRecurring, &r.LastRenewedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan record")
	}

	for _, pair := range []struct {
		raw  []byte
		dest *[]string
	}{
		{reqs, &r.Requirements}, {elig, &r.Eligibility}, {tags, &r.Tags}, {levels, &r.Levels},
	} {
		if err := unmarshalStrings(string(pair.raw), pair.dest); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record lists")
		}
	}
	return &r, nil
}

func collectPgRecords(rows pgx.Rows) ([]model.Record, error) {
	var records []model.Record
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: collect records")
}
