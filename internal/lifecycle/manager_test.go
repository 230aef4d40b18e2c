package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/resolve"
	"github.com/scholarscope/harvest-cli/internal/store"
)

func newManager(t *testing.T, now time.Time) (*Manager, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	m := New(st, Config{})
	m.now = func() time.Time { return now }
	return m, st
}

func date(y int, mo time.Month, d int) *time.Time {
	t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func storedGrant2024(t *testing.T, st *store.SQLiteStore) *model.Record {
	t.Helper()
	rec := &model.Record{
		Fingerprint:  resolve.Fingerprint("Acme STEM Grant 2024", "https://acme.org/grant-2024"),
		Source:       "acme",
		Link:         "https://acme.org/grant-2024",
		Title:        "Acme STEM Grant 2024",
		Description:  "Annual grants for undergraduate women in science.",
		Reward:       "₦150,000",
		EndDate:      date(2024, time.December, 31),
		Requirements: []string{"Minimum CGPA of 3.5"},
		Tags:         []string{"stem", "women"},
		Levels:       []string{"undergraduate"},
	}
	created, err := st.CreateRecord(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)
	return rec
}

func candidate2025() model.Candidate {
	c := model.Candidate{
		Source:      "acme",
		Link:        "https://acme.org/grant-2025",
		Title:       "Acme STEM Grant 2025",
		Description: "Annual grants for undergraduate women in science, now with robotics tracks.",
		Reward:      "₦200,000",
		EndDate:     date(2025, time.December, 31),
		ScrapedAt:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	c.Fingerprint = resolve.Fingerprint(c.Title, c.Link)
	return c
}

func TestSweep_ExpiresPastGrace(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusExpired, got.Status)
}

func TestSweep_GracePeriodHolds(t *testing.T) {
	// Deadline passed 2 weeks ago, within the 30-day grace.
	now := time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusActive, got.Status)
}

func TestResolve_RenewsExpiredRecord(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)
	_, err := st.CreateWatcher(ctx, rec.ID, "one@example.com")
	require.NoError(t, err)
	_, err = st.CreateWatcher(ctx, rec.ID, "two@example.com")
	require.NoError(t, err)

	_, err = m.Sweep(ctx)
	require.NoError(t, err)

	outcome, err := m.Resolve(ctx, candidate2025())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusActive, got.Status)
	assert.True(t, got.IsRecurring)
	assert.Equal(t, "https://acme.org/grant-2025", got.Link)
	assert.Equal(t, "2025-12-31", got.EndDate.Format("2006-01-02"))

	cycles, err := st.ListCycles(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, 2024, cycles[0].BatchYear)
	assert.Equal(t, "₦150,000", cycles[0].Reward)

	ns, err := st.PendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, 2025, ns[0].Year)
	assert.Contains(t, ns[0].Message, "Acme STEM Grant 2024")
	assert.Contains(t, ns[0].Message, "2025")
}

func TestResolve_ActiveMatchIsDuplicate(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)
	rec2 := *rec
	// Still active: a near-identical candidate is just a duplicate scrape.
	cand := candidate2025()
	cand.Title = "Acme STEM Grant 2024"
	cand.Fingerprint = resolve.Fingerprint(cand.Title, cand.Link)

	outcome, err := m.Resolve(ctx, cand)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	got, err := st.GetRecord(ctx, rec2.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.org/grant-2024", got.Link, "duplicates never touch the record")

	cycles, err := st.ListCycles(ctx, rec2.ID)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestResolve_NovelCandidateCreates(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	storedGrant2024(t, st)

	cand := model.Candidate{
		Source:  "zenith",
		Link:    "https://zenith.example/fellowship",
		Title:   "Zenith Arts Fellowship",
		Reward:  "Fully funded",
		EndDate: date(2025, time.October, 1),
	}
	cand.Fingerprint = resolve.Fingerprint(cand.Title, cand.Link)

	outcome, err := m.Resolve(ctx, cand)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	rec, err := st.GetRecordByFingerprint(ctx, cand.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.RecordStatusActive, rec.Status)
}

func TestResolve_StaleCandidateDropped(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	cand := model.Candidate{
		Source:  "acme",
		Link:    "https://acme.org/old",
		Title:   "Long Closed Grant",
		EndDate: date(2024, time.March, 1),
	}
	cand.Fingerprint = resolve.Fingerprint(cand.Title, cand.Link)

	outcome, err := m.Resolve(ctx, cand)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	rec, err := st.GetRecordByFingerprint(ctx, cand.Fingerprint)
	require.NoError(t, err)
	assert.Nil(t, rec, "stale candidates are never stored")
}

func TestResolve_RenewalIsIdempotent(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)
	_, err := st.CreateWatcher(ctx, rec.ID, "one@example.com")
	require.NoError(t, err)
	_, err = m.Sweep(ctx)
	require.NoError(t, err)

	outcome, err := m.Resolve(ctx, candidate2025())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, outcome)

	// The record is active now, so the same candidate is a duplicate.
	outcome, err = m.Resolve(ctx, candidate2025())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	cycles, err := st.ListCycles(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)

	ns, err := st.PendingNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestEnqueueRecentRenewals_LateWatcher(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)
	_, err := m.Sweep(ctx)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, candidate2025())
	require.NoError(t, err)

	// Watcher registers after the renewal already happened.
	_, err = st.CreateWatcher(ctx, rec.ID, "late@example.com")
	require.NoError(t, err)

	queued, err := m.EnqueueRecentRenewals(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	// Second scan has nothing left to queue.
	queued, err = m.EnqueueRecentRenewals(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, queued)
}

type captureSender struct {
	sent []model.Notification
	errs map[string]error
}

func (c *captureSender) Send(_ context.Context, n model.Notification) error {
	if err, ok := c.errs[n.Email]; ok {
		return err
	}
	c.sent = append(c.sent, n)
	return nil
}

func TestDeliver(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m, st := newManager(t, now)
	ctx := context.Background()

	rec := storedGrant2024(t, st)
	_, err := st.CreateWatcher(ctx, rec.ID, "ok@example.com")
	require.NoError(t, err)
	_, err = st.CreateWatcher(ctx, rec.ID, "broken@example.com")
	require.NoError(t, err)
	_, err = m.Sweep(ctx)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, candidate2025())
	require.NoError(t, err)

	sender := &captureSender{errs: map[string]error{"broken@example.com": errors.New("relay down")}}
	sent, failed, err := m.Deliver(ctx, sender, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ok@example.com", sender.sent[0].Email)

	// Everything was marked; nothing pending remains.
	pending, err := st.PendingNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
