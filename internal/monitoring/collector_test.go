package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarscope/harvest-cli/internal/model"
	"github.com/scholarscope/harvest-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func finishRun(t *testing.T, st *store.SQLiteStore, source string, status model.RunStatus, created, failed int) {
	t.Helper()
	run, err := st.CreateRun(context.Background(), source)
	require.NoError(t, err)
	run.Status = status
	run.Found = created + failed
	run.Created = created
	run.Failed = failed
	require.NoError(t, st.CompleteRun(context.Background(), run))
}

func TestCollect_AggregatesRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	finishRun(t, st, "acme", model.RunStatusCompleted, 5, 0)
	finishRun(t, st, "acme", model.RunStatusPartial, 3, 1)
	finishRun(t, st, "zenith", model.RunStatusFailed, 0, 0)

	snap, err := NewCollector(st).Collect(ctx, 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsPartial)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 8, snap.Created)
	assert.Equal(t, 1, snap.PagesFailed)
	assert.InDelta(t, 1.0/3.0, snap.RunFailRate, 0.001)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollect_EmptyStore(t *testing.T) {
	st := newTestStore(t)

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Zero(t, snap.RunFailRate)
	assert.Equal(t, 0, snap.PendingNotifications)
}

func TestCollect_CountsPendingNotifications(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.EnqueueNotification(ctx, model.Notification{
			RecordID: "rec-1",
			Email:    "one@example.com",
			Year:     2025,
			Message:  "open again",
		}))
	}

	snap, err := NewCollector(st).Collect(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.PendingNotifications)
}
