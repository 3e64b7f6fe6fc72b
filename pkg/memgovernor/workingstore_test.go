package memgovernor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

func newTestWorkingStore(t *testing.T) *WorkingStore {
	t.Helper()
	w, err := NewWorkingStore("", 24)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWorkingStoreAddRejectsDuplicateEventID(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	now := time.Now().Unix()

	ev1 := models.WorkingEvent{Source: "chat", UserID: "alice", Text: "hi", NormalizedText: "hi", Timestamp: now, EventID: "evt-1", Metadata: models.Metadata{}}
	added, err := w.Add(ctx, ev1)
	require.NoError(t, err)
	require.True(t, added)

	ev2 := ev1
	ev2.Text = "hi again"
	ev2.NormalizedText = "hi again"
	added2, err := w.Add(ctx, ev2)
	require.NoError(t, err)
	require.False(t, added2, "second event with same (source, event_id) must be rejected")
}

func TestWorkingStoreAddRejectsDuplicateNormalizedTextWithinWindow(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	now := time.Now().Unix()

	ev1 := models.WorkingEvent{Source: "chat", UserID: "alice", Text: "Met Bob at the park", NormalizedText: "met bob at the park", Timestamp: now, Metadata: models.Metadata{}}
	added, err := w.Add(ctx, ev1)
	require.NoError(t, err)
	require.True(t, added)

	ev2 := ev1
	ev2.Timestamp = now + 100
	ev2.EventID = ""
	added2, err := w.Add(ctx, ev2)
	require.NoError(t, err)
	require.False(t, added2)
}

func TestWorkingStoreAddAllowsDifferentUsersSameText(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	now := time.Now().Unix()

	ev1 := models.WorkingEvent{Source: "chat", UserID: "alice", Text: "hello", NormalizedText: "hello", Timestamp: now}
	ev2 := models.WorkingEvent{Source: "chat", UserID: "bob", Text: "hello", NormalizedText: "hello", Timestamp: now}

	added1, err := w.Add(ctx, ev1)
	require.NoError(t, err)
	require.True(t, added1)

	added2, err := w.Add(ctx, ev2)
	require.NoError(t, err)
	require.True(t, added2)
}

func TestWorkingStoreRecentForScopeOrdersNewestFirst(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	scope := models.Scope{Kind: models.ScopeRoom, ID: "room1"}
	now := time.Now().Unix()

	for i, text := range []string{"first", "second", "third"} {
		ev := models.WorkingEvent{
			Source: "chat", UserID: "alice", Text: text, NormalizedText: text,
			Timestamp: now + int64(i), Scope: scope,
		}
		_, err := w.Add(ctx, ev)
		require.NoError(t, err)
	}

	events, err := w.RecentForScope(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "third", events[0].Text)
	require.Equal(t, "first", events[2].Text)
}

func TestWorkingStoreMarkConsolidatedNeverDecreases(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	scope := models.Scope{Kind: models.ScopeRoom, ID: "room1"}

	require.NoError(t, w.MarkConsolidated(ctx, scope, 100))
	require.NoError(t, w.MarkConsolidated(ctx, scope, 50))

	cursor, err := w.Cursor(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, int64(100), cursor)

	require.NoError(t, w.MarkConsolidated(ctx, scope, 200))
	cursor, err = w.Cursor(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, int64(200), cursor)
}

func TestWorkingStoreCleanupRemovesExpiredEvents(t *testing.T) {
	w := newTestWorkingStore(t)
	ctx := context.Background()
	old := time.Now().Unix() - 48*3600

	ev := models.WorkingEvent{Source: "chat", UserID: "alice", Text: "old event", NormalizedText: "old event", Timestamp: old}
	_, err := w.Add(ctx, ev)
	require.NoError(t, err)

	require.NoError(t, w.Cleanup(ctx))

	events, err := w.RecentForScope(ctx, models.Scope{}, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}
