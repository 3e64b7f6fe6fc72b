package memgovernor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDurableQueueEnqueuePendingMarkDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.spool")
	q, err := NewDurableQueue(path)
	require.NoError(t, err)

	job, err := q.Enqueue(map[string]any{"type": "memory", "payload": map[string]any{"text": "hi"}})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	require.Len(t, q.Pending(), 1)

	require.NoError(t, q.MarkDone(job.ID))
	require.Empty(t, q.Pending())
}

func TestDurableQueueSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.spool")
	q1, err := NewDurableQueue(path)
	require.NoError(t, err)

	job1, err := q1.Enqueue(map[string]any{"payload": "a"})
	require.NoError(t, err)
	_, err = q1.Enqueue(map[string]any{"payload": "b"})
	require.NoError(t, err)
	require.NoError(t, q1.MarkDone(job1.ID))

	q2, err := NewDurableQueue(path)
	require.NoError(t, err)
	pending := q2.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "b", pending[0].Payload["payload"])
}

func TestDurableQueueEmptyPathIsInMemoryOnly(t *testing.T) {
	q, err := NewDurableQueue("")
	require.NoError(t, err)
	job, err := q.Enqueue(map[string]any{"payload": "x"})
	require.NoError(t, err)
	require.Len(t, q.Pending(), 1)
	require.NoError(t, q.MarkDone(job.ID))
}
