package memgovernor

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

func readStreamLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestStreamLogAppendWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")
	s := NewStreamLog(path, 30)

	rec := StreamRecord{Source: "chat", UserID: "alice", Text: "hi", Timestamp: time.Now().Unix(), Scope: models.Scope{Kind: models.ScopeRoom, ID: "r1"}}
	require.NoError(t, s.Append(rec))
	require.NoError(t, s.Append(rec))

	lines := readStreamLines(t, path)
	require.Len(t, lines, 2)
}

func TestStreamLogCleanupDropsRecordsOlderThanTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.log")
	s := NewStreamLog(path, 1)
	now := time.Now().Unix()

	require.NoError(t, s.Append(StreamRecord{Source: "chat", UserID: "alice", Text: "fresh", Timestamp: now}))
	require.NoError(t, s.Append(StreamRecord{Source: "chat", UserID: "alice", Text: "stale", Timestamp: now - 3*24*3600}))

	require.NoError(t, s.Cleanup())

	lines := readStreamLines(t, path)
	require.Len(t, lines, 1)
}

func TestStreamLogCleanupOnMissingFileIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.log")
	s := NewStreamLog(path, 7)
	require.NoError(t, s.Cleanup())
}
