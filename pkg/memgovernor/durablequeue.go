package memgovernor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// DurableQueue is a crash-safe JSON-lines spool on disk (component E). Per
// Open Question 3, rewrites are write-to-temp-file + rename rather than the
// original's non-atomic in-place replace.
type DurableQueue struct {
	mu      sync.Mutex
	path    string
	backlog []models.QueueJob
}

// NewDurableQueue reads the spool at path line-by-line; each valid JSON
// object becomes a pending job.
func NewDurableQueue(path string) (*DurableQueue, error) {
	q := &DurableQueue{path: path}
	if path == "" {
		return q, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memgovernor: open spool: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var job models.QueueJob
		if err := json.Unmarshal(line, &job); err != nil {
			continue // skip malformed lines rather than fail startup
		}
		q.backlog = append(q.backlog, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memgovernor: read spool: %w", err)
	}
	return q, nil
}

// Enqueue wraps payload in a job, appends it to the in-memory backlog, and
// rewrites the spool file.
func (q *DurableQueue) Enqueue(payload map[string]any) (models.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := models.QueueJob{ID: uuid.NewString(), TS: time.Now().Unix(), Payload: payload}
	q.backlog = append(q.backlog, job)
	if err := q.rewriteLocked(); err != nil {
		return job, fmt.Errorf("memgovernor: enqueue: %w", err)
	}
	return job, nil
}

// Pending returns a snapshot of the backlog.
func (q *DurableQueue) Pending() []models.QueueJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueJob, len(q.backlog))
	copy(out, q.backlog)
	return out
}

// MarkDone removes the job by id and rewrites the spool.
func (q *DurableQueue) MarkDone(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.backlog {
		if j.ID == id {
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
			break
		}
	}
	if err := q.rewriteLocked(); err != nil {
		return fmt.Errorf("memgovernor: mark done: %w", err)
	}
	return nil
}

// rewriteLocked must be called with q.mu held. It writes the full backlog
// to a temp file in the same directory and renames it over the spool,
// so a crash mid-write never corrupts the previous, still-valid spool.
func (q *DurableQueue) rewriteLocked() error {
	if q.path == "" {
		return nil
	}
	dir := filepath.Dir(q.path)
	tmp, err := os.CreateTemp(dir, ".spool-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp spool: %w", err)
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, job := range q.backlog {
		line, err := json.Marshal(job)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("marshal job: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write job: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush temp spool: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp spool: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp spool: %w", err)
	}
	return nil
}
