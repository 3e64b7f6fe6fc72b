package memgovernor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// StreamLog is an optional append-only JSON-lines log of observed events,
// trimmed by TTL days at startup. Supplemented from original_source/
// memory_governor/store.py — spec.md 6 names the stream.log file but the
// distillation drops the component that writes it.
type StreamLog struct {
	mu      sync.Mutex
	path    string
	ttlDays int
}

// StreamRecord is one line of the stream log.
type StreamRecord struct {
	Source    string         `json:"source"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"text"`
	Timestamp int64          `json:"timestamp"`
	Scope     models.Scope   `json:"scope"`
	Metadata  map[string]any `json:"metadata"`
}

// NewStreamLog returns a StreamLog writing to path.
func NewStreamLog(path string, ttlDays int) *StreamLog {
	return &StreamLog{path: path, ttlDays: ttlDays}
}

// Append writes one record to the log.
func (s *StreamLog) Append(rec StreamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("memgovernor: open stream log: %w", err)
	}
	defer f.Close()
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memgovernor: marshal stream record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("memgovernor: write stream record: %w", err)
	}
	return nil
}

// Cleanup rewrites the log keeping only records within the TTL window.
func (s *StreamLog) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memgovernor: open stream log for cleanup: %w", err)
	}
	cutoff := time.Now().Unix() - int64(s.ttlDays)*24*3600
	var kept []StreamRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec StreamRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Timestamp >= cutoff {
			kept = append(kept, rec)
		}
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("memgovernor: scan stream log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".stream-*.tmp")
	if err != nil {
		return fmt.Errorf("memgovernor: create temp stream log: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, rec := range kept {
		line, _ := json.Marshal(rec)
		w.Write(append(line, '\n'))
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("memgovernor: flush temp stream log: %w", err)
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("memgovernor: rename temp stream log: %w", err)
	}
	return nil
}
