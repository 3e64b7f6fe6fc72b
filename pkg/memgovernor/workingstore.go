// Package memgovernor implements the Memory Governor: the working store,
// durable queue, classification/consolidation policy, worker runtime,
// write-back client, and recall ranker.
package memgovernor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// WorkingStore is the TTL-bounded short-term store (component D). Backed by
// an embedded SQL database with the normalized_text column present from
// table creation (Open Question 4's own recommendation, rather than added
// by a lazy migration).
type WorkingStore struct {
	mu        sync.Mutex
	db        *sql.DB
	ttlHours  int
}

// NewWorkingStore opens (or creates) the working store database at path.
func NewWorkingStore(path string, ttlHours int) (*WorkingStore, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	} else {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", dsn)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memgovernor: open working store: %w", err)
	}
	db.SetMaxOpenConns(1)
	w := &WorkingStore{db: db, ttlHours: ttlHours}
	if err := w.init(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *WorkingStore) init() error {
	const schema = `
CREATE TABLE IF NOT EXISTS working_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	user_id TEXT NOT NULL,
	text TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	scope_kind TEXT NOT NULL,
	scope_id TEXT NOT NULL,
	event_id TEXT,
	metadata TEXT NOT NULL DEFAULT '{}',
	inserted_at INTEGER NOT NULL,
	consolidated INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_working_dedupe ON working_events(user_id, normalized_text, timestamp);
CREATE INDEX IF NOT EXISTS idx_working_scope ON working_events(scope_kind, scope_id, timestamp DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_working_source_event ON working_events(source, event_id) WHERE event_id IS NOT NULL AND event_id != '';

CREATE TABLE IF NOT EXISTS consolidation_state (
	scope_key TEXT PRIMARY KEY,
	up_to_ts INTEGER NOT NULL
);
`
	_, err := w.db.Exec(schema)
	return err
}

// Add rejects the event (returns false, nil) if either dedupe invariant from
// spec.md 3/4.D is violated, otherwise inserts it and returns true.
func (w *WorkingStore) Add(ctx context.Context, ev models.WorkingEvent) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ev.EventID != "" {
		var count int
		err := w.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM working_events WHERE source = ? AND event_id = ?`,
			ev.Source, ev.EventID).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("memgovernor: dedupe check by event id: %w", err)
		}
		if count > 0 {
			return false, nil
		}
	}

	cutoff := ev.Timestamp - 24*3600
	var count int
	err := w.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM working_events WHERE user_id = ? AND normalized_text = ? AND timestamp >= ?`,
		ev.UserID, ev.NormalizedText, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("memgovernor: dedupe check by normalized text: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	metaJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return false, fmt.Errorf("memgovernor: marshal event metadata: %w", err)
	}
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO working_events
			(source, user_id, text, normalized_text, timestamp, scope_kind, scope_id, event_id, metadata, inserted_at, consolidated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		ev.Source, ev.UserID, ev.Text, ev.NormalizedText, ev.Timestamp,
		string(ev.Scope.Kind), ev.Scope.ID, nullableString(ev.EventID), string(metaJSON), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("memgovernor: insert working event: %w", err)
	}
	return true, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RecentForScope returns the limit most recent events for that scope, newest
// first.
func (w *WorkingStore) RecentForScope(ctx context.Context, scope models.Scope, limit int) ([]models.WorkingEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.db.QueryContext(ctx,
		`SELECT id, source, user_id, text, normalized_text, timestamp, scope_kind, scope_id, event_id, metadata, inserted_at, consolidated
		 FROM working_events WHERE scope_kind = ? AND scope_id = ? ORDER BY timestamp DESC LIMIT ?`,
		string(scope.Kind), scope.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("memgovernor: recent for scope: %w", err)
	}
	defer rows.Close()

	var out []models.WorkingEvent
	for rows.Next() {
		var ev models.WorkingEvent
		var eventID sql.NullString
		var metaJSON string
		var insertedAtUnix int64
		var consolidated int
		if err := rows.Scan(&ev.ID, &ev.Source, &ev.UserID, &ev.Text, &ev.NormalizedText, &ev.Timestamp,
			&ev.Scope.Kind, &ev.Scope.ID, &eventID, &metaJSON, &insertedAtUnix, &consolidated); err != nil {
			return nil, fmt.Errorf("memgovernor: scan working event: %w", err)
		}
		ev.EventID = eventID.String
		ev.InsertedAt = time.Unix(insertedAtUnix, 0)
		ev.Consolidated = consolidated != 0
		_ = json.Unmarshal([]byte(metaJSON), &ev.Metadata)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkConsolidated upserts the cursor for scope; it never decreases.
func (w *WorkingStore) MarkConsolidated(ctx context.Context, scope models.Scope, upToTS int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO consolidation_state(scope_key, up_to_ts) VALUES (?, ?)
		 ON CONFLICT(scope_key) DO UPDATE SET up_to_ts = MAX(up_to_ts, excluded.up_to_ts)`,
		scope.Key(), upToTS)
	if err != nil {
		return fmt.Errorf("memgovernor: mark consolidated: %w", err)
	}
	return nil
}

// Cursor returns the current watermark for scope, or 0 if none recorded.
func (w *WorkingStore) Cursor(ctx context.Context, scope models.Scope) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ts int64
	err := w.db.QueryRowContext(ctx, `SELECT up_to_ts FROM consolidation_state WHERE scope_key = ?`, scope.Key()).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("memgovernor: read cursor: %w", err)
	}
	return ts, nil
}

// Cleanup deletes events older than ttlHours ago. The Governor calls it once
// at startup; no periodic cleanup pass runs after that.
func (w *WorkingStore) Cleanup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := time.Now().Unix() - int64(w.ttlHours)*3600
	_, err := w.db.ExecContext(ctx, `DELETE FROM working_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("memgovernor: cleanup working events: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (w *WorkingStore) Close() error {
	return w.db.Close()
}
