package hippocampus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteBackend durably stores payloads in a single `memories` table,
// grounded on the pragma/retry idioms of dotcommander-vybe's internal/store.
type sqliteBackend struct {
	mu sync.Mutex
	db *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	dsn := normalizeSQLiteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("hippocampus: open sqlite backend: %w", err)
	}
	db.SetMaxOpenConns(1)
	b := &sqliteBackend{db: db}
	if err := b.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func normalizeSQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

func (b *sqliteBackend) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := b.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("hippocampus: apply pragma %q: %w", p, err)
		}
	}
	const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	score REAL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
`
	_, err := b.db.ExecContext(ctx, schema)
	return err
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return true
	}
	return false
}

func (b *sqliteBackend) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func (b *sqliteBackend) Add(ctx context.Context, userID, text string, metadata map[string]any) (Payload, error) {
	id := uuid.NewString()
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("hippocampus: marshal metadata: %w", err)
	}
	now := time.Now().Unix()
	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.withRetry(ctx, func() error {
		_, err := b.db.ExecContext(ctx,
			`INSERT INTO memories(id, user_id, text, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, userID, text, string(metaJSON), now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("hippocampus: insert memory: %w", err)
	}
	return Payload{"id": id, "user_id": userID, "text": text, "metadata": metadata}, nil
}

func (b *sqliteBackend) Query(ctx context.Context, userID, query string, limit int) ([]Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rows *sql.Rows
	err := b.withRetry(ctx, func() error {
		var qerr error
		rows, qerr = b.db.QueryContext(ctx,
			`SELECT id, user_id, text, metadata, score FROM memories
			 WHERE user_id = ? AND lower(text) LIKE '%' || ? || '%'
			 ORDER BY created_at DESC LIMIT ?`,
			userID, strings.ToLower(query), limitOrAll(limit))
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("hippocampus: query memories: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (b *sqliteBackend) List(ctx context.Context, userID string, limit int) ([]Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rows *sql.Rows
	var err error
	if userID == "" {
		err = b.withRetry(ctx, func() error {
			var qerr error
			rows, qerr = b.db.QueryContext(ctx,
				`SELECT id, user_id, text, metadata, score FROM memories ORDER BY created_at DESC LIMIT ?`,
				limitOrAll(limit))
			return qerr
		})
	} else {
		err = b.withRetry(ctx, func() error {
			var qerr error
			rows, qerr = b.db.QueryContext(ctx,
				`SELECT id, user_id, text, metadata, score FROM memories WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
				userID, limitOrAll(limit))
			return qerr
		})
	}
	if err != nil {
		return nil, fmt.Errorf("hippocampus: list memories: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (b *sqliteBackend) Delete(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var affected int64
	err := b.withRetry(ctx, func() error {
		res, err := b.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("hippocampus: delete memory: %w", err)
	}
	return affected > 0, nil
}

func (b *sqliteBackend) Summarize(_ context.Context, texts []string, maxLength int) (string, error) {
	joined := strings.Join(texts, " ")
	if len(joined) <= maxLength {
		return joined, nil
	}
	if maxLength <= 1 {
		return joined[:maxLength], nil
	}
	return joined[:maxLength-1] + "…", nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func scanPayloads(rows *sql.Rows) ([]Payload, error) {
	var out []Payload
	for rows.Next() {
		var id, userID, text, metaJSON string
		var score sql.NullFloat64
		if err := rows.Scan(&id, &userID, &text, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("hippocampus: scan memory row: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		p := Payload{"id": id, "user_id": userID, "text": text, "metadata": meta}
		if score.Valid {
			p["score"] = score.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
