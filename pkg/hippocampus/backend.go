// Package hippocampus implements the Hippocampus store: a pluggable memory
// backend (in-memory, embedded-SQL, or remote managed service) behind a
// storage adapter with typed fallback, plus the reflection selector.
package hippocampus

import "context"

// Payload is the JSON-like map every backend operation exchanges. It must at
// least carry id, user_id, text, metadata, and optionally score.
type Payload map[string]any

// Backend is the closed capability set every concrete store implements
// (spec.md 4.A): add, query, list, delete, summarize. Modeling this as an
// interface turns the original's dynamic-dispatch-with-missing-method
// fallback into a compile-time guarantee that every variant below
// implements every method.
type Backend interface {
	Add(ctx context.Context, userID, text string, metadata map[string]any) (Payload, error)
	Query(ctx context.Context, userID, query string, limit int) ([]Payload, error)
	List(ctx context.Context, userID string, limit int) ([]Payload, error)
	Delete(ctx context.Context, id string) (bool, error)
	Summarize(ctx context.Context, texts []string, maxLength int) (string, error)
}

// Name identifies a configured backend kind.
type Name string

const (
	BackendMemory Name = "memory"
	BackendSQLite Name = "sqlite"
	BackendRemote Name = "remote"
)
