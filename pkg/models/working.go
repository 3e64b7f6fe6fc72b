package models

import "time"

// WorkingEvent is a short-term observation held in the Governor's working
// store until it is purged by TTL or marked consolidated.
type WorkingEvent struct {
	ID              int64     `json:"id"`
	Source          string    `json:"source"`
	UserID          string    `json:"user_id"`
	Text            string    `json:"text"`
	NormalizedText  string    `json:"normalized_text"`
	Timestamp       int64     `json:"timestamp"`
	Scope           Scope     `json:"scope"`
	EventID         string    `json:"event_id,omitempty"`
	Metadata        Metadata  `json:"metadata"`
	InsertedAt      time.Time `json:"inserted_at"`
	Consolidated    bool      `json:"consolidated"`
}

// ConsolidationCursor is a per-scope watermark: the latest timestamp that
// has been consolidated for that scope. Monotone non-decreasing.
type ConsolidationCursor struct {
	ScopeKey string `json:"scope_key"`
	UpToTS   int64  `json:"up_to_ts"`
}

// QueueJob is a durable write-back unit: persisted before acknowledgment,
// removed only after the write succeeds.
type QueueJob struct {
	ID      string         `json:"id"`
	TS      int64          `json:"ts"`
	Payload map[string]any `json:"payload"`
}
