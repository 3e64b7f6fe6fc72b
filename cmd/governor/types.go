package main

import "github.com/sacredbrain/memoryfabric/pkg/models"

// ObserveRequest is POST /observe's body, pinned against
// original_source/memory_governor/schemas.py.
type ObserveRequest struct {
	Source    string         `json:"source" binding:"required"`
	UserID    string         `json:"user_id" binding:"required"`
	Text      string         `json:"text" binding:"required"`
	Timestamp *int64         `json:"timestamp"`
	Scope     models.Scope   `json:"scope" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
}

type observeDecision struct {
	Salience float64 `json:"salience"`
	Kind     string  `json:"kind"`
}

type ObserveResponse struct {
	Status   string           `json:"status"`
	Action   string           `json:"action"`
	Decision observeDecision  `json:"decision"`
}

// RememberRequest is POST /remember's body.
type RememberRequest struct {
	Source   string         `json:"source"`
	UserID   string         `json:"user_id" binding:"required"`
	Text     string         `json:"text" binding:"required"`
	Scope    models.Scope   `json:"scope" binding:"required"`
	Kind     string         `json:"kind" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

type RememberResponse struct {
	Status   string `json:"status"`
	MemoryID string `json:"memory_id"`
}

// RecallFiltersRequest mirrors spec.md 6's Filters shape.
type RecallFiltersRequest struct {
	Kinds         []string `json:"kinds"`
	MinConfidence *float64 `json:"min_confidence"`
	SinceDays     *float64 `json:"since_days"`
	Scope         *models.Scope `json:"scope"`
}

type RecallRequest struct {
	UserID  string                `json:"user_id" binding:"required"`
	Query   string                `json:"query"`
	K       int                   `json:"k"`
	Filters *RecallFiltersRequest `json:"filters"`
}

// ConsolidateRequest is POST /consolidate's body.
type ConsolidateRequest struct {
	Scope    models.Scope `json:"scope" binding:"required"`
	Mode     string       `json:"mode"`
	MaxItems int          `json:"max_items"`
}

type consolidateWritten struct {
	Episodic   int `json:"episodic"`
	Semantic   int `json:"semantic"`
	Procedural int `json:"procedural"`
}

type ConsolidateResponse struct {
	Status  string              `json:"status"`
	Written consolidateWritten  `json:"written"`
	Skipped int                 `json:"skipped"`
}
