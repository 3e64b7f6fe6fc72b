package main

// AddMemoryRequest is POST /memories's body.
type AddMemoryRequest struct {
	UserID   string         `json:"user_id" binding:"required"`
	Text     string         `json:"text" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

// SummarizeRequest is POST /summaries's body.
type SummarizeRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// IngestRequest is POST /ingest's body.
type IngestRequest struct {
	Source    string         `json:"source" binding:"required"`
	UserID    string         `json:"user_id" binding:"required"`
	Text      string         `json:"text" binding:"required"`
	Timestamp *int64         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}
