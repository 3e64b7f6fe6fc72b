// Package llmrerank is a small client for a litellm-compatible
// /v1/chat/completions endpoint, used by the optional recall reranker
// (component I). Pinned against
// original_source/memory_governor/clients.py's _rerank, which falls back to
// the original candidate order on any failure — no ecosystem LLM client
// library appears anywhere in the example corpus, so this follows the
// teacher's own direct net/http usage for outbound calls.
package llmrerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to a litellm-compatible chat completion endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Log        *slog.Logger
}

// New builds a Client with the spec's 10s summarization timeout as a
// default (the reranker call reuses it; callers needing the 5s write-back
// timeout should set HTTPClient explicitly).
func New(baseURL, apiKey, model string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Log:        log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Rerank sends up to the caller-limited set of candidate texts to the LLM
// and asks for a JSON array of indices in ranked order. If the call fails or
// the response does not parse as a JSON array, it returns ok=false and the
// caller should keep the original order — the reranker must never fail the
// recall request.
func (c *Client) Rerank(ctx context.Context, texts []string) (order []int, ok bool) {
	if c == nil || c.BaseURL == "" || len(texts) == 0 {
		return nil, false
	}
	prompt := buildRerankPrompt(texts)
	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You rerank a list of candidate memories by relevance. Respond with only a JSON array of zero-based indices, most relevant first."},
			{Role: "user", Content: prompt},
		},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Log.Warn("llmrerank: request failed, keeping original order", "error", err)
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Log.Warn("llmrerank: non-2xx response, keeping original order", "status", resp.StatusCode)
		return nil, false
	}
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil || len(cr.Choices) == 0 {
		c.Log.Warn("llmrerank: malformed response, keeping original order")
		return nil, false
	}
	var indices []int
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &indices); err != nil {
		c.Log.Warn("llmrerank: response content not a JSON array, keeping original order")
		return nil, false
	}
	return indices, true
}

func buildRerankPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Candidates:\n")
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i, t)
	}
	return b.String()
}
