package memgovernor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// WriteBackClient is component H: prefers the ingest endpoint, falls back to
// a direct storage write on any failure; queries with local filtering.
// Pinned against original_source/memory_governor/clients.py's
// HippocampusClient.
type WriteBackClient struct {
	IngestURL         string
	HippocampusURL    string
	HippocampusAPIKey string
	HTTPClient        *http.Client
}

// NewWriteBackClient builds a client with the spec's default 5s timeout.
func NewWriteBackClient(ingestURL, hippocampusURL, apiKey string) *WriteBackClient {
	return &WriteBackClient{
		IngestURL:         ingestURL,
		HippocampusURL:    hippocampusURL,
		HippocampusAPIKey: apiKey,
		HTTPClient:        &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *WriteBackClient) headers(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.HippocampusAPIKey != "" {
		req.Header.Set("X-API-Key", c.HippocampusAPIKey)
	}
}

// PostMemory POSTs to the ingest URL first; on any error it falls back to a
// direct POST to the Hippocampus /memories endpoint. Returns the id found in
// either response, or "".
func (c *WriteBackClient) PostMemory(ctx context.Context, payload map[string]any) (string, error) {
	if c.IngestURL != "" {
		if id, err := c.postJSON(ctx, c.IngestURL+"/ingest", payload); err == nil {
			return id, nil
		}
	}
	if c.HippocampusURL == "" {
		return "", fmt.Errorf("memgovernor: no hippocampus url configured")
	}
	return c.postJSON(ctx, c.HippocampusURL+"/memories", payload)
}

func (c *WriteBackClient) postJSON(ctx context.Context, url string, payload map[string]any) (string, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	c.headers(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("memgovernor: post memory returned status %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return extractID(body), nil
}

func extractID(body map[string]any) string {
	if mem, ok := body["memory"].(map[string]any); ok {
		if id, ok := mem["id"].(string); ok {
			return id
		}
	}
	if id, ok := body["id"].(string); ok {
		return id
	}
	return ""
}

// Candidate is one locally-filtered or remotely-returned memory, carrying
// enough of the MemoryRecord to rank and filter.
type Candidate struct {
	Text       string
	Keywords   []string
	Kind       string
	Confidence *float64
	Timestamp  *int64
	Source     string
	EventID    string
	RoomID     string
}

// QueryMemories GETs the storage query endpoint; if the server returns an
// empty list it performs a second GET without a query and filters locally,
// per spec.md 4.H.
func (c *WriteBackClient) QueryMemories(ctx context.Context, userID, query string, limit int) ([]Candidate, error) {
	items, err := c.getMemories(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return toCandidates(items), nil
	}

	listed, err := c.getMemories(ctx, userID, "", limit)
	if err != nil {
		return nil, err
	}
	candidates := toCandidates(listed)
	return localFilterAndSort(candidates, query, limit), nil
}

func (c *WriteBackClient) getMemories(ctx context.Context, userID, query string, limit int) ([]map[string]any, error) {
	if c.HippocampusURL == "" {
		return nil, nil
	}
	u := fmt.Sprintf("%s/memories/%s?limit=%d", c.HippocampusURL, url.PathEscape(userID), limit)
	if query != "" {
		u += "&query=" + url.QueryEscape(query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.headers(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("memgovernor: query memories returned status %d", resp.StatusCode)
	}
	var body struct {
		Memories []map[string]any `json:"memories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Memories, nil
}

func toCandidates(items []map[string]any) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		text, _ := it["text"].(string)
		if text == "" {
			text, _ = it["memory"].(string)
		}
		meta, _ := it["metadata"].(map[string]any)
		cand := Candidate{Text: text}
		if meta != nil {
			m := models.Metadata(meta)
			cand.Keywords = m.Keywords()
			if kind, ok := m.Kind(); ok {
				cand.Kind = string(kind)
			}
			if conf, ok := m.Confidence(); ok {
				cand.Confidence = &conf
			}
			if ts, ok := m.Timestamp(); ok {
				cand.Timestamp = &ts
			}
			if src, ok := m.Source(); ok {
				cand.Source = src
			}
			if evID, ok := m.EventID(); ok {
				cand.EventID = evID
			}
		}
		out = append(out, cand)
	}
	return out
}

// localFilterAndSort implements the substring-or-AND-then-OR token filter
// and recency-only sort from spec.md 4.H, matching clients.py's
// HippocampusClient.query_memories local fallback: a candidate matches if
// the query is a substring of its text or its joined keyword list, or (for
// multi-token queries) if every token appears in the text or keywords; only
// when that pass finds nothing does a looser any-token-present pass run.
func localFilterAndSort(candidates []Candidate, query string, limit int) []Candidate {
	if query == "" {
		return truncate(candidates, limit)
	}
	tokens := tokenizeQuery(query)
	lowerQuery := strings.ToLower(query)

	var matched []Candidate
	for _, c := range candidates {
		text := strings.ToLower(c.Text)
		kwLower := lowerKeywords(c.Keywords)
		if strings.Contains(text, lowerQuery) || strings.Contains(strings.Join(kwLower, " "), lowerQuery) {
			matched = append(matched, c)
			continue
		}
		if len(tokens) > 0 && allTokensPresent(text, kwLower, tokens) {
			matched = append(matched, c)
		}
	}

	if len(matched) == 0 && len(tokens) > 0 {
		for _, c := range candidates {
			text := strings.ToLower(c.Text)
			kwLower := lowerKeywords(c.Keywords)
			if anyTokenPresent(text, kwLower, tokens) {
				matched = append(matched, c)
			}
		}
	}

	if len(matched) > 0 {
		sortByRecency(matched)
		return truncate(matched, limit)
	}
	return truncate(candidates, limit)
}

func tokenizeQuery(query string) []string {
	return models.ExtractKeywordsNoMinLen(query)
}

func lowerKeywords(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = strings.ToLower(k)
	}
	return out
}

func allTokensPresent(text string, keywords []string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(text, t) && !containsExact(keywords, t) {
			return false
		}
	}
	return true
}

func anyTokenPresent(text string, keywords []string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(text, t) || containsExact(keywords, t) {
			return true
		}
	}
	return false
}

func containsExact(keywords []string, token string) bool {
	for _, k := range keywords {
		if k == token {
			return true
		}
	}
	return false
}

func recency(ts *int64, now int64) float64 {
	if ts == nil {
		return 0.3
	}
	ageDays := float64(now-*ts) / 86400.0
	if ageDays < 0 {
		ageDays = 0
	}
	r := 1.0 - ageDays/30.0
	if r < 0 {
		r = 0
	}
	return r
}

func sortByRecency(candidates []Candidate) {
	now := time.Now().Unix()
	sort.SliceStable(candidates, func(i, j int) bool {
		return recency(candidates[i].Timestamp, now) > recency(candidates[j].Timestamp, now)
	})
}

func truncate(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
