package hippocampus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrRemoteMisconfigured is returned when a remote backend is constructed
// without an API key, matching the spec's "construction fails with a
// configuration error if no API key is supplied" rule.
var ErrRemoteMisconfigured = errors.New("hippocampus: remote backend requires an api key")

// remoteBackend wraps an external managed memory service over HTTP. It
// models the original's Mem0RemoteClient SDK wrapper as a plain REST client,
// since no Go SDK for such a service is available in the example corpus and
// no ecosystem REST client library appears anywhere in it either (grounded
// on the teacher's own direct net/http usage in pkg/mcp/transport.go).
type remoteBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newRemoteBackend(baseURL, apiKey string) (*remoteBackend, error) {
	if apiKey == "" {
		return nil, ErrRemoteMisconfigured
	}
	return &remoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (b *remoteBackend) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hippocampus: remote backend returned status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *remoteBackend) Add(ctx context.Context, userID, text string, metadata map[string]any) (Payload, error) {
	resp, err := b.do(ctx, http.MethodPost, "/v1/memories", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
		"user_id":  userID,
		"metadata": metadata,
	})
	if err != nil {
		return nil, err
	}
	return normalizeRemotePayload(resp), nil
}

func (b *remoteBackend) Query(ctx context.Context, userID, query string, limit int) ([]Payload, error) {
	resp, err := b.do(ctx, http.MethodPost, "/v1/memories/search", map[string]any{
		"query":   query,
		"user_id": userID,
		"top_k":   limit,
	})
	if err != nil {
		return nil, err
	}
	return normalizeRemoteResults(resp), nil
}

func (b *remoteBackend) List(ctx context.Context, userID string, limit int) ([]Payload, error) {
	resp, err := b.do(ctx, http.MethodGet, fmt.Sprintf("/v1/memories?user_id=%s&limit=%d", userID, limit), nil)
	if err != nil {
		return nil, err
	}
	return normalizeRemoteResults(resp), nil
}

func (b *remoteBackend) Delete(ctx context.Context, id string) (bool, error) {
	resp, err := b.do(ctx, http.MethodDelete, "/v1/memories/"+id, nil)
	if err != nil {
		return false, err
	}
	if v, ok := resp["deleted"].(bool); ok {
		return v, nil
	}
	if v, ok := resp["success"].(bool); ok {
		return v, nil
	}
	return false, nil
}

func (b *remoteBackend) Summarize(_ context.Context, texts []string, maxLength int) (string, error) {
	joined := strings.Join(texts, " ")
	if len(joined) <= maxLength {
		return joined, nil
	}
	if maxLength <= 1 {
		return joined[:maxLength], nil
	}
	return joined[:maxLength-1] + "…", nil
}

func normalizeRemoteResults(resp map[string]any) []Payload {
	raw, _ := resp["results"].([]any)
	out := make([]Payload, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, normalizeRemotePayload(m))
		}
	}
	return out
}

// normalizeRemotePayload copies a "memory" field into "text" when "text" is
// absent, matching the original's result normalization.
func normalizeRemotePayload(m map[string]any) Payload {
	p := Payload(m)
	if _, hasText := p["text"]; !hasText {
		if mem, ok := p["memory"]; ok {
			p["text"] = mem
		}
	}
	return p
}
