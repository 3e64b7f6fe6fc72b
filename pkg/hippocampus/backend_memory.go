package hippocampus

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// memoryBackend is an ordered in-process sequence of payloads. It is always
// constructed as the fallback backend, and may also be selected as the
// primary when configured as "memory"/"inmemory" or when storage is
// disabled.
type memoryBackend struct {
	mu    sync.Mutex
	items []Payload
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{}
}

func (b *memoryBackend) Add(_ context.Context, userID, text string, metadata map[string]any) (Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := Payload{
		"id":       uuid.NewString(),
		"user_id":  userID,
		"text":     text,
		"metadata": metadata,
	}
	b.items = append(b.items, p)
	return p, nil
}

func (b *memoryBackend) Query(_ context.Context, userID, query string, limit int) ([]Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := strings.ToLower(query)
	out := make([]Payload, 0, limit)
	for _, p := range b.items {
		if p["user_id"] != userID {
			continue
		}
		text, _ := p["text"].(string)
		if q != "" && !strings.Contains(strings.ToLower(text), q) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *memoryBackend) List(_ context.Context, userID string, limit int) ([]Payload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Payload, 0, limit)
	for _, p := range b.items {
		if userID != "" && p["user_id"] != userID {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *memoryBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.items {
		if p["id"] == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (b *memoryBackend) Summarize(_ context.Context, texts []string, maxLength int) (string, error) {
	joined := strings.Join(texts, " ")
	if len(joined) <= maxLength {
		return joined, nil
	}
	if maxLength <= 1 {
		return joined[:maxLength], nil
	}
	return joined[:maxLength-1] + "…", nil
}
