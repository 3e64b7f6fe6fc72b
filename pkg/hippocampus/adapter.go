package hippocampus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// AdapterConfig selects and configures the primary backend. The fallback is
// always an in-memory backend constructed alongside it.
type AdapterConfig struct {
	Backend       Name
	SQLitePath    string
	RemoteBaseURL string
	RemoteAPIKey  string
}

// Adapter is the storage façade over a primary backend with an always-on
// in-memory fallback (component C). It normalizes heterogeneous payloads
// into MemoryRecord values.
type Adapter struct {
	primary  Backend
	fallback *memoryBackend
	log      *slog.Logger

	// fallbackActive is set when the primary failed to construct, when the
	// backend name is unknown, or when any primary call has failed and been
	// served by the fallback. Surfaced by /doctor.
	fallbackActive bool
	backendName    Name
}

// NewAdapter selects the primary backend per spec.md 4.C and always builds
// an in-memory fallback alongside it.
func NewAdapter(cfg AdapterConfig, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	fallback := newMemoryBackend()
	a := &Adapter{fallback: fallback, log: log, backendName: cfg.Backend}

	switch cfg.Backend {
	case "", BackendMemory, "inmemory", "disabled":
		a.primary = fallback
	case BackendSQLite, "persistent", "fallback":
		sb, err := newSQLiteBackend(cfg.SQLitePath)
		if err != nil {
			log.Warn("hippocampus: sqlite backend construction failed, using fallback", "error", err)
			a.primary = fallback
			a.fallbackActive = true
			break
		}
		a.primary = sb
	case BackendRemote, "mem0":
		rb, err := newRemoteBackend(cfg.RemoteBaseURL, cfg.RemoteAPIKey)
		if err != nil {
			log.Warn("hippocampus: remote backend construction failed, using fallback", "error", err)
			a.primary = fallback
			a.fallbackActive = true
			break
		}
		a.primary = rb
	default:
		log.Warn("hippocampus: unknown backend name, using fallback", "backend", cfg.Backend)
		a.primary = fallback
		a.fallbackActive = true
	}
	return a
}

// BackendName reports the configured backend name, for /doctor.
func (a *Adapter) BackendName() Name { return a.backendName }

// FallbackActive reports whether the adapter is currently serving all
// traffic from the in-memory fallback (either by construction failure or
// because the fallback was selected as primary).
func (a *Adapter) FallbackActive() bool { return a.fallbackActive || a.primary == a.fallback }

// Add routes through primary, falling back to the in-memory backend on any
// primary error (the invocation policy of spec.md 4.C).
func (a *Adapter) Add(ctx context.Context, userID, text string, metadata map[string]any) (models.MemoryRecord, error) {
	p, err := a.primary.Add(ctx, userID, text, metadata)
	if err != nil {
		a.log.Warn("hippocampus: primary Add failed, using fallback", "error", err)
		a.fallbackActive = true
		p, err = a.fallback.Add(ctx, userID, text, metadata)
		if err != nil {
			return models.MemoryRecord{}, fmt.Errorf("hippocampus: fallback Add failed: %w", err)
		}
	}
	return normalize(p), nil
}

func (a *Adapter) Query(ctx context.Context, userID, query string, limit int) ([]models.MemoryRecord, error) {
	items, err := a.primary.Query(ctx, userID, query, limit)
	if err != nil {
		a.log.Warn("hippocampus: primary Query failed, using fallback", "error", err)
		a.fallbackActive = true
		items, err = a.fallback.Query(ctx, userID, query, limit)
		if err != nil {
			return nil, fmt.Errorf("hippocampus: fallback Query failed: %w", err)
		}
	}
	return normalizeAll(items), nil
}

func (a *Adapter) List(ctx context.Context, userID string, limit int) ([]models.MemoryRecord, error) {
	items, err := a.primary.List(ctx, userID, limit)
	if err != nil {
		a.log.Warn("hippocampus: primary List failed, using fallback", "error", err)
		a.fallbackActive = true
		items, err = a.fallback.List(ctx, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("hippocampus: fallback List failed: %w", err)
		}
	}
	return normalizeAll(items), nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := a.primary.Delete(ctx, id)
	if err != nil {
		a.log.Warn("hippocampus: primary Delete failed, using fallback", "error", err)
		a.fallbackActive = true
		ok, err = a.fallback.Delete(ctx, id)
		if err != nil {
			return false, fmt.Errorf("hippocampus: fallback Delete failed: %w", err)
		}
	}
	return ok, nil
}

func (a *Adapter) Summarize(ctx context.Context, texts []string, maxLength int) (string, error) {
	s, err := a.primary.Summarize(ctx, texts, maxLength)
	if err != nil {
		a.log.Warn("hippocampus: primary Summarize failed, using fallback", "error", err)
		a.fallbackActive = true
		s, err = a.fallback.Summarize(ctx, texts, maxLength)
		if err != nil {
			return "", fmt.Errorf("hippocampus: fallback Summarize failed: %w", err)
		}
	}
	return s, nil
}

// normalize converts a raw Payload into a MemoryRecord per spec.md 4.C:
// derive id from the first non-empty of id/_id/memory_id else a fresh id;
// coerce non-map metadata into {"value": v}; coerce score via float
// parsing, null on failure.
func normalize(p Payload) models.MemoryRecord {
	id, _ := firstNonEmpty(p, "id", "_id", "memory_id")
	if id == "" {
		id = uuid.NewString()
	}
	userID, _ := p["user_id"].(string)
	text, _ := p["text"].(string)

	var meta models.Metadata
	switch m := p["metadata"].(type) {
	case map[string]any:
		meta = models.Metadata(m)
	case models.Metadata:
		meta = m
	case nil:
		meta = models.Metadata{}
	default:
		meta = models.Metadata{"value": m}
	}

	rec := models.MemoryRecord{ID: id, UserID: userID, Text: text, Metadata: meta}
	if raw, ok := p["score"]; ok {
		if f, ok := maybeFloat(raw); ok {
			rec.Score = &f
		}
	}
	return rec
}

func normalizeAll(items []Payload) []models.MemoryRecord {
	out := make([]models.MemoryRecord, 0, len(items))
	for _, p := range items {
		out = append(out, normalize(p))
	}
	return out
}

func firstNonEmpty(p Payload, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func maybeFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
