// Package models defines the shared entities of the memory fabric: the
// canonical MemoryRecord, the Governor's short-term WorkingEvent, the
// per-scope ConsolidationCursor, and the durable QueueJob.
package models

import "strings"

// ScopeKind identifies the kind of conversational container a memory or
// event belongs to.
type ScopeKind string

const (
	ScopeRoom   ScopeKind = "room"
	ScopeUser   ScopeKind = "user"
	ScopeGlobal ScopeKind = "global"
)

// Scope is a (kind, id) pair identifying the conversational container.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

// Key returns the "<kind>:<id>" form used as a ConsolidationCursor map key.
func (s Scope) Key() string {
	return string(s.Kind) + ":" + s.ID
}

// MemoryKind enumerates the recognized values of metadata["kind"].
type MemoryKind string

const (
	KindEpisodic   MemoryKind = "episodic"
	KindSemantic   MemoryKind = "semantic"
	KindProcedural MemoryKind = "procedural"
	KindThread     MemoryKind = "thread"
	KindPreference MemoryKind = "preference"
)

// Metadata is an open mapping from string keys to arbitrary JSON values.
// Recognized keys are promoted into typed accessors below; unknown keys
// survive round-trips verbatim because the underlying map is never pruned.
type Metadata map[string]any

func (m Metadata) str(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m Metadata) float(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func (m Metadata) Source() (string, bool)   { return m.str("source") }
func (m Metadata) EventID() (string, bool)  { return m.str("event_id") }
func (m Metadata) Title() (string, bool)    { return m.str("title") }
func (m Metadata) Salience() (float64, bool)  { return m.float("salience") }
func (m Metadata) Confidence() (float64, bool) { return m.float("confidence") }
func (m Metadata) Timestamp() (int64, bool) {
	f, ok := m.float("timestamp")
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func (m Metadata) Kind() (MemoryKind, bool) {
	s, ok := m.str("kind")
	if !ok {
		return "", false
	}
	return MemoryKind(s), true
}

func (m Metadata) Sticky() bool {
	v, _ := m["sticky"].(bool)
	return v
}

func (m Metadata) Sensitive() bool {
	v, _ := m["sensitive"].(bool)
	return v
}

// Keywords returns metadata["keywords"] as a []string regardless of whether
// it round-tripped through JSON as []any or was set directly as []string.
func (m Metadata) Keywords() []string {
	v, ok := m["keywords"]
	if !ok {
		return nil
	}
	switch kw := v.(type) {
	case []string:
		return kw
	case []any:
		out := make([]string, 0, len(kw))
		for _, e := range kw {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (m Metadata) Scope() (Scope, bool) {
	v, ok := m["scope"]
	if !ok {
		return Scope{}, false
	}
	switch s := v.(type) {
	case Scope:
		return s, true
	case map[string]any:
		kind, _ := s["kind"].(string)
		id, _ := s["id"].(string)
		return Scope{Kind: ScopeKind(kind), ID: id}, true
	}
	return Scope{}, false
}

// MemoryRecord is the canonical persisted unit (component A).
type MemoryRecord struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    *float64 `json:"score,omitempty"`
}

// Canonicalize collapses whitespace runs to single spaces, trims, and caps
// length at 500 characters, per the spec's canonicalization rule.
func Canonicalize(text string) string {
	fields := strings.Fields(text)
	cleaned := strings.Join(fields, " ")
	if runes := []rune(cleaned); len(runes) > 500 {
		cleaned = string(runes[:500])
	}
	return cleaned
}

// ExtractKeywords lowercases, splits on non-word boundaries, keeps tokens of
// length >= 4, and returns a sorted, de-duplicated slice.
func ExtractKeywords(text string) []string {
	tokens := wordTokenize(strings.ToLower(text))
	set := make(map[string]struct{})
	for _, t := range tokens {
		if len(t) >= 4 {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}
