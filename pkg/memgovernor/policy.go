package memgovernor

import (
	"regexp"
	"strings"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// DecisionKind is the outcome of classifying an observation (component F).
type DecisionKind string

const (
	DecisionIgnore    DecisionKind = "ignore"
	DecisionWorking   DecisionKind = "working"
	DecisionCandidate DecisionKind = "candidate"
)

// salienceKeywords is the watchlist driving keyword_term in the salience
// formula, pinned against original_source/memory_governor/mem_policy.py.
var salienceKeywords = []string{
	"remember", "note", "important", "prefer", "always", "never",
	"please", "do not", "don't", "todo", "task", "tomorrow", "next week",
}

var commitmentPattern = regexp.MustCompile(`(?i)\b(always|never|prefer|i will|i'll|please remember)\b`)

// Observation is the minimal input classification needs from an /observe
// request.
type Observation struct {
	Text     string
	Metadata map[string]any
}

// ClassifyObservation returns the salience score and decision kind for an
// observation, per spec.md 4.F.
func ClassifyObservation(obs Observation) (float64, DecisionKind) {
	text := strings.TrimSpace(obs.Text)
	base := 0.1 + minFloat(0.5, float64(len(text))/4000.0)
	base += keywordScore(text)

	lower := strings.ToLower(text)
	reason, _ := obs.Metadata["reason"].(string)
	if strings.HasPrefix(lower, "!remember") || strings.HasPrefix(lower, "!recall") || reason == "explicit" {
		base = maxFloat(base, 0.9)
	}
	if commitmentPattern.MatchString(text) {
		base = maxFloat(base, 0.6)
	}

	salience := minFloat(1.0, base)
	var kind DecisionKind
	switch {
	case salience < 0.2:
		kind = DecisionIgnore
	case salience < 0.4:
		kind = DecisionWorking
	default:
		kind = DecisionCandidate
	}
	return salience, kind
}

func keywordScore(text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range salienceKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return minFloat(1.0, 0.15*float64(hits))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ConsolidationMode selects which kinds a consolidation pass extracts.
type ConsolidationMode string

const (
	ModeEpisodic   ConsolidationMode = "episodic"
	ModeSemantic   ConsolidationMode = "semantic"
	ModeProcedural ConsolidationMode = "procedural"
	ModeAll        ConsolidationMode = "all"
)

// ExtractedItem is one consolidation extraction, ready to be enqueued as a
// write-back payload.
type ExtractedItem struct {
	Text       string
	Kind       models.MemoryKind
	Confidence float64
	UserID     string
	Provenance map[string]any
}

var semanticTriggers = []string{"prefer", "always", "never", "like", "please remember", "compose", "plugin"}
var semanticStrongTriggers = []string{"prefer", "always", "never"}
var proceduralPrefixes = []string{"run", "use", "start", "stop", "runbook", "task", "todo"}

// Consolidate extracts episodic/semantic/procedural items from a batch of
// working events per spec.md 4.F, grouped by kind.
func Consolidate(events []models.WorkingEvent, mode ConsolidationMode) map[models.MemoryKind][]ExtractedItem {
	out := map[models.MemoryKind][]ExtractedItem{
		models.KindEpisodic:   {},
		models.KindSemantic:   {},
		models.KindProcedural: {},
	}

	for _, ev := range events {
		text := ev.Text
		lower := strings.ToLower(text)
		provenance := map[string]any{
			"source":     ev.Source,
			"event_id":   ev.EventID,
			"scope_kind": string(ev.Scope.Kind),
			"scope_id":   ev.Scope.ID,
			"timestamp":  ev.Timestamp,
		}

		if mode == ModeAll || mode == ConsolidationMode(models.KindEpisodic) {
			out[models.KindEpisodic] = append(out[models.KindEpisodic], ExtractedItem{
				Text: text, Kind: models.KindEpisodic, Confidence: 0.5, UserID: ev.UserID, Provenance: provenance,
			})
		}

		if mode == ModeAll || mode == ConsolidationMode(models.KindSemantic) {
			if containsAny(lower, semanticTriggers) {
				conf := 0.6
				if containsAny(lower, semanticStrongTriggers) {
					conf = 0.7
				}
				out[models.KindSemantic] = append(out[models.KindSemantic], ExtractedItem{
					Text: models.Canonicalize(text), Kind: models.KindSemantic, Confidence: conf, UserID: ev.UserID, Provenance: provenance,
				})
			}
		}

		if mode == ModeAll || mode == ConsolidationMode(models.KindProcedural) {
			firstToken := firstWord(lower)
			if containsString(proceduralPrefixes, firstToken) || strings.Contains(lower, "runbook") || strings.Contains(lower, "restart") {
				conf := 0.55
				if strings.Contains(lower, "runbook") {
					conf = 0.65
				}
				out[models.KindProcedural] = append(out[models.KindProcedural], ExtractedItem{
					Text: models.Canonicalize(text), Kind: models.KindProcedural, Confidence: conf, UserID: ev.UserID, Provenance: provenance,
				})
			}
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
