package hippocampus

import (
	"strings"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// reflectionPrefix and reflectionPhrase are the fixed constants the original
// keeps a list of (SOFT_PREFIXES/SOFT_PHRASES) but only ever uses the first
// entry of; modeled directly as constants since no caller selects among
// alternates.
const (
	reflectionPrefix = "Sam:"
	reflectionPhrase = "This connects to"
)

// logisticsKeywords are leaked-secret/connection-detail markers a reflection
// must never surface unless the conversation itself already contains one.
var logisticsKeywords = []string{
	"token", "secret", "password", "api key", "ip", "port",
	"localhost", "127.", "host.docker.internal",
}

const maxSnippetWords = 25

// Reflect implements component J: given candidate long-term memories
// (already fetched by the caller via a recall query on
// "<userMessage> <assistantReply>"), select the single best eligible one and
// return a soft-prefixed sentence, or "" if none qualifies.
func Reflect(candidates []models.MemoryRecord, userMessage, assistantReply string) string {
	conv := userMessage + " " + assistantReply
	convTokens := models.TokenSet(conv)
	convLower := strings.ToLower(conv)

	var best models.MemoryRecord
	bestScore := 0.0
	found := false

	for _, c := range candidates {
		if !eligible(c, convTokens, convLower) {
			continue
		}
		score := overlapScore(c.Text, convTokens)
		if score > bestScore {
			bestScore = score
			best = c
			found = true
		}
	}

	if !found || bestScore < 0.05 {
		return ""
	}
	return reflectionPrefix + " " + reflectionPhrase + " " + snippet(best.Text)
}

func eligible(c models.MemoryRecord, convTokens map[string]struct{}, convLower string) bool {
	if strings.TrimSpace(c.Text) == "" {
		return false
	}
	kind, _ := c.Metadata.Kind()
	if kind != models.KindThread && kind != models.KindPreference && !c.Metadata.Sticky() {
		return false
	}
	if c.Metadata.Sensitive() {
		if overlapCount(c.Text, convTokens) == 0 {
			return false
		}
	}
	if containsLogisticsKeyword(strings.ToLower(c.Text)) && !containsLogisticsKeyword(convLower) {
		return false
	}
	return true
}

func containsLogisticsKeyword(lower string) bool {
	for _, kw := range logisticsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func overlapCount(text string, convTokens map[string]struct{}) int {
	n := 0
	for t := range models.TokenSet(text) {
		if _, ok := convTokens[t]; ok {
			n++
		}
	}
	return n
}

// overlapScore is the asymmetric ratio |tokens(text) ∩ tokens(conv)| /
// |tokens(conv)| — the denominator is the conversation's token count, not
// the candidate's, matching the original's _overlap_score(a, b).
func overlapScore(text string, convTokens map[string]struct{}) float64 {
	if len(convTokens) == 0 {
		return 0
	}
	return float64(overlapCount(text, convTokens)) / float64(len(convTokens))
}

// snippet truncates text to 25 words, replacing any trailing punctuation
// with a single ellipsis when truncated.
func snippet(text string) string {
	words := strings.Fields(text)
	if len(words) <= maxSnippetWords {
		return text
	}
	truncated := strings.Join(words[:maxSnippetWords], " ")
	truncated = strings.TrimRight(truncated, ".,;:!?")
	return truncated + "…"
}
