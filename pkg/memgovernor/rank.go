package memgovernor

import (
	"context"
	"sort"
	"time"

	"github.com/sacredbrain/memoryfabric/pkg/llmrerank"
)

// RecallFilters narrows candidates before ranking, per spec.md 4.I.
type RecallFilters struct {
	Kinds         []string
	MinConfidence *float64
	SinceDays     *float64
}

// RecallItem is the final ranked shape returned by POST /recall.
type RecallItem struct {
	Text       string         `json:"text"`
	Kind       string         `json:"kind,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Timestamp  *int64         `json:"timestamp,omitempty"`
	Provenance map[string]any `json:"provenance"`
}

func applyFilters(candidates []Candidate, filters RecallFilters) []Candidate {
	now := time.Now().Unix()
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(filters.Kinds) > 0 && c.Kind != "" && !containsString(filters.Kinds, c.Kind) {
			continue
		}
		if filters.MinConfidence != nil && c.Confidence != nil && *c.Confidence < *filters.MinConfidence {
			continue
		}
		if filters.SinceDays != nil && c.Timestamp != nil {
			ageDays := float64(now-*c.Timestamp) / 86400.0
			if ageDays > *filters.SinceDays {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func score(c Candidate, now int64) float64 {
	conf := 0.5
	if c.Confidence != nil {
		conf = *c.Confidence
	}
	return conf*0.7 + recency(c.Timestamp, now)*0.3
}

// Rank applies spec.md 4.I/4.H's filters, recency+confidence scoring, and
// optional LLM rerank, returning the top k items.
func Rank(ctx context.Context, candidates []Candidate, filters RecallFilters, k int, reranker *llmrerank.Client, rerankMax int) []RecallItem {
	filtered := applyFilters(candidates, filters)

	now := time.Now().Unix()
	sort.SliceStable(filtered, func(i, j int) bool {
		return score(filtered[i], now) > score(filtered[j], now)
	})

	if reranker != nil && len(filtered) > 0 {
		n := len(filtered)
		if rerankMax > 0 && n > rerankMax {
			n = rerankMax
		}
		texts := make([]string, n)
		for i := 0; i < n; i++ {
			texts[i] = filtered[i].Text
		}
		if order, ok := reranker.Rerank(ctx, texts); ok && len(order) == n {
			reordered := make([]Candidate, n)
			for i, idx := range order {
				if idx < 0 || idx >= n {
					reordered = nil
					break
				}
				reordered[i] = filtered[idx]
			}
			if reordered != nil {
				copy(filtered[:n], reordered)
			}
		}
	}

	if k > 0 && len(filtered) > k {
		filtered = filtered[:k]
	}

	out := make([]RecallItem, 0, len(filtered))
	for _, c := range filtered {
		out = append(out, RecallItem{
			Text:       c.Text,
			Kind:       c.Kind,
			Confidence: c.Confidence,
			Timestamp:  c.Timestamp,
			Provenance: map[string]any{
				"source":   c.Source,
				"event_id": c.EventID,
				"room_id":  c.RoomID,
			},
		})
	}
	return out
}
