package memgovernor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int64) *int64       { return &i }

func TestRankFiltersByKindAndMinConfidence(t *testing.T) {
	candidates := []Candidate{
		{Text: "a", Kind: "episodic", Confidence: floatPtr(0.9)},
		{Text: "b", Kind: "semantic", Confidence: floatPtr(0.3)},
		{Text: "c", Kind: "semantic", Confidence: floatPtr(0.8)},
	}
	filters := RecallFilters{Kinds: []string{"semantic"}, MinConfidence: floatPtr(0.5)}
	out := Rank(context.Background(), candidates, filters, 10, nil, 0)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].Text)
}

func TestRankOrdersByConfidenceAndRecency(t *testing.T) {
	candidates := []Candidate{
		{Text: "low-conf-recent", Confidence: floatPtr(0.2), Timestamp: nowPtr()},
		{Text: "high-conf-old", Confidence: floatPtr(0.9), Timestamp: intPtr(0)},
	}
	out := Rank(context.Background(), candidates, RecallFilters{}, 10, nil, 0)
	require.Len(t, out, 2)
	assert.Equal(t, "high-conf-old", out[0].Text)
}

func TestRankTruncatesToK(t *testing.T) {
	candidates := []Candidate{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	out := Rank(context.Background(), candidates, RecallFilters{}, 2, nil, 0)
	require.Len(t, out, 2)
}

func nowPtr() *int64 {
	var t int64 = 2000000000
	return &t
}
