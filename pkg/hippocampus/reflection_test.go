package hippocampus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

func threadRecord(text string) models.MemoryRecord {
	return models.MemoryRecord{
		Text:     text,
		Metadata: models.Metadata{"kind": "thread"},
	}
}

func TestReflectEligibleThreadMatch(t *testing.T) {
	candidates := []models.MemoryRecord{
		threadRecord("We talked about docker compose plugin syntax before"),
	}
	out := Reflect(candidates, "Tell me about compose", "")
	assert.Contains(t, out, "Sam: This connects to")
	assert.Contains(t, out, "compose")
}

func TestReflectWrongKindIsSkipped(t *testing.T) {
	candidates := []models.MemoryRecord{
		{Text: "Server listens on port 54321", Metadata: models.Metadata{"kind": "fact"}},
	}
	out := Reflect(candidates, "what port is it on", "")
	assert.Empty(t, out)
}

func TestReflectNeverLeaksLogisticsKeyword(t *testing.T) {
	candidates := []models.MemoryRecord{
		threadRecord("The api key for the service is stored in the vault"),
	}
	out := Reflect(candidates, "tell me about the vault setup", "")
	assert.Empty(t, out, "logistics keyword must not leak when conversation lacks one")
}

func TestReflectAllowsLogisticsKeywordWhenConversationHasOne(t *testing.T) {
	candidates := []models.MemoryRecord{
		threadRecord("The api key rotation schedule is documented in the runbook"),
	}
	out := Reflect(candidates, "what's our api key rotation schedule", "")
	assert.NotEmpty(t, out)
}

func TestReflectBelowThresholdEmitsNothing(t *testing.T) {
	candidates := []models.MemoryRecord{
		threadRecord("Completely unrelated trivia about marine biology"),
	}
	out := Reflect(candidates, "let's discuss recursive descent parsers", "")
	assert.Empty(t, out)
}

func TestReflectSnippetTruncatesAt25Words(t *testing.T) {
	long := ""
	for i := 0; i < 40; i++ {
		long += "word "
	}
	out := snippet(long[:len(long)-1])
	assert.Contains(t, out, "…")
}
