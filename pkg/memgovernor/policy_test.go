package memgovernor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

func TestClassifyObservationIgnoreShortNeutralText(t *testing.T) {
	salience, kind := ClassifyObservation(Observation{Text: "ok"})
	assert.Less(t, salience, 0.2)
	assert.Equal(t, DecisionIgnore, kind)
}

func TestClassifyObservationExplicitPrefixClampsHigh(t *testing.T) {
	salience, kind := ClassifyObservation(Observation{Text: "!remember buy milk tomorrow"})
	assert.GreaterOrEqual(t, salience, 0.9)
	assert.Equal(t, DecisionCandidate, kind)
}

func TestClassifyObservationExplicitReasonMetadataClampsHigh(t *testing.T) {
	salience, kind := ClassifyObservation(Observation{Text: "short note", Metadata: map[string]any{"reason": "explicit"}})
	assert.GreaterOrEqual(t, salience, 0.9)
	assert.Equal(t, DecisionCandidate, kind)
}

func TestClassifyObservationCommitmentPhraseClamps(t *testing.T) {
	salience, _ := ClassifyObservation(Observation{Text: "I will always use tabs"})
	assert.GreaterOrEqual(t, salience, 0.6)
}

func TestSalienceMonotonicityOnKeywordAddition(t *testing.T) {
	base, _ := ClassifyObservation(Observation{Text: "Let's meet at the cafe"})
	boosted, _ := ClassifyObservation(Observation{Text: "Let's meet at the cafe, please remember this"})
	assert.GreaterOrEqual(t, boosted, base)
}

func TestCanonicalizeCollapsesWhitespaceAndTrims(t *testing.T) {
	out := models.Canonicalize("  hello   world  \n\tfoo  ")
	assert.Equal(t, "hello world foo", out)
}

func TestCanonicalizeCapsAt500Chars(t *testing.T) {
	long := ""
	for i := 0; i < 600; i++ {
		long += "a"
	}
	out := models.Canonicalize(long)
	assert.LessOrEqual(t, len(out), 500)
}

func TestExtractKeywordsFiltersShortTokens(t *testing.T) {
	kws := models.ExtractKeywords("I am going to the big important meeting")
	assert.Contains(t, kws, "important")
	assert.Contains(t, kws, "meeting")
	assert.Contains(t, kws, "going")
	assert.NotContains(t, kws, "am")
	assert.NotContains(t, kws, "the")
}

func TestConsolidateEpisodicEmitsEveryEvent(t *testing.T) {
	events := []models.WorkingEvent{
		{Text: "Met Bob at the park", Source: "chat"},
		{Text: "Discussed the weather", Source: "chat"},
	}
	grouped := Consolidate(events, ModeAll)
	require.Len(t, grouped[models.KindEpisodic], 2)
	assert.Equal(t, 0.5, grouped[models.KindEpisodic][0].Confidence)
}

func TestConsolidateSemanticRequiresTrigger(t *testing.T) {
	events := []models.WorkingEvent{
		{Text: "I always back up my files on Fridays"},
		{Text: "Nothing notable happened today"},
	}
	grouped := Consolidate(events, ModeAll)
	require.Len(t, grouped[models.KindSemantic], 1)
	assert.Equal(t, 0.7, grouped[models.KindSemantic][0].Confidence)
}

func TestConsolidateProceduralDetectsRunbookKeyword(t *testing.T) {
	events := []models.WorkingEvent{
		{Text: "Check the deployment runbook before restarting"},
	}
	grouped := Consolidate(events, ModeAll)
	require.Len(t, grouped[models.KindProcedural], 1)
	assert.Equal(t, 0.65, grouped[models.KindProcedural][0].Confidence)
}

func TestConsolidateProceduralDetectsLeadingVerb(t *testing.T) {
	events := []models.WorkingEvent{
		{Text: "run the nightly batch job"},
	}
	grouped := Consolidate(events, ModeAll)
	require.Len(t, grouped[models.KindProcedural], 1)
	assert.Equal(t, 0.55, grouped[models.KindProcedural][0].Confidence)
}
