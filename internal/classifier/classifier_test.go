package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Complete(_ context.Context, _ generation.Request) (string, error) {
	return f.reply, f.err
}

func TestClassifyWithModel(t *testing.T) {
	c := New(&fakeGenerator{reply: `{"intent": "lineage", "dataset": "ActivitySummary", "field": "SOURCE_ID"}`})
	got := c.Classify(context.Background(), "where does SOURCE_ID come from?")
	assert.Equal(t, catalogtype.IntentLineage, got.Intent)
	assert.Equal(t, "ActivitySummary", got.Dataset)
	assert.Equal(t, "SOURCE_ID", got.Field)
}

func TestClassifyStripsMarkdownFences(t *testing.T) {
	c := New(&fakeGenerator{reply: "```json\n{\"intent\": \"schema\", \"dataset\": \"RoadsCore\", \"field\": \"\"}\n```"})
	got := c.Classify(context.Background(), "what fields does RoadsCore have?")
	assert.Equal(t, catalogtype.IntentSchema, got.Intent)
	assert.Equal(t, "RoadsCore", got.Dataset)
	assert.Empty(t, got.Field)
}

func TestClassifyUnknownIntentBecomesGeneral(t *testing.T) {
	c := New(&fakeGenerator{reply: `{"intent": "philosophy", "dataset": "", "field": ""}`})
	got := c.Classify(context.Background(), "why do forests exist?")
	assert.Equal(t, catalogtype.IntentGeneral, got.Intent)
}

func TestClassifyFallsBackOnModelError(t *testing.T) {
	c := New(&fakeGenerator{err: errors.New("model offline")})
	got := c.Classify(context.Background(), "what is the schema of Activity_BrushDisposal?")
	assert.Equal(t, catalogtype.IntentSchema, got.Intent)
	assert.Equal(t, "Activity_BrushDisposal", got.Dataset)
}

func TestClassifyFallsBackOnGarbageReply(t *testing.T) {
	c := New(&fakeGenerator{reply: "I think this is probably about lineage."})
	got := c.Classify(context.Background(), "trace the provenance of GIS_ACRES")
	assert.Equal(t, catalogtype.IntentLineage, got.Intent)
}

func TestHeuristicClassify(t *testing.T) {
	tests := []struct {
		question string
		intent   catalogtype.QueryIntent
	}{
		{"where does SOURCE_ID come from?", catalogtype.IntentLineage},
		{"how does RoadsCore relate to RoadsAttributes?", catalogtype.IntentRelationships},
		{"how complete is the SUID column data?", catalogtype.IntentQuality},
		{"which datasets cover fire history?", catalogtype.IntentDiscovery},
		{"what columns are in Activity_BrushDisposal?", catalogtype.IntentSchema},
		{"tell me about brush disposal", catalogtype.IntentGeneral},
	}
	for _, tt := range tests {
		got := heuristicClassify(tt.question)
		assert.Equal(t, tt.intent, got.Intent, "question: %s", tt.question)
	}
}

func TestClassifyWithoutGeneratorUsesHeuristics(t *testing.T) {
	c := New(nil)
	got := c.Classify(context.Background(), "what is the data type of the STATE_CODE attribute?")
	assert.Equal(t, catalogtype.IntentSchema, got.Intent)
	assert.Equal(t, "STATE_CODE", got.Dataset)
}

func TestExtractTarget(t *testing.T) {
	ds, f := ExtractTarget("where does ActivitySummary.SOURCE_ID come from?")
	assert.Equal(t, "ActivitySummary", ds)
	assert.Equal(t, "SOURCE_ID", f)

	ds, f = ExtractTarget("what fields does Activity_BrushDisposal have?")
	assert.Equal(t, "Activity_BrushDisposal", ds)
	assert.Empty(t, f)

	// All-caps tokens read as identifiers, short ones do not.
	ds, _ = ExtractTarget("is OBJECTID unique?")
	assert.Equal(t, "OBJECTID", ds)
	ds, _ = ExtractTarget("is US data included?")
	assert.Empty(t, ds)

	ds, f = ExtractTarget("tell me about the forests")
	assert.Empty(t, ds)
	assert.Empty(t, f)
}

func TestIdentifierLike(t *testing.T) {
	assert.True(t, identifierLike("GIS_ACRES"))
	assert.True(t, identifierLike("OBJECTID"))
	assert.True(t, identifierLike("RoadsCore"))
	assert.False(t, identifierLike("forests"))
	assert.False(t, identifierLike("Which"))
	assert.False(t, identifierLike("US"))
}
