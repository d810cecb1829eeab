package answer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
	"github.com/fsgeodata/catalog-kb-go/internal/classifier"
	"github.com/fsgeodata/catalog-kb-go/internal/generation"
)

type fakeCatalog struct {
	schema   *catalogtype.DatasetSchema
	lineage  *catalogtype.LineageResult
	rels     *catalogtype.RelationshipResult
	err      error
	lastName string
}

func (f *fakeCatalog) GetSchema(_ context.Context, name string) (*catalogtype.DatasetSchema, error) {
	f.lastName = name
	return f.schema, f.err
}

func (f *fakeCatalog) GetFieldLineage(_ context.Context, dataset, field string) (*catalogtype.LineageResult, error) {
	f.lastName = dataset + "." + field
	return f.lineage, f.err
}

func (f *fakeCatalog) GetRelationships(_ context.Context, dataset string) (*catalogtype.RelationshipResult, error) {
	f.lastName = dataset
	return f.rels, f.err
}

type fakeRetriever struct {
	docs []catalogtype.RankedDocument
	err  error
}

func (f *fakeRetriever) Search(_ context.Context, _ string, _ int) ([]catalogtype.RankedDocument, error) {
	return f.docs, f.err
}

type scriptedGenerator struct {
	reply string
	err   error
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Complete(_ context.Context, _ generation.Request) (string, error) {
	return g.reply, g.err
}

// intentClassifier builds a classifier whose model always returns the
// given routing decision.
func intentClassifier(intent, dataset, field string) *classifier.Classifier {
	reply := fmt.Sprintf(`{"intent": %q, "dataset": %q, "field": %q}`, intent, dataset, field)
	return classifier.New(&scriptedGenerator{reply: reply})
}

func TestRespondSchemaIntent(t *testing.T) {
	catalog := &fakeCatalog{schema: &catalogtype.DatasetSchema{
		Dataset: catalogtype.Dataset{Name: "Activity_BrushDisposal", Kind: catalogtype.KindSpatial},
		Attributes: []catalogtype.Attribute{
			{Label: "OBJECTID", DataType: "integer", PrimaryKey: true},
		},
	}}
	gen := &scriptedGenerator{reply: "Activity_BrushDisposal has one field, OBJECTID."}
	a := New(catalog, &fakeRetriever{}, intentClassifier("schema", "Activity_BrushDisposal", ""), gen)

	ans, err := a.Respond(context.Background(), "what fields does Activity_BrushDisposal have?", 0)
	require.NoError(t, err)
	assert.Equal(t, catalogtype.IntentSchema, ans.Intent)
	assert.Equal(t, "Activity_BrushDisposal has one field, OBJECTID.", ans.AnswerText)
	require.Len(t, ans.Evidence, 1)
	assert.Equal(t, catalogtype.EvidenceFacts, ans.Evidence[0].Kind)
	assert.Contains(t, ans.Evidence[0].Content, "OBJECTID")
	assert.Equal(t, "Activity_BrushDisposal", catalog.lastName)
}

func TestRespondLineageIntent(t *testing.T) {
	catalog := &fakeCatalog{lineage: &catalogtype.LineageResult{
		Dataset: "ActivitySummary",
		Field:   "SOURCE_ID",
		Upstream: []catalogtype.FieldLineageEdge{{
			SourceDataset: "Activity_BrushDisposal", SourceField: "OBJECTID",
			TargetDataset: "ActivitySummary", TargetField: "SOURCE_ID",
			TransformationType: catalogtype.TransformDirectCopy,
			Confidence:         1.0,
		}},
	}}
	a := New(catalog, &fakeRetriever{}, intentClassifier("lineage", "ActivitySummary", "SOURCE_ID"), nil)

	ans, err := a.Respond(context.Background(), "where does SOURCE_ID come from?", 0)
	require.NoError(t, err)
	require.Len(t, ans.Evidence, 1)
	assert.Equal(t, "ActivitySummary.SOURCE_ID", ans.Evidence[0].Source)
	assert.Contains(t, ans.AnswerText, "Activity_BrushDisposal.OBJECTID")
}

func TestRespondUnsupportedIntent(t *testing.T) {
	a := New(&fakeCatalog{}, &fakeRetriever{}, intentClassifier("quality", "", ""), nil)

	ans, err := a.Respond(context.Background(), "how complete is the data?", 0)
	require.NoError(t, err)
	assert.Equal(t, catalogtype.IntentQuality, ans.Intent)
	assert.Contains(t, ans.AnswerText, "are not supported yet")
	assert.Empty(t, ans.Evidence)
}

func TestRespondUnknownDataset(t *testing.T) {
	catalog := &fakeCatalog{err: fmt.Errorf("%w: dataset", catalogtype.ErrNotFound)}
	a := New(catalog, &fakeRetriever{}, intentClassifier("schema", "NoSuchDataset", ""), nil)

	ans, err := a.Respond(context.Background(), "what is the schema of NoSuchDataset?", 0)
	require.NoError(t, err)
	assert.Contains(t, ans.AnswerText, `"NoSuchDataset"`)
}

func TestRespondStoreFailureSurfaces(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("disk io failure")}
	a := New(catalog, &fakeRetriever{}, intentClassifier("schema", "RoadsCore", ""), nil)

	_, err := a.Respond(context.Background(), "what is the schema of RoadsCore?", 0)
	assert.Error(t, err)
}

func TestRespondGeneralGoesThroughRetrieval(t *testing.T) {
	retriever := &fakeRetriever{docs: []catalogtype.RankedDocument{{
		Chunk: catalogtype.Chunk{ID: "c1", Dataset: "Activity_BrushDisposal", Content: "Brush disposal removes slash after harvest."},
		Score: 0.8,
	}}}
	a := New(&fakeCatalog{}, retriever, intentClassifier("general", "", ""), nil)

	ans, err := a.Respond(context.Background(), "what is brush disposal?", 0)
	require.NoError(t, err)
	assert.Equal(t, catalogtype.IntentGeneral, ans.Intent)
	require.Len(t, ans.Evidence, 1)
	assert.Equal(t, catalogtype.EvidenceDocument, ans.Evidence[0].Kind)
	// Without a generator the best chunk is the answer.
	assert.Equal(t, "Brush disposal removes slash after harvest.", ans.AnswerText)
}

func TestRespondSchemaWithoutTargetFallsBackToRetrieval(t *testing.T) {
	retriever := &fakeRetriever{docs: []catalogtype.RankedDocument{{
		Chunk: catalogtype.Chunk{ID: "c1", Content: "Most datasets key on OBJECTID."},
		Score: 0.5,
	}}}
	a := New(&fakeCatalog{}, retriever, intentClassifier("schema", "", ""), nil)

	ans, err := a.Respond(context.Background(), "what do schemas here look like?", 0)
	require.NoError(t, err)
	require.Len(t, ans.Evidence, 1)
	assert.Equal(t, catalogtype.EvidenceDocument, ans.Evidence[0].Kind)
}

func TestRespondNoEvidence(t *testing.T) {
	a := New(&fakeCatalog{}, &fakeRetriever{}, intentClassifier("general", "", ""), nil)

	ans, err := a.Respond(context.Background(), "who won the world series?", 0)
	require.NoError(t, err)
	assert.Equal(t, "No relevant information was found in the catalog for this question.", ans.AnswerText)
}

func TestRespondGenerationFailure(t *testing.T) {
	catalog := &fakeCatalog{schema: &catalogtype.DatasetSchema{
		Dataset: catalogtype.Dataset{Name: "RoadsCore"},
	}}
	gen := &scriptedGenerator{err: errors.New("model offline")}
	// Classifier has its own scripted model; only the answer generator fails.
	a := New(catalog, &fakeRetriever{}, intentClassifier("schema", "RoadsCore", ""), gen)

	_, err := a.Respond(context.Background(), "describe RoadsCore", 0)
	assert.ErrorIs(t, err, catalogtype.ErrGeneration)
}

func TestRespondEmptyQuestion(t *testing.T) {
	a := New(&fakeCatalog{}, &fakeRetriever{}, intentClassifier("general", "", ""), nil)

	_, err := a.Respond(context.Background(), "   ", 0)
	assert.ErrorIs(t, err, catalogtype.ErrInvalidArgument)
}

func TestRespondRetrievalFailureSurfaces(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("index offline")}
	a := New(&fakeCatalog{}, retriever, intentClassifier("general", "", ""), nil)

	_, err := a.Respond(context.Background(), "anything", 0)
	assert.Error(t, err)
}
