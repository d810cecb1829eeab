package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

func TestUpsertChunks(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ids, err := s.UpsertChunks(ctx, []catalogtype.Chunk{
		{
			ID:        "brush-summary",
			Dataset:   "Activity_BrushDisposal",
			Kind:      catalogtype.ChunkSummary,
			Content:   "Brush disposal activities carried out on national forest land.",
			Embedding: []float32{0.1, 0.2, 0.3, 0.4},
		},
		{
			Content: "Timber harvest units with silvicultural prescriptions.",
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "brush-summary", ids[0])
	// Chunks without an ID get a generated one.
	assert.NotEmpty(t, ids[1])
}

func TestUpsertChunksValidation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{{Content: "   "}})
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	// A wrong-dimension embedding is permanent, never a transient
	// store failure to be retried.
	_, err = s.UpsertChunks(ctx, []catalogtype.Chunk{{
		Content:   "wrong dims",
		Embedding: []float32{0.1, 0.2},
	}})
	assert.ErrorIs(t, err, catalogtype.ErrValidation)
	assert.NotErrorIs(t, err, catalogtype.ErrTransientStore)
}

func TestUpsertChunksIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	chunk := catalogtype.Chunk{
		ID:      "c1",
		Kind:    catalogtype.ChunkSchema,
		Content: "OBJECTID is the internal feature number.",
	}
	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{chunk})
	require.NoError(t, err)

	chunk.Content = "OBJECTID is the unique feature identifier."
	_, err = s.UpsertChunks(ctx, []catalogtype.Chunk{chunk})
	require.NoError(t, err)

	results, err := s.LexicalSearch(ctx, "OBJECTID", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "OBJECTID is the unique feature identifier.", results[0].Chunk.Content)
}

func TestLexicalSearch(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{
		{ID: "c1", Dataset: "Activity_BrushDisposal", Content: "Brush disposal burn activities recorded in FACTS."},
		{ID: "c2", Dataset: "Activity_TimberHarvest", Content: "Timber harvest treatment units."},
	})
	require.NoError(t, err)

	results, err := s.LexicalSearch(ctx, "disposal", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "Activity_BrushDisposal", results[0].Chunk.Dataset)
	assert.Greater(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)

	results, err = s.LexicalSearch(ctx, "glaciers", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalSearchMatchesKeywords(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{{
		ID:       "c1",
		Dataset:  "Activity_BrushDisposal",
		Content:  "Treatment units recorded in the activity tracking system.",
		Keywords: []string{"slash", "fuels"},
	}})
	require.NoError(t, err)

	// Keywords hit even when the content never mentions the term.
	results, err := s.LexicalSearch(ctx, "fuels", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, []string{"slash", "fuels"}, results[0].Chunk.Keywords)
}

func TestLexicalSearchValidation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.LexicalSearch(ctx, "  ", 10)
	assert.ErrorIs(t, err, catalogtype.ErrInvalidArgument)

	_, err = s.LexicalSearch(ctx, "brush", 0)
	assert.ErrorIs(t, err, catalogtype.ErrInvalidArgument)
}

func TestSimilaritySearchValidation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.SimilaritySearch(ctx, nil, 10)
	assert.ErrorIs(t, err, catalogtype.ErrInvalidArgument)

	_, err = s.SimilaritySearch(ctx, []float32{0.1, 0.2, 0.3, 0.4}, -1)
	assert.ErrorIs(t, err, catalogtype.ErrInvalidArgument)
}

func TestFTSMatchExpr(t *testing.T) {
	assert.Equal(t, `"brush" OR "disposal"`, ftsMatchExpr("brush disposal"))
	assert.Equal(t, `"GIS_ACRES"`, ftsMatchExpr("GIS_ACRES?"))
	assert.Equal(t, "", ftsMatchExpr("!?."))
	assert.Equal(t, `"what" OR "feeds" OR "SOURCE_ID"`, ftsMatchExpr(`what feeds "SOURCE_ID"`))
}
