package store

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

func TestVectorToString(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	// Empty input falls back to the zero vector.
	str, err := s.vectorToString(nil)
	require.NoError(t, err)
	assert.Equal(t, "[0.0, 0.0, 0.0, 0.0]", str)

	_, err = s.vectorToString([]float32{0.1, 0.2})
	assert.ErrorIs(t, err, catalogtype.ErrValidation)

	// NaN and Inf are replaced, not propagated.
	str, err = s.vectorToString([]float32{float32(math.NaN()), 1, 2, 3})
	require.NoError(t, err)
	assert.NotContains(t, str, "NaN")
}

func TestExtractVector(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	want := []float32{1.5, -2, 0, 4.25}
	blob := make([]byte, 16)
	for i, v := range want {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}

	got, err := s.extractVector(blob)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = s.extractVector(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.extractVector(blob[:7])
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	sim, ok := cosineSimilarity([]float32{1, 0, 0, 0}, []float32{1, 0, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, ok = cosineSimilarity([]float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 0.0, sim, 1e-9)

	_, ok = cosineSimilarity([]float32{1, 0, 0, 0}, []float32{0, 0, 0, 0})
	assert.False(t, ok)

	_, ok = cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
}

func TestSimilarityScan(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.UpsertChunks(ctx, []catalogtype.Chunk{
		{ID: "exact", Content: "matching direction", Embedding: []float32{1, 0, 0, 0}},
		{ID: "ortho", Content: "orthogonal direction", Embedding: []float32{0, 1, 0, 0}},
		{ID: "blank", Content: "never embedded"},
	})
	require.NoError(t, err)

	results, err := s.similarityScan(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	// Zero-vector chunks are skipped; nearest comes first.
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "ortho", results[1].Chunk.ID)

	results, err = s.similarityScan(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
