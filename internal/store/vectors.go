package store

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/fsgeodata/catalog-kb-go/internal/catalogtype"
)

// vectorZeroString builds a zero vector string for the current embedding dims
func (s *Store) vectorZeroString() string {
	dims := s.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	parts := make([]string, dims)
	for i := range parts {
		parts[i] = "0.0"
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// vectorToString converts a float32 slice to libSQL vector string format
func (s *Store) vectorToString(numbers []float32) (string, error) {
	if len(numbers) == 0 {
		return s.vectorZeroString(), nil
	}

	dims := s.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	if len(numbers) != dims {
		return "", fmt.Errorf("%w: vector must have exactly %d dimensions, got %d", catalogtype.ErrValidation, dims, len(numbers))
	}

	strNumbers := make([]string, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			log.Printf("Invalid vector value detected, using 0.0 instead of: %f", n)
			n = 0.0
		}
		strNumbers[i] = fmt.Sprintf("%f", n)
	}
	return fmt.Sprintf("[%s]", strings.Join(strNumbers, ", ")), nil
}

// extractVector decodes an F32_BLOB column back into a float32 slice
func (s *Store) extractVector(embedding []byte) ([]float32, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	dims := s.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	if len(embedding) != dims*4 {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", dims*4, dims, len(embedding))
	}

	vector := make([]float32, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint32(embedding[i*4 : (i+1)*4])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// The second return value is false when the lengths differ or either
// vector has zero magnitude.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
