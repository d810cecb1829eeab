// Package embeddings provides pluggable text-embedding providers used to
// vectorize catalog chunks and queries. A nil provider disables vector
// search; callers fall back to lexical retrieval.
package embeddings

import (
	"context"
	"os"
	"strings"
	"time"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// NewFromEnv constructs a provider based on environment variables.
// EMBEDDINGS_PROVIDER: "openai", "ollama", "gemini", "localai", or empty
// for disabled.
func NewFromEnv() Provider {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER"))) {
	case "openai":
		return newOpenAIFromEnv()
	case "ollama":
		return newOllamaFromEnv()
	case "gemini", "google-gemini", "google":
		return newGeminiFromEnv()
	case "localai", "llamacpp", "llama.cpp":
		return newLocalAIFromEnv()
	default:
		return nil
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func f64to32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
