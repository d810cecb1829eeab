// Package generation provides the text-generation port used for query
// classification and answer synthesis. A nil generator disables both;
// callers degrade to keyword routing and extractive answers.
package generation

import (
	"context"
	"os"
	"strings"
	"time"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator defines a simple chat-completion interface.
// Implementations should be concurrency-safe.
type Generator interface {
	// Name returns the generator name (e.g., "openai").
	Name() string
	// Complete returns the model's text for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// NewFromEnv constructs a generator based on environment variables.
// GENERATION_PROVIDER: "openai", "ollama", "localai", or empty for
// disabled. Ollama and LocalAI are reached through their
// OpenAI-compatible endpoints.
func NewFromEnv() Generator {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GENERATION_PROVIDER"))) {
	case "openai":
		return newChatFromEnv("https://api.openai.com/v1", "gpt-4o-mini", os.Getenv("OPENAI_API_KEY"))
	case "ollama":
		base := strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
		if base == "" {
			base = "http://localhost:11434"
		}
		return newChatFromEnv(strings.TrimRight(base, "/")+"/v1", "llama3.1", "")
	case "localai":
		base := strings.TrimSpace(os.Getenv("LOCALAI_BASE_URL"))
		if base == "" {
			base = "http://localhost:8080/v1"
		}
		return newChatFromEnv(base, "gpt-4", os.Getenv("LOCALAI_API_KEY"))
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
