package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// chatGenerator talks to any OpenAI-compatible /chat/completions endpoint.
type chatGenerator struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

func newChatFromEnv(defaultBase, defaultModel, apiKey string) Generator {
	base := strings.TrimSpace(os.Getenv("GENERATION_BASE_URL"))
	if base == "" {
		base = defaultBase
	}
	model := strings.TrimSpace(os.Getenv("GENERATION_MODEL"))
	if model == "" {
		model = defaultModel
	}
	if strings.HasPrefix(base, "https://api.openai.com") && strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &chatGenerator{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: envDuration("GENERATION_HTTP_TIMEOUT", 30*time.Second)},
	}
}

func (g *chatGenerator) Name() string { return "chat:" + g.model }

func (g *chatGenerator) Complete(ctx context.Context, r Request) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if r.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": r.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": r.Prompt})

	payload := map[string]any{
		"model":       g.model,
		"messages":    messages,
		"temperature": r.Temperature,
	}
	if r.MaxTokens > 0 {
		payload["max_tokens"] = r.MaxTokens
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error.Message != "" {
			return "", fmt.Errorf("chat completions error: %s", er.Error.Message)
		}
		return "", fmt.Errorf("chat completions http status: %s", resp.Status)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
