package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// GenerationParams holds the sampling knobs a caller may override per
// request. Nil fields fall back to the backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// EnvBackend selects the backend in NewFromEnv: "openai" or "ollama".
const EnvBackend = "ARXVAL_LLM_BACKEND"

// NewFromEnv constructs the backend named by ARXVAL_LLM_BACKEND. Unset
// falls back to the Ollama backend so the repair loop works against a
// local model with no configuration.
func NewFromEnv() (LLMClient, error) {
	backend := os.Getenv(EnvBackend)
	switch backend {
	case "openai":
		slog.Info("Using OpenAI-compatible LLM backend")
		return NewOpenAIClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return NewOllamaClient()
	case "":
		slog.Warn("ARXVAL_LLM_BACKEND not set, defaulting to ollama")
		return NewOllamaClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want openai or ollama)", backend)
	}
}

// Float32 returns a pointer to v for use in GenerationParams literals.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v for use in GenerationParams literals.
func Int(v int) *int { return &v }
