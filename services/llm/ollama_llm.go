package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("arxval.llm.ollama") // Specific tracer name

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "qwen2.5-coder"
)

// OllamaClient drives a local Ollama server through langchaingo.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultOllamaURL
		slog.Warn("OLLAMA_BASE_URL not set, defaulting to " + defaultOllamaURL)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = defaultOllamaModel
		slog.Warn("OLLAMA_MODEL not set, defaulting to " + defaultOllamaModel)
	}
	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing Ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{llm: client, model: model}, nil
}

// Generate implements the LLMClient interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))
	slog.Debug("Generating text via Ollama", "model", o.model)

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, callOptions(params)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama API call failed", "error", err)
		if strings.Contains(err.Error(), "not found") {
			return "", fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.model, o.model)
		}
		return "", fmt.Errorf("Ollama API call failed: %w", err)
	}
	slog.Debug("Received response from Ollama")
	return out, nil
}

// callOptions maps GenerationParams onto langchaingo call options. Nil
// fields take the local-model defaults (temperature 0.2, top_k 20,
// top_p 0.9, 8192 tokens).
func callOptions(params GenerationParams) []llms.CallOption {
	opts := make([]llms.CallOption, 0, 5)
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	} else {
		opts = append(opts, llms.WithTemperature(0.2))
	}
	if params.TopK != nil {
		opts = append(opts, llms.WithTopK(*params.TopK))
	} else {
		opts = append(opts, llms.WithTopK(20))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	} else {
		opts = append(opts, llms.WithTopP(0.9))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	} else {
		opts = append(opts, llms.WithMaxTokens(8192))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}
	return opts
}
