package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	openaiSecretPath   = "/run/secrets/openai_api_key"
	defaultOpenAIModel = "gpt-4o-mini"

	// EnvSystemPrompt overrides the system role sent with every repair
	// request.
	EnvSystemPrompt = "ARXVAL_SYSTEM_PROMPT"

	defaultSystemPrompt = "You are an expert AUTOSAR tooling engineer. " +
		"You write precise Python scripts against the autosarfactory API."
)

// OpenAIClient talks to OpenAI or any OpenAI-compatible chat completion
// endpoint (set OPENAI_BASE_URL for vLLM, LiteLLM, llama.cpp server).
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	key, err := loadAPIKey("OPENAI_API_KEY", openaiSecretPath)
	if err != nil {
		return nil, err
	}
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, defaulting to " + defaultOpenAIModel)
	}
	apiKey, err := key.reveal()
	if err != nil {
		return nil, fmt.Errorf("revealing OpenAI API key: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		config.BaseURL = strings.TrimSuffix(base, "/")
		slog.Info("Using OpenAI-compatible endpoint", "base_url", config.BaseURL)
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := chatRequest(o.model, systemPrompt(), prompt, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func systemPrompt() string {
	if p := os.Getenv(EnvSystemPrompt); p != "" {
		return p
	}
	return defaultSystemPrompt
}

// chatRequest builds the completion request. Only params fields the
// caller set override the request defaults.
func chatRequest(model, system, prompt string, params GenerationParams) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}
