package ai

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// TextGenerator produces free-form text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
	ModelName() string
}

const llmSystemPrompt = "You are a helpful Japanese event planning assistant."

type textGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     int
}

// NewTextGenerator creates a TextGenerator talking to any OpenAI-compatible
// endpoint: vLLM, Ollama, or a hosted provider.
func NewTextGenerator(cfg LLMConfig) (TextGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm base url is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = newHTTPClient()

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45
	}

	return &textGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

func (g *textGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeout)*time.Second)
	defer cancel()

	if temperature <= 0 {
		temperature = g.temperature
	}

	slog.Debug("LLM: generate request",
		slog.String("model", g.model),
		slog.Int("prompt_length", len(prompt)),
		slog.Int("max_tokens", g.maxTokens),
	)
	startTime := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		slog.Error("LLM: generate request failed", slog.Any("error", err))
		return "", errors.Wrapf(ErrModelInvocation, "llm generate: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(ErrModelInvocation, "empty response from llm")
	}

	slog.Debug("LLM: generate response received",
		slog.Int("content_length", len(resp.Choices[0].Message.Content)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)

	return resp.Choices[0].Message.Content, nil
}

func (g *textGenerator) ModelName() string {
	return g.model
}

// newHTTPClient returns an HTTP client tuned for model backends: generation
// can be slow, so the overall deadline comes from the request context while
// the dial and TLS phases stay bounded.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 120 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
