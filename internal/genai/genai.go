// Package genai wraps the OpenAI API for chat completions and
// embeddings.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for the completion model configuration.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	// DefaultEmbeddingModel produces 1536-dimension vectors, matching
	// the knowledge_chunks schema.
	DefaultEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
)

// completionService is the minimal chat-completion seam, satisfied by
// the OpenAI client and by test mocks.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// embeddingService is the minimal embedding seam.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	BaseURL     string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the completion sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithBaseURL points the client at a non-default API endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// Client wraps the OpenAI chat-completion and embedding services.
type Client struct {
	chat        completionService
	embeddings  embeddingService
	model       string
	temperature float64
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not set via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, Temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewClient: client configured", "model", cfg.Model, "temperature", cfg.Temperature)
	return &Client{
		chat:        &cli.Chat.Completions,
		embeddings:  &cli.Embeddings,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// GenerateReply runs one chat completion with a system and user prompt
// and returns the reply text.
func (c *Client) GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embedding generates the embedding vector for a single text.
func (c *Client) Embedding(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: DefaultEmbeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding request returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// EmbeddingBatch generates embeddings for multiple texts in one call,
// preserving input order.
func (c *Client) EmbeddingBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: DefaultEmbeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("batch embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("batch embedding returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		out[int(d.Index)] = d.Embedding
	}
	return out, nil
}
