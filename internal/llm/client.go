// Package llm builds the chat and embedding clients used by the assistant.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"maitred/internal/config"
)

// Client bundles the chat model with the embedder built on the same endpoint
type Client struct {
	Model    llms.Model
	Embedder embeddings.Embedder
}

// New creates an OpenAI-compatible client from configuration. The embedder is
// nil when no embedding model is configured.
func New(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key not set (llm.api_key or OPENAI_API_KEY)")
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	c := &Client{Model: model}
	if cfg.EmbeddingModel != "" {
		emb, err := embeddings.NewEmbedder(model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		c.Embedder = emb
	}
	return c, nil
}

// HealthCheck sends a minimal prompt to verify the chat endpoint answers
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, c.Model, "Reply with OK.", llms.WithMaxTokens(5))
	if err != nil {
		return fmt.Errorf("llm health check failed: %w", err)
	}
	return nil
}
