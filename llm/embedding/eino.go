package embedding

import (
	"context"
	"fmt"

	"llmmemory/llm"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
)

// EinoEmbedder wraps an eino embedding model for vector generation
type EinoEmbedder struct {
	embedder einoEmbedding.Embedder
}

// NewEinoEmbedder creates an OpenAI-compatible embedder from configuration
func NewEinoEmbedder(ctx context.Context, cfg Config) (*EinoEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required for embedding provider %q", llm.ErrConfig, cfg.Provider)
	}

	e, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embedding model: %w", llm.ErrConfig, err)
	}
	return WrapEino(e), nil
}

// WrapEino adapts any eino embedder
func WrapEino(e einoEmbedding.Embedder) *EinoEmbedder {
	return &EinoEmbedder{embedder: e}
}

// Embed generates an embedding vector for a single text
func (s *EinoEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", llm.ErrValidation)
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, llm.ProviderFailure("failed to generate embedding", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", llm.ErrProvider)
	}

	// eino returns float64
	result := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		result[i] = float32(v)
	}
	return result, nil
}
