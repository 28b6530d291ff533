package embedding

import (
	"context"
	"fmt"

	"llmmemory/llm"

	"google.golang.org/genai"
)

// GeminiEmbedder calls the Gemini embedContent endpoint
type GeminiEmbedder struct {
	models     *genai.Models
	model      string
	dimensions int
}

// NewGeminiEmbedder creates a genai client for embedding
func NewGeminiEmbedder(ctx context.Context, cfg Config) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required for gemini embeddings", llm.ErrConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %w", llm.ErrConfig, err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEmbedder{models: client.Models, model: model, dimensions: cfg.Dimensions}, nil
}

// Embed generates an embedding vector for a single text
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", llm.ErrValidation)
	}

	var config *genai.EmbedContentConfig
	if g.dimensions > 0 {
		dim := int32(g.dimensions)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := g.models.EmbedContent(ctx, g.model, genai.Text(text), config)
	if err != nil {
		return nil, llm.ProviderFailure("failed to generate gemini embedding", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", llm.ErrProvider)
	}
	return resp.Embeddings[0].Values, nil
}
