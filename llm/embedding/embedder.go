// Package embedding maps text to vectors for the vector store.
package embedding

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"llmmemory/llm"
)

// Embedder turns one text into one vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedder
type Config struct {
	// Provider is one of openai, mistral, openrouter, huggingface, gemini, hash
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	// Dimensions is used by the hash embedder and as an output
	// dimensionality hint for gemini. Zero means the model default.
	Dimensions int `yaml:"dimensions"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Provider: getEnvString("EMBEDDING_PROVIDER", "openai"),
		APIKey:   os.Getenv("EMBEDDING_MODEL_API_KEY"),
		BaseURL:  os.Getenv("EMBEDDING_MODEL_BASE_URL"),
		Model:    os.Getenv("EMBEDDING_MODEL"),
		// 0 lets the provider pick
		Dimensions: getEnvInt("VECTOR_DIM", 0),
	}
}

type vendor struct {
	baseURL string
	model   string
}

// OpenAI-compatible embedding endpoints
var vendors = map[string]vendor{
	"openai":      {baseURL: "https://api.openai.com/v1", model: "text-embedding-ada-002"},
	"mistral":     {baseURL: "https://api.mistral.ai/v1", model: "mistral-embed"},
	"openrouter":  {baseURL: "https://openrouter.ai/api/v1", model: "openai/text-embedding-3-small"},
	"huggingface": {baseURL: "https://router.huggingface.co/hf-inference/v1", model: "sentence-transformers/all-MiniLM-L6-v2"},
}

const defaultGeminiModel = "text-embedding-004"

// Providers lists the embedder names New accepts
func Providers() []string {
	names := []string{"gemini", "hash"}
	for name := range vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the embedder named by cfg.Provider.
// An unknown name is llm.ErrNotFound; a missing key is llm.ErrConfig.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	name := strings.ToLower(cfg.Provider)
	switch name {
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg)
	}

	v, ok := vendors[name]
	if !ok {
		return nil, fmt.Errorf("embedding provider %q: %w", cfg.Provider, llm.ErrNotFound)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = v.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = v.model
	}
	return NewEinoEmbedder(ctx, cfg)
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
