package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"llmmemory/llm"

	"github.com/cloudwego/eino/components/model"
)

// Kind names a chat backend
type Kind string

const (
	KindOpenAI      Kind = "openai"
	KindOpenRouter  Kind = "openrouter"
	KindGemini      Kind = "gemini"
	KindMistral     Kind = "mistral"
	KindHuggingFace Kind = "huggingface"
	KindQwen        Kind = "qwen"
)

// FunctionSpec describes one callable function offered to the model.
// Parameters is a JSON Schema object.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is a function invocation requested by the model.
// Arguments is the raw JSON text.
type FunctionCall struct {
	Name      string
	Arguments string
}

// ChatRequest is one chat completion call
type ChatRequest struct {
	// Model overrides the provider default when set
	Model       string
	Messages    []llm.Message
	Temperature float32
	Functions   []FunctionSpec
}

// ChatResponse mirrors an OpenAI choices[0].message
type ChatResponse struct {
	Role         llm.Role
	Content      string
	FunctionCall *FunctionCall
}

// ChatProvider sends role-tagged messages to a completion backend
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	SupportsFunctionCalling() bool
	Kind() Kind
}

// ChatModelConfig defines the configuration for creating a chat provider
type ChatModelConfig struct {
	Kind    Kind   `yaml:"kind"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// DefaultChatModelConfig reads the provider from the environment:
//   - CHAT_PROVIDER: provider kind (default: openai)
//   - API_KEY: API key for the provider
//   - BASE_URL: override the vendor endpoint
//   - MODEL: override the vendor default model
func DefaultChatModelConfig() ChatModelConfig {
	kind := os.Getenv("CHAT_PROVIDER")
	if kind == "" {
		kind = string(KindOpenAI)
	}
	return ChatModelConfig{
		Kind:    Kind(strings.ToLower(kind)),
		APIKey:  os.Getenv("API_KEY"),
		BaseURL: os.Getenv("BASE_URL"),
		Model:   os.Getenv("MODEL"),
	}
}

type vendor struct {
	baseURL       string
	model         string
	functionCalls bool
}

var vendors = map[Kind]vendor{
	KindOpenAI:      {baseURL: "https://api.openai.com/v1", model: "gpt-3.5-turbo", functionCalls: true},
	KindOpenRouter:  {baseURL: "https://openrouter.ai/api/v1", model: "google/gemini-2.0-flash-001", functionCalls: true},
	KindGemini:      {model: "gemini-2.0-flash", functionCalls: true},
	KindMistral:     {baseURL: "https://api.mistral.ai/v1", model: "mistral-large-latest", functionCalls: true},
	KindHuggingFace: {baseURL: "https://router.huggingface.co/v1", model: "Qwen/Qwen2.5-Coder-32B-Instruct", functionCalls: false},
	KindQwen:        {baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", model: "qwen-plus", functionCalls: true},
}

// Kinds lists the supported provider kinds
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindOpenRouter, KindGemini, KindMistral, KindHuggingFace, KindQwen}
}

// ParseKind validates a provider name
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := vendors[k]; !ok {
		return "", fmt.Errorf("%w: unsupported chat provider %q", llm.ErrConfig, name)
	}
	return k, nil
}

// DefaultModel returns the model used when none is configured
func DefaultModel(kind Kind) string {
	return vendors[kind].model
}

// New creates the chat provider for cfg.Kind. Unknown kinds and a
// missing API key fail with llm.ErrConfig.
func New(ctx context.Context, cfg ChatModelConfig) (ChatProvider, error) {
	cfg, v, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s chat model: %w", llm.ErrConfig, cfg.Kind, err)
	}
	return NewEinoProvider(cfg.Kind, chatModel, cfg.Model, v.functionCalls), nil
}

// NewChatModel returns the raw eino chat model for agents that drive
// tool calls themselves
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (model.ToolCallingChatModel, error) {
	cfg, _, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s chat model: %w", llm.ErrConfig, cfg.Kind, err)
	}
	return chatModel, nil
}

// resolve validates cfg and fills vendor defaults
func resolve(cfg ChatModelConfig) (ChatModelConfig, vendor, error) {
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return cfg, vendor{}, err
	}
	if cfg.APIKey == "" {
		return cfg, vendor{}, fmt.Errorf("%w: API key is required for %s", llm.ErrConfig, kind)
	}

	v := vendors[kind]
	if cfg.BaseURL == "" {
		cfg.BaseURL = v.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = v.model
	}
	cfg.Kind = kind
	return cfg, v, nil
}
