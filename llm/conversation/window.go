// Package conversation keeps a token-bounded chat history and renders
// templated prompts for a chat provider.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"llmmemory/llm"
	"llmmemory/llm/providers"
	"llmmemory/pubsub"

	"github.com/goccy/go-json"
)

// SchemaFunctionName is the function offered to the model by RespondWithSchema
const SchemaFunctionName = "format_response"

// DefaultTemplate renders retrieved documents followed by the question.
// It expects related_docs (a list of maps with a content key) and query_str.
const DefaultTemplate = `Context information is below.
---------------------
{{range .related_docs}}{{.content}}

{{end}}---------------------
Given the context information and not prior knowledge,
answer the question: {{.query_str}}`

// ErrPromptTooLarge is returned when a rendered prompt alone exceeds MaxTokens
var ErrPromptTooLarge = fmt.Errorf("%w: prompt exceeds the token budget", llm.ErrConfig)

// Config configures a Window
type Config struct {
	Template    string  `yaml:"template"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Template:    DefaultTemplate,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Window owns one conversation. It is not safe for concurrent use.
type Window struct {
	provider  providers.ChatProvider
	tokenizer Tokenizer
	tmpl      *template.Template
	events    pubsub.Publisher[llm.Message]
	logger    *slog.Logger

	model       string
	temperature float32
	maxTokens   int

	messages []llm.Message
}

// Option customizes a Window
type Option func(*Window)

// WithPublisher publishes message lifecycle events
func WithPublisher(p pubsub.Publisher[llm.Message]) Option {
	return func(w *Window) { w.events = p }
}

// NewWindow parses the template and validates the budget
func NewWindow(provider providers.ChatProvider, tokenizer Tokenizer, cfg Config, opts ...Option) (*Window, error) {
	if provider == nil || tokenizer == nil {
		return nil, fmt.Errorf("%w: provider and tokenizer are required", llm.ErrConfig)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive", llm.ErrConfig)
	}
	tmpl, err := parseTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}

	w := &Window{
		provider:    provider,
		tokenizer:   tokenizer,
		tmpl:        tmpl,
		logger:      cfg.Logger,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func parseTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrTemplate, err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("%w: %w", llm.ErrTemplate, err)
	}
	return b.String(), nil
}

// RenderPrompt renders text as a prompt template without a window, for
// previewing what Respond would send
func RenderPrompt(text string, vars map[string]any) (string, error) {
	tmpl, err := parseTemplate(text)
	if err != nil {
		return "", err
	}
	return execute(tmpl, vars)
}

// GeneratePrompt renders the template with vars
func (w *Window) GeneratePrompt(vars map[string]any) (string, error) {
	return execute(w.tmpl, vars)
}

// Respond renders a prompt, appends it, trims the window and asks the
// provider. It returns false when the turn failed; the failure is logged.
// After a provider failure the user message stays in the history. A reply
// without content is not added to the history.
func (w *Window) Respond(ctx context.Context, vars map[string]any) (string, bool) {
	prompt, err := w.GeneratePrompt(vars)
	if err != nil {
		w.logger.Error("failed to render prompt", "error", err)
		return "", false
	}
	if err := w.Push(llm.Message{Role: llm.RoleUser, Content: prompt}); err != nil {
		w.logger.Error("prompt rejected", "error", err)
		return "", false
	}

	resp, err := w.provider.Chat(ctx, providers.ChatRequest{
		Model:       w.model,
		Messages:    w.Messages(),
		Temperature: w.temperature,
	})
	if err != nil {
		w.logger.Warn("chat request failed", "provider", w.provider.Kind(), "error", err)
		w.publish(pubsub.FailedEvent, llm.Message{Role: llm.RoleSystem, Content: err.Error()})
		return "", false
	}

	reply := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
	if reply.Content != "" {
		w.messages = append(w.messages, reply)
		w.publish(pubsub.UpdatedEvent, reply)
	}
	w.publish(pubsub.FinishedEvent, reply)
	return resp.Content, true
}

// RespondWithSchema runs Respond, then asks the provider to restate the
// reply as arguments of a single function whose parameters are schema.
// It returns nil, nil when the schema request fails or the provider answers
// without calling the function.
func (w *Window) RespondWithSchema(ctx context.Context, vars map[string]any, schema map[string]any) (map[string]any, error) {
	if !w.provider.SupportsFunctionCalling() {
		return nil, fmt.Errorf("%w: %s has no function calling", llm.ErrCapability, w.provider.Kind())
	}

	reply, ok := w.Respond(ctx, vars)
	if !ok {
		return nil, fmt.Errorf("%w: conversation turn failed", llm.ErrProvider)
	}

	resp, err := w.provider.Chat(ctx, providers.ChatRequest{
		Model:       w.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: reply}},
		Temperature: w.temperature,
		Functions: []providers.FunctionSpec{{
			Name:        SchemaFunctionName,
			Description: "Format the content with the specified schema",
			Parameters:  schema,
		}},
	})
	if err != nil {
		w.logger.Warn("schema request failed", "provider", w.provider.Kind(), "error", err)
		return nil, nil
	}
	if resp.FunctionCall == nil || resp.FunctionCall.Name != SchemaFunctionName {
		return nil, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(resp.FunctionCall.Arguments), &args); err != nil {
		return nil, fmt.Errorf("%w: function arguments: %w", llm.ErrDeserialization, err)
	}
	return args, nil
}

// Push appends a message and trims the window. A message that alone
// exceeds the budget is rejected and nothing changes.
func (w *Window) Push(msg llm.Message) error {
	if n := len(w.tokenizer.Encode(msg.Content)); n > w.maxTokens {
		return fmt.Errorf("%w: %d tokens, budget %d", ErrPromptTooLarge, n, w.maxTokens)
	}
	w.messages = append(w.messages, msg)
	w.trim()
	w.publish(pubsub.CreatedEvent, msg)
	return nil
}

// trim keeps the longest chronological suffix whose token total fits
func (w *Window) trim() {
	total := 0
	start := len(w.messages)
	for i := len(w.messages) - 1; i >= 0; i-- {
		total += len(w.tokenizer.Encode(w.messages[i].Content))
		if total > w.maxTokens {
			break
		}
		start = i
	}
	if start > 0 {
		w.logger.Debug("trimmed conversation", "dropped", start, "kept", len(w.messages)-start)
		w.messages = append([]llm.Message(nil), w.messages[start:]...)
	}
}

// TokenCount sums the tokens of the current history
func (w *Window) TokenCount() int {
	total := 0
	for _, m := range w.messages {
		total += len(w.tokenizer.Encode(m.Content))
	}
	return total
}

// Messages returns a copy of the history
func (w *Window) Messages() []llm.Message {
	return append([]llm.Message(nil), w.messages...)
}

// Reset clears the history
func (w *Window) Reset() {
	w.messages = nil
}

func (w *Window) publish(t pubsub.EventType, msg llm.Message) {
	if w.events != nil {
		w.events.Publish(t, msg)
	}
}

// DocsVar converts search results into the related_docs shape DefaultTemplate expects
func DocsVar(results []llm.SearchResult) []map[string]any {
	docs := make([]map[string]any, len(results))
	for i, r := range results {
		docs[i] = map[string]any{
			"key":      r.Key,
			"content":  r.Content,
			"metadata": r.Metadata,
			"score":    r.Score,
		}
	}
	return docs
}
