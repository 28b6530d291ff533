package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"llmmemory/llm"
	"llmmemory/llm/providers"
	"llmmemory/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	kind      providers.Kind
	functions bool
	replies   []*providers.ChatResponse
	errs      []error
	requests  []providers.ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return &providers.ChatResponse{Role: llm.RoleAssistant, Content: "ok"}, nil
}

func (f *fakeProvider) SupportsFunctionCalling() bool { return f.functions }

func (f *fakeProvider) Kind() providers.Kind {
	if f.kind == "" {
		return providers.KindOpenAI
	}
	return f.kind
}

func quietConfig(tmpl string, maxTokens int) Config {
	cfg := DefaultConfig()
	cfg.Template = tmpl
	cfg.MaxTokens = maxTokens
	cfg.Model = "test-model"
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func newTestWindow(t *testing.T, p providers.ChatProvider, tmpl string, maxTokens int, opts ...Option) *Window {
	t.Helper()
	w, err := NewWindow(p, WhitespaceTokenizer{}, quietConfig(tmpl, maxTokens), opts...)
	require.NoError(t, err)
	return w
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("tok ", n))
}

func TestNewWindowErrors(t *testing.T) {
	_, err := NewWindow(&fakeProvider{}, WhitespaceTokenizer{}, quietConfig("{{.name", 10))
	assert.ErrorIs(t, err, llm.ErrTemplate)

	_, err = NewWindow(&fakeProvider{}, WhitespaceTokenizer{}, quietConfig("x", 0))
	assert.ErrorIs(t, err, llm.ErrConfig)

	_, err = NewWindow(nil, WhitespaceTokenizer{}, quietConfig("x", 10))
	assert.ErrorIs(t, err, llm.ErrConfig)
}

func TestGeneratePrompt(t *testing.T) {
	w := newTestWindow(t, &fakeProvider{}, DefaultTemplate, 100)

	prompt, err := w.GeneratePrompt(map[string]any{
		"related_docs": DocsVar([]llm.SearchResult{{Content: "foo"}, {Content: "bar"}}),
		"query_str":    "how are you?",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "foo")
	assert.Contains(t, prompt, "bar")
	assert.Contains(t, prompt, "answer the question: how are you?")

	_, err = w.GeneratePrompt(map[string]any{"query_str": "missing docs"})
	assert.ErrorIs(t, err, llm.ErrTemplate)
}

func TestRenderPrompt(t *testing.T) {
	out, err := RenderPrompt("Q: {{.query_str}}", map[string]any{"query_str": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why?", out)

	_, err = RenderPrompt("{{.query_str", nil)
	assert.ErrorIs(t, err, llm.ErrTemplate)
}

func TestTrimKeepsNewestWithinBudget(t *testing.T) {
	w := newTestWindow(t, &fakeProvider{}, "x", 10)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Push(llm.Message{Role: llm.RoleUser, Content: words(4)}))
	}
	msgs := w.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, 8, w.TokenCount())
}

func TestTrimIsChronologicalSuffix(t *testing.T) {
	for _, budget := range []int{1, 5, 9, 13, 40} {
		t.Run(fmt.Sprint(budget), func(t *testing.T) {
			w := newTestWindow(t, &fakeProvider{}, "x", budget)
			var pushed []llm.Message
			for i, n := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
				if n > budget {
					continue
				}
				msg := llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("m%d %s", i, words(n-1))}
				require.NoError(t, w.Push(msg))
				pushed = append(pushed, msg)

				kept := w.Messages()
				assert.LessOrEqual(t, w.TokenCount(), budget)
				require.NotEmpty(t, kept)
				assert.Equal(t, pushed[len(pushed)-len(kept):], kept)
			}
		})
	}
}

func TestTrimNeverSplitsMessages(t *testing.T) {
	w := newTestWindow(t, &fakeProvider{}, "x", 6)
	require.NoError(t, w.Push(llm.Message{Role: llm.RoleUser, Content: words(2)}))
	require.NoError(t, w.Push(llm.Message{Role: llm.RoleUser, Content: words(5)}))

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, words(5), msgs[0].Content)
}

func TestPushRejectsOversizedMessage(t *testing.T) {
	w := newTestWindow(t, &fakeProvider{}, "x", 3)
	require.NoError(t, w.Push(llm.Message{Role: llm.RoleUser, Content: "a b"}))

	err := w.Push(llm.Message{Role: llm.RoleUser, Content: words(4)})
	assert.ErrorIs(t, err, ErrPromptTooLarge)
	assert.ErrorIs(t, err, llm.ErrConfig)
	assert.Len(t, w.Messages(), 1)
}

func TestRespondAppendsReply(t *testing.T) {
	p := &fakeProvider{replies: []*providers.ChatResponse{{Role: llm.RoleAssistant, Content: "Bonjour"}}}
	w := newTestWindow(t, p, "Translate: {{.text}}", 100)

	reply, ok := w.Respond(context.Background(), map[string]any{"text": "Hello"})
	require.True(t, ok)
	assert.Equal(t, "Bonjour", reply)

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "Translate: Hello"},
		{Role: llm.RoleAssistant, Content: "Bonjour"},
	}, w.Messages())

	require.Len(t, p.requests, 1)
	assert.Equal(t, "test-model", p.requests[0].Model)
	assert.InDelta(t, 0.7, p.requests[0].Temperature, 1e-6)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "Translate: Hello"}}, p.requests[0].Messages)
}

func TestRespondEmptyReplyNotAppended(t *testing.T) {
	p := &fakeProvider{replies: []*providers.ChatResponse{{
		Role:         llm.RoleAssistant,
		FunctionCall: &providers.FunctionCall{Name: "lookup", Arguments: "{}"},
	}}}
	w := newTestWindow(t, p, "{{.q}}", 100)

	reply, ok := w.Respond(context.Background(), map[string]any{"q": "hi"})
	require.True(t, ok)
	assert.Empty(t, reply)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, w.Messages())
}

func TestRespondProviderFailureKeepsUserMessage(t *testing.T) {
	p := &fakeProvider{errs: []error{errors.New("503 service unavailable")}}
	w := newTestWindow(t, p, "{{.q}}", 100)
	require.NoError(t, w.Push(llm.Message{Role: llm.RoleAssistant, Content: "earlier"}))
	before := len(w.Messages())

	reply, ok := w.Respond(context.Background(), map[string]any{"q": "hi"})
	assert.False(t, ok)
	assert.Empty(t, reply)

	msgs := w.Messages()
	assert.Len(t, msgs, before+1)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hi"}, msgs[len(msgs)-1])
}

func TestRespondRenderFailurePushesNothing(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWindow(t, p, "{{.q}}", 100)

	_, ok := w.Respond(context.Background(), map[string]any{})
	assert.False(t, ok)
	assert.Empty(t, w.Messages())
	assert.Empty(t, p.requests)
}

func TestRespondOversizedPromptPushesNothing(t *testing.T) {
	p := &fakeProvider{}
	w := newTestWindow(t, p, "{{.q}}", 3)

	_, ok := w.Respond(context.Background(), map[string]any{"q": words(10)})
	assert.False(t, ok)
	assert.Empty(t, w.Messages())
	assert.Empty(t, p.requests)
}

func TestRespondWithSchema(t *testing.T) {
	p := &fakeProvider{
		functions: true,
		replies: []*providers.ChatResponse{
			{Role: llm.RoleAssistant, Content: "The capital of France is Paris."},
			{Role: llm.RoleAssistant, FunctionCall: &providers.FunctionCall{
				Name:      SchemaFunctionName,
				Arguments: `{"country":"France","capital":"Paris"}`,
			}},
		},
	}
	w := newTestWindow(t, p, "Question: {{.q}}", 100)
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"country": map[string]any{"type": "string"},
			"capital": map[string]any{"type": "string"},
		},
	}

	got, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "capital of France?"}, schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"country": "France", "capital": "Paris"}, got)

	require.Len(t, p.requests, 2)
	second := p.requests[1]
	assert.Equal(t, "test-model", second.Model)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "The capital of France is Paris."}}, second.Messages)
	require.Len(t, second.Functions, 1)
	assert.Equal(t, SchemaFunctionName, second.Functions[0].Name)
	assert.Equal(t, schema, second.Functions[0].Parameters)
}

func TestRespondWithSchemaNoFunctionCall(t *testing.T) {
	p := &fakeProvider{functions: true}
	w := newTestWindow(t, p, "{{.q}}", 100)

	got, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "x"}, map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRespondWithSchemaRequiresCapability(t *testing.T) {
	p := &fakeProvider{kind: providers.KindHuggingFace}
	w := newTestWindow(t, p, "{{.q}}", 100)

	_, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "x"}, map[string]any{})
	assert.ErrorIs(t, err, llm.ErrCapability)
	assert.Empty(t, p.requests)
	assert.Empty(t, w.Messages())
}

func TestRespondWithSchemaTurnFailure(t *testing.T) {
	p := &fakeProvider{functions: true, errs: []error{errors.New("timeout")}}
	w := newTestWindow(t, p, "{{.q}}", 100)

	_, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "x"}, map[string]any{})
	assert.ErrorIs(t, err, llm.ErrProvider)
	assert.Len(t, p.requests, 1)
}

func TestRespondWithSchemaSecondCallFailure(t *testing.T) {
	p := &fakeProvider{functions: true, errs: []error{nil, errors.New("rate limited")}}
	w := newTestWindow(t, p, "{{.q}}", 100)

	got, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "x"}, map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, p.requests, 2)
	assert.Len(t, w.Messages(), 2)
}

func TestRespondWithSchemaBadArguments(t *testing.T) {
	p := &fakeProvider{
		functions: true,
		replies: []*providers.ChatResponse{
			{Content: "reply"},
			{FunctionCall: &providers.FunctionCall{Name: SchemaFunctionName, Arguments: "{not json"}},
		},
	}
	w := newTestWindow(t, p, "{{.q}}", 100)

	_, err := w.RespondWithSchema(context.Background(), map[string]any{"q": "x"}, map[string]any{})
	assert.ErrorIs(t, err, llm.ErrDeserialization)
}

func TestRespondPublishesEvents(t *testing.T) {
	broker := pubsub.NewBroker[llm.Message]()
	defer broker.Shutdown()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	p := &fakeProvider{
		replies: []*providers.ChatResponse{{Content: "pong"}},
		errs:    []error{nil, errors.New("down")},
	}
	w := newTestWindow(t, p, "{{.q}}", 100, WithPublisher(broker))

	_, ok := w.Respond(ctx, map[string]any{"q": "ping"})
	require.True(t, ok)
	_, ok = w.Respond(ctx, map[string]any{"q": "again"})
	require.False(t, ok)

	var types []pubsub.EventType
	for len(types) < 5 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("only received %v", types)
		}
	}
	assert.Equal(t, []pubsub.EventType{
		pubsub.CreatedEvent, pubsub.UpdatedEvent, pubsub.FinishedEvent,
		pubsub.CreatedEvent, pubsub.FailedEvent,
	}, types)
}

func TestReset(t *testing.T) {
	w := newTestWindow(t, &fakeProvider{}, "{{.q}}", 100)
	_, ok := w.Respond(context.Background(), map[string]any{"q": "x"})
	require.True(t, ok)
	require.Len(t, w.Messages(), 2)

	w.Reset()
	assert.Empty(t, w.Messages())
	assert.Equal(t, 0, w.TokenCount())
}

func TestWhitespaceTokenizer(t *testing.T) {
	assert.Len(t, WhitespaceTokenizer{}.Encode("  one two\tthree\n"), 3)
	assert.Empty(t, WhitespaceTokenizer{}.Encode(""))
}
