package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"llmmemory/llm"
	"llmmemory/pubsub"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers every Generate with the next reply or error
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestRuntimeRun(t *testing.T) {
	ctx := context.Background()
	cm := &scriptedModel{replies: []string{"first answer", "second answer"}}
	rt, err := NewRuntime(ctx, cm, nil, RuntimeConfig{})
	require.NoError(t, err)
	defer rt.Close()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := rt.Broker().Subscribe(subCtx)

	answer, err := rt.Run(ctx, "what is stored?")
	require.NoError(t, err)
	assert.Equal(t, "first answer", answer)

	var types []pubsub.EventType
	for len(types) < 3 {
		ev := <-events
		types = append(types, ev.Type)
	}
	assert.Equal(t, []pubsub.EventType{pubsub.CreatedEvent, pubsub.UpdatedEvent, pubsub.FinishedEvent}, types)

	answer, err = rt.Run(ctx, "and then?")
	require.NoError(t, err)
	assert.Equal(t, "second answer", answer)

	history, err := rt.Store().List(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, schema.User, history[2].Role)
	assert.Equal(t, "second answer", history[3].Content)

	// the second call saw the first exchange
	last := cm.inputs[len(cm.inputs)-1]
	var seen []string
	for _, m := range last {
		seen = append(seen, m.Content)
	}
	assert.Contains(t, strings.Join(seen, "|"), "first answer")
}

func TestRuntimeRunFailure(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, &scriptedModel{err: errors.New("rate limited")}, nil, RuntimeConfig{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Run(ctx, "hello")
	assert.ErrorIs(t, err, llm.ErrProvider)

	_, err = rt.Run(ctx, "  ")
	assert.ErrorIs(t, err, llm.ErrValidation)
}

func TestMemoryStoreWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)

	require.NoError(t, s.Add(ctx, schema.UserMessage("q1")))
	require.NoError(t, s.Add(ctx, schema.AssistantMessage("", []schema.ToolCall{{ID: "c1"}})))
	require.NoError(t, s.Add(ctx, schema.ToolMessage("result", "c1")))
	require.NoError(t, s.Add(ctx, schema.AssistantMessage("a1", nil)))

	// the window cut leaves a tool result without its call, so it is dropped too
	msgs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "a1", msgs[0].Content)

	require.NoError(t, s.Clear(ctx))
	msgs, _ = s.List(ctx)
	assert.Empty(t, msgs)
}

func TestCompressToolResponse(t *testing.T) {
	s := NewMemoryStore(10, 40)
	content := "First sentence is here. Second one runs past the limit for sure."
	out := s.compressToolResponse(schema.ToolMessage(content, "c1"))

	assert.True(t, strings.HasPrefix(out.Content, "First sentence is here. "))
	assert.Contains(t, out.Content, "[Content truncated:")
	assert.Equal(t, "c1", out.ToolCallID)

	short := schema.ToolMessage("ok", "c2")
	assert.Same(t, short, s.compressToolResponse(short))

	// never cut inside a multi-byte rune
	wide := schema.ToolMessage(strings.Repeat("知", 30), "c3")
	out = s.compressToolResponse(wide)
	assert.True(t, strings.HasPrefix(out.Content, strings.Repeat("知", 13)+"\n\n["))
}
