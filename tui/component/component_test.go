package component

import (
	"testing"

	"llmmemory/llm"
	"llmmemory/pubsub"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(m EditModel, s string) EditModel {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestEditSubmit(t *testing.T) {
	m := typeText(NewEditModel(), "  what is pgvector?  ")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, EditorSubmitMsg{Value: "what is pgvector?"}, cmd())
	assert.Empty(t, m.Value())

	// 空白输入不提交
	m = typeText(m, "   ")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestEditLocked(t *testing.T) {
	m := NewEditModel()
	m.SetLocked(true)
	m = typeText(m, "second question")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "second question", m.Value())
}

func TestListCollectsEvents(t *testing.T) {
	m := NewListModel()
	m.SetSize(80, 20)
	for _, ev := range []pubsub.Event[llm.Message]{
		{Type: pubsub.CreatedEvent, Payload: llm.Message{Role: llm.RoleUser, Content: "hi"}},
		{Type: pubsub.UpdatedEvent, Payload: llm.Message{Role: llm.RoleAssistant, Content: "hello"}},
		{Type: pubsub.FinishedEvent, Payload: llm.Message{Role: llm.RoleAssistant, Content: "hello"}},
	} {
		m, _ = m.Update(ev)
	}
	require.Len(t, m.Messages(), 2)
	assert.Contains(t, m.View(), "hi")
}

func TestStatusLifecycle(t *testing.T) {
	m := NewStatusModel()
	assert.Equal(t, "Ready", m.Text())

	m, cmd := m.Update(pubsub.Event[llm.Message]{Type: pubsub.CreatedEvent})
	assert.NotNil(t, cmd)
	assert.True(t, m.IsRunning())

	m, _ = m.Update(pubsub.Event[llm.Message]{Type: pubsub.FailedEvent, Payload: llm.Message{Content: "rate limited"}})
	assert.False(t, m.IsRunning())
	assert.Equal(t, "Failed: rate limited", m.Text())

	m, _ = m.Update(pubsub.Event[llm.Message]{Type: pubsub.CreatedEvent})
	m, _ = m.Update(pubsub.Event[llm.Message]{Type: pubsub.FinishedEvent})
	assert.Equal(t, "Ready", m.Text())
}
