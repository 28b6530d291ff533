package chat

import (
	"context"

	"llmmemory/llm"
	"llmmemory/pubsub"
	"llmmemory/tui/component"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AskFunc 回答一轮用户输入；过程中的消息通过事件流到达界面
type AskFunc func(ctx context.Context, prompt string) (string, error)

// askDoneMsg 一轮提问结束（成功或失败）
type askDoneMsg struct {
	err error
}

// Model 聊天界面模型
type Model struct {
	list   component.ListModel
	edit   component.EditModel
	status component.StatusModel

	ask AskFunc
	sub <-chan pubsub.Event[llm.Message]
	ctx context.Context

	width  int
	height int
	err    error
}

// InitialModel 创建初始模型。ask 可以是 RAG 会话或 Agent 运行时，
// events 是它们发布消息的 broker。
func InitialModel(ctx context.Context, ask AskFunc, events pubsub.Subscriber[llm.Message]) Model {
	return Model{
		list:   component.NewListModel(),
		edit:   component.NewEditModel(),
		status: component.NewStatusModel(),
		ask:    ask,
		sub:    events.Subscribe(ctx),
		ctx:    ctx,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.list.Init(),
		m.edit.Init(),
		m.status.Init(),
		m.waitForMessage(), // 订阅对话消息
	)
}

// waitForMessage 等待下一条事件的 Cmd；通道关闭时不再返回消息
func (m Model) waitForMessage() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.sub
		if !ok {
			return nil
		}
		return event
	}
}

// submit 在 Cmd 中执行提问，结束后回传 askDoneMsg
func (m Model) submit(prompt string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.ask(m.ctx, prompt)
		return askDoneMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// 计算各组件高度
		statusHeight := lipgloss.Height(m.status.View())
		editHeight := m.edit.Height()
		listHeight := m.height - statusHeight - editHeight

		// 更新各组件尺寸
		m.list.SetSize(m.width, listHeight)
		m.edit.SetWidth(m.width)
		m.status.SetWidth(m.width)

	case component.EditorSubmitMsg:
		// 回答完成前锁定输入框
		m.edit.SetLocked(true)
		m.err = nil
		cmds = append(cmds, m.submit(msg.Value))

	case askDoneMsg:
		m.edit.SetLocked(false)
		m.err = msg.err
		// 校验错误等不会发布 FailedEvent，这里统一显示
		if msg.err != nil {
			m.status = m.status.Stop("Failed: " + msg.err.Error())
		}
		return m, nil

	case pubsub.Event[llm.Message]:
		// 继续等待下一条消息
		cmds = append(cmds, m.waitForMessage())
		// list 和 status 会在下面透传处理

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
	}

	// 更新各子组件
	var cmd tea.Cmd

	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	m.edit, cmd = m.edit.Update(msg)
	cmds = append(cmds, cmd)

	m.status, cmd = m.status.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.list.View(),
		m.status.View(),
		m.edit.View(),
	)
}

// Err 返回最近一轮的错误
func (m Model) Err() error {
	return m.err
}
