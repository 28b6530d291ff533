package component

import (
	"llmmemory/llm"
	"llmmemory/pubsub"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	statusReady   = "Ready"
	statusWorking = "Searching memory..."
)

var statusStyle = lipgloss.NewStyle().Padding(1, 0)

// StatusModel 状态栏：一轮对话进行中显示 spinner
type StatusModel struct {
	spinner spinner.Model
	running bool
	text    string
	width   int
}

// NewStatusModel 创建状态栏
func NewStatusModel() StatusModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Jump),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
	)
	return StatusModel{spinner: s, text: statusReady}
}

// Init 不自动启动 spinner
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update Created 启动，Finished/Failed 停止
func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	if ev, ok := msg.(pubsub.Event[llm.Message]); ok {
		switch ev.Type {
		case pubsub.CreatedEvent:
			if m.running {
				return m, nil
			}
			m.running, m.text = true, statusWorking
			return m, m.spinner.Tick
		case pubsub.FinishedEvent:
			return m.Stop(statusReady), nil
		case pubsub.FailedEvent:
			return m.Stop("Failed: " + ev.Payload.Content), nil
		}
	}

	if !m.running {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View 渲染状态文本
func (m StatusModel) View() string {
	if m.running {
		return statusStyle.Width(m.width).Render(m.spinner.View() + " " + m.text)
	}
	return statusStyle.Width(m.width).Render(m.text)
}

// Stop 停止 spinner 并显示文本
func (m StatusModel) Stop(text string) StatusModel {
	m.running = false
	m.text = text
	return m
}

// SetWidth 设置组件宽度
func (m *StatusModel) SetWidth(width int) {
	m.width = width
}

// Text 返回当前状态文本
func (m StatusModel) Text() string {
	return m.text
}

// IsRunning 返回 spinner 是否在运行
func (m StatusModel) IsRunning() bool {
	return m.running
}
