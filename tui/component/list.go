package component

import (
	"llmmemory/llm"
	"llmmemory/pubsub"
	"llmmemory/tui/component/renderer"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// scrollStep 鼠标滚轮每次滚动的行数
const scrollStep = 3

// ListModel 对话记录：收集事件中的消息，交给 renderer 渲染到 viewport
type ListModel struct {
	viewport viewport.Model
	renderer *renderer.MessageRenderer
	messages []llm.Message
}

// NewListModel 创建消息列表，尺寸在收到 WindowSizeMsg 后设置
func NewListModel() ListModel {
	vp := viewport.New(0, 0)
	vp.SetContent(renderer.WelcomeText)
	return ListModel{
		viewport: vp,
		renderer: renderer.NewMessageRenderer(nil),
	}
}

// Init 初始化组件
func (m ListModel) Init() tea.Cmd {
	return nil
}

// Update 处理对话事件和滚动
func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[llm.Message]:
		// FinishedEvent 的载荷与最后一条 UpdatedEvent 相同
		if msg.Type == pubsub.FinishedEvent {
			return m, nil
		}
		m.messages = append(m.messages, msg.Payload)
		m.refresh()
		return m, nil

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.ScrollUp(scrollStep)
		case tea.MouseButtonWheelDown:
			m.viewport.ScrollDown(scrollStep)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View 渲染组件视图
func (m ListModel) View() string {
	return m.viewport.View()
}

// SetSize 调整 viewport 和渲染宽度，高度至少为 1
func (m *ListModel) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = max(height, 1)
	m.renderer.SetViewportWidth(width)
	m.refresh()
}

// Messages 返回当前显示的消息
func (m ListModel) Messages() []llm.Message {
	return m.messages
}

// refresh 重新渲染并滚动到底部
func (m *ListModel) refresh() {
	m.viewport.SetContent(m.renderer.RenderMessages(m.messages))
	m.viewport.GotoBottom()
}
