package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxQuestionLen 单个问题的最大字符数
const maxQuestionLen = 2000

// EditorSubmitMsg 用户提交了一个问题
type EditorSubmitMsg struct {
	Value string
}

// EditModel 单行问题输入框；Enter 提交
type EditModel struct {
	textarea textarea.Model
	// locked 为 true 时忽略提交（上一个问题尚未回答）
	locked bool
}

// NewEditModel 创建输入框
func NewEditModel() EditModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.Prompt = "> "
	ta.CharLimit = maxQuestionLen
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.SetHeight(1)
	// Enter 用于提交，不插入换行
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()
	return EditModel{textarea: ta}
}

// Init 启动光标闪烁
func (m EditModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update 处理输入；空白问题和锁定状态下 Enter 不提交
func (m EditModel) Update(msg tea.Msg) (EditModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		value := strings.TrimSpace(m.textarea.Value())
		if value == "" || m.locked {
			return m, nil
		}
		m.textarea.Reset()
		return m, func() tea.Msg { return EditorSubmitMsg{Value: value} }
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View 渲染输入框
func (m EditModel) View() string {
	return m.textarea.View()
}

// SetWidth 设置宽度
func (m *EditModel) SetWidth(width int) {
	m.textarea.SetWidth(width)
}

// SetLocked 设置是否允许提交
func (m *EditModel) SetLocked(locked bool) {
	m.locked = locked
}

// Value 返回当前输入
func (m EditModel) Value() string {
	return m.textarea.Value()
}

// Height 返回组件高度
func (m EditModel) Height() int {
	return m.textarea.Height()
}
