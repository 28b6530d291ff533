package renderer

import (
	"strings"

	"llmmemory/llm"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// WelcomeText 没有消息时显示
const WelcomeText = "Welcome! Ask a question about your memorized documents and press Enter."

// MessageRenderer 消息渲染器
type MessageRenderer struct {
	markdownRenderer *glamour.TermRenderer
	styles           *MessageStyles
	renderedCache    []string // 已渲染消息的缓存
	viewportWidth    int
	// maxSystemLen 系统消息（工具调用等）的最大显示长度
	maxSystemLen int
}

// NewMessageRenderer 创建消息渲染器
func NewMessageRenderer(styles *MessageStyles) *MessageRenderer {
	if styles == nil {
		styles = DefaultMessageStyles()
	}

	// 初始化 Markdown 渲染器 (Dracula 主题)
	markdownRenderer, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(0), // 禁用自动换行，由外部控制
	)
	return &MessageRenderer{
		markdownRenderer: markdownRenderer,
		styles:           styles,
		maxSystemLen:     200,
	}
}

// SetViewportWidth 设置视口宽度
func (r *MessageRenderer) SetViewportWidth(width int) {
	r.viewportWidth = width
}

// RenderMessages 渲染所有消息，除最后一条外均使用缓存
func (r *MessageRenderer) RenderMessages(messages []llm.Message) string {
	if len(messages) == 0 {
		return WelcomeText
	}

	// 列表变短（例如清空）时重置缓存
	if len(messages) < len(r.renderedCache)+1 {
		r.renderedCache = r.renderedCache[:0]
	}
	for i := len(r.renderedCache); i < len(messages)-1; i++ {
		r.renderedCache = append(r.renderedCache, r.RenderMessage(messages[i]))
	}

	var sb strings.Builder
	for _, cached := range r.renderedCache {
		if cached != "" {
			sb.WriteString(cached)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString(r.RenderMessage(messages[len(messages)-1]))

	content := sb.String()
	if r.viewportWidth > 0 {
		return lipgloss.NewStyle().Width(r.viewportWidth).Render(content)
	}
	return content
}

// RenderMessage 渲染单条消息
func (r *MessageRenderer) RenderMessage(msg llm.Message) string {
	if msg.Content == "" {
		return ""
	}
	switch msg.Role {
	case llm.RoleUser:
		// 用户消息保持原始文本
		return r.styles.User.Render("User:") + " " + msg.Content
	case llm.RoleAssistant:
		return r.styles.Assistant.Render("Assistant:") + "\n" + r.renderMarkdown(msg.Content)
	case llm.RoleSystem:
		return r.styles.System.Render("System: " + Truncate(msg.Content, r.maxSystemLen))
	}
	return ""
}

// renderMarkdown 渲染 Markdown 内容，失败时返回原文
func (r *MessageRenderer) renderMarkdown(content string) string {
	if r.markdownRenderer == nil {
		return content
	}
	rendered, err := r.markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	// glamour 会添加前后换行
	return strings.TrimSpace(rendered)
}

// Truncate 按字符截断字符串，添加省略号
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
