package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

// ConversationStore 对话存储接口
type ConversationStore interface {
	// Add 添加一条消息到存储
	Add(ctx context.Context, msg adk.Message) error
	// List 获取所有消息历史
	List(ctx context.Context) ([]adk.Message, error)
	// Clear 清空消息历史
	Clear(ctx context.Context) error
}

// MemoryStore 内存实现的对话存储
type MemoryStore struct {
	mu              sync.RWMutex
	msgs            []adk.Message
	maxMessages     int // 最大保留消息数
	maxToolResponse int // 工具响应最大长度（字符数）
}

// NewMemoryStore 创建一个新的内存存储
func NewMemoryStore(maxMessages, maxToolResponse int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	if maxToolResponse <= 0 {
		maxToolResponse = 2000
	}
	return &MemoryStore{
		maxMessages:     maxMessages,
		maxToolResponse: maxToolResponse,
	}
}

// Add 添加一条消息（带滑动窗口和工具结果压缩）
func (s *MemoryStore) Add(ctx context.Context, msg adk.Message) error {
	if msg == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Role == schema.Tool {
		msg = s.compressToolResponse(msg)
	}
	s.msgs = append(s.msgs, msg)

	// 滑动窗口：超过限制时删除最旧的消息
	if len(s.msgs) > s.maxMessages {
		s.msgs = s.msgs[len(s.msgs)-s.maxMessages:]
	}
	// 工具结果不能脱离发起调用的助手消息
	for len(s.msgs) > 0 && s.msgs[0].Role == schema.Tool {
		s.msgs = s.msgs[1:]
	}
	return nil
}

var breakPoints = []string{"。\n", ".\n", "。", ". ", "\n\n", "\n"}

// compressToolResponse 截断过长的工具响应，尽量在句子或换行处截断
func (s *MemoryStore) compressToolResponse(msg adk.Message) adk.Message {
	if len(msg.Content) <= s.maxToolResponse {
		return msg
	}

	originalLen := len(msg.Content)
	cutoff := s.maxToolResponse
	for cutoff > 0 && !utf8.RuneStart(msg.Content[cutoff]) {
		cutoff--
	}
	truncated := msg.Content[:cutoff]
	for _, bp := range breakPoints {
		if idx := strings.LastIndex(truncated, bp); idx > len(truncated)/2 {
			cutoff = idx + len(bp)
			break
		}
	}

	compressed := *msg
	compressed.Content = msg.Content[:cutoff] + fmt.Sprintf(
		"\n\n[Content truncated: %d -> %d chars, saved %.1f%%]",
		originalLen,
		cutoff,
		float64(originalLen-cutoff)/float64(originalLen)*100,
	)
	return &compressed
}

// List 获取所有消息（返回副本）
func (s *MemoryStore) List(ctx context.Context) ([]adk.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]adk.Message, len(s.msgs))
	copy(result, s.msgs)
	return result, nil
}

// Clear 清空所有消息
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}

var _ ConversationStore = (*MemoryStore)(nil)
