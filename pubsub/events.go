package pubsub

import "context"

const (
	// CreatedEvent 用户消息进入对话窗口
	CreatedEvent EventType = "created"
	// UpdatedEvent 收到助手回复
	UpdatedEvent EventType = "updated"
	// FinishedEvent 一轮对话结束
	FinishedEvent EventType = "finished"
	// FailedEvent 一轮对话失败，载荷携带错误描述
	FailedEvent EventType = "failed"
)

// Subscriber 订阅者接口
type Subscriber[T any] interface {
	// Subscribe 返回一个只读的事件通道，并在 context 结束时自动关闭
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType 标识事件的类型
	EventType string

	// Event 代表一次生命周期事件
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Publisher 发布者接口
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)
