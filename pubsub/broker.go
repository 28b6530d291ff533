package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
)

const bufferSize = 64

// Broker 实现了基于内存的发布者/订阅者模型。
// 对话窗口用它广播消息生命周期事件，TUI 与 CLI 订阅这些事件。
type Broker[T any] struct {
	subs    map[chan Event[T]]struct{} // 活跃订阅者的集合
	mu      sync.RWMutex               // 保护 subs
	done    chan struct{}              // 关闭信号
	buffer  int                        // 每个订阅通道的缓冲区大小
	dropped atomic.Int64               // 因缓冲区已满而丢弃的事件数
}

// NewBroker 创建一个使用默认缓冲区大小的 Broker。
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](bufferSize)
}

// NewBrokerWithBuffer 创建一个自定义订阅通道缓冲区大小的 Broker。
func NewBrokerWithBuffer[T any](channelBufferSize int) *Broker[T] {
	if channelBufferSize <= 0 {
		channelBufferSize = bufferSize
	}
	return &Broker[T]{
		subs:   make(map[chan Event[T]]struct{}),
		done:   make(chan struct{}),
		buffer: channelBufferSize,
	}
}

// Shutdown 关闭 Broker 并关闭所有订阅通道。可重复调用。
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribe 注册一个订阅者。
// 通道会在 ctx 结束或 Broker 关闭时被注销并关闭。
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.buffer)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

// GetSubscriberCount 返回当前活跃的订阅者数量。
func (b *Broker[T]) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped 返回因订阅者处理过慢而被丢弃的事件总数。
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Publish 将事件分发给所有活跃订阅者，不会阻塞：
// 缓冲区已满的订阅者会错过该事件。
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{Type: t, Payload: payload}
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

var _ Publisher[int] = (*Broker[int])(nil)
var _ Subscriber[int] = (*Broker[int])(nil)
