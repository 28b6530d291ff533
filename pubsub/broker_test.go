package pubsub

import (
	"context"
	"testing"
	"time"

	"llmmemory/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBrokerFlow 基本的订阅与发布流程
func TestBrokerFlow(t *testing.T) {
	broker := NewBroker[llm.Message]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := broker.Subscribe(ctx)

	msg := llm.Message{Role: llm.RoleUser, Content: "hello pubsub"}
	broker.Publish(CreatedEvent, msg)

	select {
	case ev := <-events:
		assert.Equal(t, CreatedEvent, ev.Type)
		assert.Equal(t, msg, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("接收消息超时")
	}
}

// TestAutoUnsubscribe context 取消后自动退订
func TestAutoUnsubscribe(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	events := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.GetSubscriberCount())

	cancel()

	assert.Eventually(t, func() bool { return broker.GetSubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-events
	assert.False(t, ok, "退订后通道应关闭")
}

// TestNonBlockingPublish 慢订阅者不会阻塞发布者，溢出的事件被计数
func TestNonBlockingPublish(t *testing.T) {
	broker := NewBrokerWithBuffer[int](4)
	defer broker.Shutdown()

	_ = broker.Subscribe(context.Background())
	for i := 0; i < 10; i++ {
		broker.Publish(CreatedEvent, i)
	}
	assert.Equal(t, int64(6), broker.Dropped())
}

// TestBrokerShutdown 关闭后通道关闭，后续发布与订阅均为空操作
func TestBrokerShutdown(t *testing.T) {
	broker := NewBroker[string]()
	events := broker.Subscribe(context.Background())

	broker.Shutdown()
	broker.Shutdown()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("订阅通道关闭超时")
	}

	broker.Publish(FinishedEvent, "ignored")
	late := broker.Subscribe(context.Background())
	_, ok := <-late
	assert.False(t, ok)
	assert.Equal(t, 0, broker.GetSubscriberCount())
}
