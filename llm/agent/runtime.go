package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"llmmemory/llm"
	"llmmemory/pubsub"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Runtime Agent 运行时：维护对话历史并把消息事件发布到 broker
type Runtime struct {
	agent  adk.Agent
	runner *adk.Runner
	store  ConversationStore
	broker *pubsub.Broker[llm.Message]
	logger *slog.Logger
}

// RuntimeConfig Runtime 配置
type RuntimeConfig struct {
	MaxMessages     int
	MaxToolResponse int
	MaxIterations   int
	Logger          *slog.Logger
}

// NewRuntime 创建新的 Agent 运行时
func NewRuntime(ctx context.Context, chatModel model.ToolCallingChatModel, toolsList []tool.BaseTool, cfg RuntimeConfig) (*Runtime, error) {
	agt, err := NewLibrarianAgent(ctx, &LibrarianConfig{
		ChatModel:     chatModel,
		Tools:         toolsList,
		MaxIterations: cfg.MaxIterations,
	})
	if err != nil {
		return nil, err
	}

	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent:           agt,
		EnableStreaming: false, // 非流式
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runtime{
		agent:  agt,
		runner: runner,
		store:  NewMemoryStore(cfg.MaxMessages, cfg.MaxToolResponse),
		broker: pubsub.NewBroker[llm.Message](),
		logger: logger,
	}, nil
}

// Run 处理一轮用户输入，返回最终回答
func (r *Runtime) Run(ctx context.Context, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", llm.ErrValidation)
	}

	userMsg := schema.UserMessage(userPrompt)
	if err := r.store.Add(ctx, userMsg); err != nil {
		return "", fmt.Errorf("failed to store user message: %w", err)
	}
	r.broker.Publish(pubsub.CreatedEvent, llm.Message{Role: llm.RoleUser, Content: userPrompt})

	history, err := r.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	var answer string
	iter := r.runner.Run(ctx, history)
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			r.logger.Error("agent run failed", "error", event.Err)
			r.broker.Publish(pubsub.FailedEvent, llm.Message{Role: llm.RoleSystem, Content: event.Err.Error()})
			return "", llm.ProviderFailure("agent run failed", event.Err)
		}
		if msg := r.handleEvent(ctx, event); msg != nil && msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 {
			answer = msg.Content
		}
	}

	if answer == "" {
		err := errors.New("agent finished without an answer")
		r.broker.Publish(pubsub.FailedEvent, llm.Message{Role: llm.RoleSystem, Content: err.Error()})
		return "", llm.ProviderFailure("agent run failed", err)
	}
	r.broker.Publish(pubsub.FinishedEvent, llm.Message{Role: llm.RoleAssistant, Content: answer})
	return answer, nil
}

// handleEvent 记录事件中的消息并发布
func (r *Runtime) handleEvent(ctx context.Context, event *adk.AgentEvent) adk.Message {
	if event.Output == nil || event.Output.MessageOutput == nil {
		return nil
	}

	msg, err := event.Output.MessageOutput.GetMessage()
	if err != nil {
		r.logger.Warn("failed to read agent message", "error", err)
		return nil
	}
	if err := r.store.Add(ctx, msg); err != nil {
		r.logger.Warn("failed to store agent message", "error", err)
	}

	switch {
	case len(msg.ToolCalls) > 0:
		for _, tc := range msg.ToolCalls {
			r.broker.Publish(pubsub.UpdatedEvent, llm.Message{
				Role:    llm.RoleSystem,
				Content: fmt.Sprintf("calling %s %s", tc.Function.Name, tc.Function.Arguments),
			})
		}
	case msg.Role == schema.Tool:
		r.logger.Debug("tool result", "tool", msg.ToolName, "bytes", len(msg.Content))
	case msg.Role == schema.Assistant:
		r.broker.Publish(pubsub.UpdatedEvent, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
	}
	return msg
}

// Broker 获取事件 Broker
func (r *Runtime) Broker() *pubsub.Broker[llm.Message] {
	return r.broker
}

// Store 获取对话存储
func (r *Runtime) Store() ConversationStore {
	return r.store
}

// Close 关闭运行时
func (r *Runtime) Close() {
	r.broker.Shutdown()
}
