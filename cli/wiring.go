package cli

import (
	"context"
	"fmt"

	"llmmemory/llm"
	"llmmemory/llm/agent"
	"llmmemory/llm/conversation"
	"llmmemory/llm/embedding"
	"llmmemory/llm/loader"
	"llmmemory/llm/memory"
	"llmmemory/llm/providers"
	"llmmemory/llm/tools"
	"llmmemory/llm/vector"
	"llmmemory/pubsub"
)

// openManager opens the configured store and embedder. The returned func
// closes the store.
func openManager(ctx context.Context) (*memory.Manager, func(), error) {
	store, err := vector.Open(ctx, cfg.StoreConfig(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close vector store", "error", err)
		}
	}

	emb, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	m, err := memory.NewManager(store, emb, cfg.MemoryConfig(logger))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return m, closeStore, nil
}

func newLoader() *loader.Loader {
	return loader.New(nil, cfg.LoaderConfig(logger))
}

// startTracing enables cozeloop tracing when configured; the returned
// func flushes it
func startTracing(ctx context.Context) func() {
	flush, err := providers.EnableTracing(cfg.Tracing)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() { flush(ctx) }
}

// newSession builds a RAG session over m. events may be nil.
func newSession(ctx context.Context, m *memory.Manager, events pubsub.Publisher[llm.Message], k int) (*conversation.Session, error) {
	provider, err := providers.New(ctx, cfg.Chat)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Tokenizer()
	if err != nil {
		return nil, err
	}
	wc, err := cfg.ConversationConfig(logger)
	if err != nil {
		return nil, err
	}

	var opts []conversation.Option
	if events != nil {
		opts = append(opts, conversation.WithPublisher(events))
	}
	w, err := conversation.NewWindow(provider, tok, wc, opts...)
	if err != nil {
		return nil, err
	}
	return conversation.NewSession(m, w, k), nil
}

// newRuntime builds the librarian agent with the knowledge tools over m
func newRuntime(ctx context.Context, m *memory.Manager) (*agent.Runtime, error) {
	chatModel, err := providers.NewChatModel(ctx, cfg.Chat)
	if err != nil {
		return nil, err
	}
	kb := tools.NewKnowledge(m, newLoader(), tools.WithLogger(logger))
	toolsList, err := kb.Tools()
	if err != nil {
		return nil, fmt.Errorf("failed to build tools: %w", err)
	}
	return agent.NewRuntime(ctx, chatModel, toolsList, cfg.RuntimeConfig(logger))
}

func topK(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return cfg.Agent.TopK
}
