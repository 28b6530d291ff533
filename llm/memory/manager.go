// Package memory orchestrates chunking, embedding and vector storage.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"llmmemory/llm"
	"llmmemory/llm/embedding"
	"llmmemory/llm/vector"
)

// DefaultK is the number of results Query returns when k <= 0
const DefaultK = 3

// Config configures a Manager
type Config struct {
	Chunk vector.ChunkConfig `yaml:"chunk"`

	// Metric is used when the index is created on first Memorize
	Metric llm.Metric `yaml:"metric"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Chunk:  vector.DefaultChunkConfig(),
		Metric: llm.MetricCosine,
	}
}

// Manager drives Chunker -> Embedder -> VectorStore for ingestion and
// Embedder -> VectorStore for queries. Callers serialize access.
type Manager struct {
	chunker  *vector.Chunker
	embedder embedding.Embedder
	store    vector.VectorStore
	metric   llm.Metric
	logger   *slog.Logger
}

// NewManager validates the chunk configuration and wires the collaborators
func NewManager(store vector.VectorStore, embedder embedding.Embedder, cfg Config) (*Manager, error) {
	if store == nil || embedder == nil {
		return nil, fmt.Errorf("%w: store and embedder are required", llm.ErrConfig)
	}
	chunker, err := vector.NewChunker(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	metric := cfg.Metric
	if metric == "" {
		metric = llm.MetricCosine
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		metric:   metric,
		logger:   logger,
	}, nil
}

// Store returns the underlying vector store
func (m *Manager) Store() vector.VectorStore {
	return m.store
}

// Memorize validates, chunks, embeds and stores documents. It returns the
// generated key -> chunk content. A validation failure lists every bad
// document and persists nothing.
func (m *Manager) Memorize(ctx context.Context, docs []llm.Document) (map[string]string, error) {
	if err := validate(docs); err != nil {
		return nil, err
	}

	chunks := m.chunker.Chunk(docs)

	records := make([]llm.Record, 0, len(chunks))
	for i, ch := range chunks {
		// fixed windows over a blank tail carry nothing worth embedding
		if strings.TrimSpace(ch.Content) == "" {
			m.logger.Debug("skipped blank chunk", "chunk", i, "length", len(ch.Content))
			continue
		}
		vec, err := m.embedder.Embed(ctx, ch.Content)
		if err != nil {
			return nil, llm.ProviderFailure(fmt.Sprintf("failed to embed chunk %d", i), err)
		}
		records = append(records, llm.Record{Content: ch.Content, Vector: vec, Metadata: ch.Metadata})
	}
	if len(records) == 0 {
		return map[string]string{}, nil
	}

	if err := m.ensureIndex(ctx, len(records[0].Vector)); err != nil {
		return nil, err
	}

	keys, err := m.store.Add(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to store records: %w", err)
	}
	m.logger.Debug("memorized documents", "documents", len(docs), "chunks", len(records))
	return keys, nil
}

func (m *Manager) ensureIndex(ctx context.Context, dim int) error {
	exists, err := m.store.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe index: %w", err)
	}
	if exists {
		return nil
	}
	err = m.store.CreateIndex(ctx, dim, m.metric)
	switch {
	case errors.Is(err, llm.ErrAlreadyExists):
		return nil
	case err != nil:
		return fmt.Errorf("failed to create index: %w", err)
	}
	m.logger.Info("created index", "dimension", dim, "metric", m.metric)
	return nil
}

// validate collects every document violation. Whitespace-only content is
// valid and chunks to nothing.
func validate(docs []llm.Document) error {
	var violations []string
	for i, doc := range docs {
		if doc.Content == "" {
			violations = append(violations, fmt.Sprintf("document %d: content must be a non-empty string", i))
		}
		if _, err := vector.EncodeMetadata(doc.Metadata); err != nil {
			violations = append(violations, fmt.Sprintf("document %d: metadata is not JSON-encodable: %v", i, err))
		}
	}
	if len(violations) > 0 {
		return &llm.ValidationError{Violations: violations}
	}
	return nil
}

// Query embeds text once and returns the k nearest records, closest first
func (m *Manager) Query(ctx context.Context, text string, k int) ([]llm.SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", llm.ErrValidation)
	}
	if k <= 0 {
		k = DefaultK
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, llm.ProviderFailure("failed to embed query", err)
	}
	results, err := m.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return results, nil
}

// Forget deletes one record
func (m *Manager) Forget(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// ForgetAll drops the index when it exists
func (m *Manager) ForgetAll(ctx context.Context) error {
	exists, err := m.store.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe index: %w", err)
	}
	if !exists {
		return nil
	}
	return m.store.DropIndex(ctx)
}

// List returns stored keys matching a glob pattern; empty means all
func (m *Manager) List(ctx context.Context, pattern string) ([]string, error) {
	return m.store.List(ctx, pattern)
}

// Get fetches one record
func (m *Manager) Get(ctx context.Context, key string) (*llm.Record, error) {
	return m.store.Get(ctx, key)
}
