package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"llmmemory/llm"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension
var ErrDimensionMismatch = fmt.Errorf("%w: vector dimension mismatch", llm.ErrValidation)

// VectorStore defines the interface for vector storage operations.
// A store is bound to one named index.
type VectorStore interface {
	// CreateIndex creates the index. It fails with llm.ErrAlreadyExists if present.
	CreateIndex(ctx context.Context, dim int, metric llm.Metric) error

	// IndexExists reports whether the index exists
	IndexExists(ctx context.Context) (bool, error)

	// DropIndex removes the index and every record in it
	DropIndex(ctx context.Context) error

	// Add persists records and returns generated key -> content
	Add(ctx context.Context, records []llm.Record) (map[string]string, error)

	// Get fetches a record by key
	Get(ctx context.Context, key string) (*llm.Record, error)

	// Delete removes one record
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every record but keeps the index
	DeleteAll(ctx context.Context) error

	// List returns keys under the index namespace. An empty pattern matches all.
	List(ctx context.Context, pattern string) ([]string, error)

	// Search returns at most k records closest to query, nearest first
	Search(ctx context.Context, query []float32, k int) ([]llm.SearchResult, error)

	// Close closes any connections or resources
	Close() error
}

// StoreConfig holds configuration for vector store implementations
type StoreConfig struct {
	// Backend is the registered store name
	Backend string `yaml:"backend"`

	// IndexName names the index and prefixes record keys
	IndexName string `yaml:"index"`

	// Metric is used when the index is created implicitly
	Metric llm.Metric `yaml:"metric"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PGVectorConfig `yaml:"postgres"`
	Chromem  ChromemConfig  `yaml:"chromem"`

	// Logger receives skipped-record warnings; nil means slog.Default()
	Logger *slog.Logger `yaml:"-"`
}

func (c StoreConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// DefaultStoreConfig returns default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:   "redis",
		IndexName: "llm_memory",
		Metric:    llm.MetricCosine,
		Redis:     DefaultRedisConfig(),
		Postgres:  DefaultPGVectorConfig(),
	}
}

// Factory opens a store from configuration
type Factory func(ctx context.Context, cfg StoreConfig) (VectorStore, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"redis": func(ctx context.Context, cfg StoreConfig) (VectorStore, error) {
			return NewRedisStore(ctx, cfg)
		},
		"chromem": func(ctx context.Context, cfg StoreConfig) (VectorStore, error) {
			return NewChromemStore(cfg)
		},
		"pgvector": func(ctx context.Context, cfg StoreConfig) (VectorStore, error) {
			return NewPGVectorStore(ctx, cfg)
		},
	}
)

// Register adds or replaces a backend
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Backends lists registered backend names
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open constructs the backend named by cfg.Backend
func Open(ctx context.Context, cfg StoreConfig) (VectorStore, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vector store %q: %w", cfg.Backend, llm.ErrNotFound)
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", llm.ErrConfig)
	}
	return f(ctx, cfg)
}

// deleteAll is DeleteAll built from List + Delete. Keys that vanish
// concurrently are ignored.
func deleteAll(ctx context.Context, s VectorStore) error {
	keys, err := s.List(ctx, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil && !errors.Is(err, llm.ErrNotFound) {
			return err
		}
	}
	return nil
}
