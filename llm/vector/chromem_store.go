package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"llmmemory/llm"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/philippgille/chromem-go"
)

const (
	chromemSchemaID = "__schema__"
	chromemKind     = "kind"
	chromemRecord   = "record"
	chromemMetadata = "metadata"
)

// ChromemConfig configures the embedded chromem-go backend
type ChromemConfig struct {
	// Path persists collections on disk; empty keeps everything in memory
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// ChromemStore implements VectorStore on an embedded chromem-go collection.
// chromem-go only does cosine similarity, so it only accepts MetricCosine,
// and it hands back unit-normalized vectors.
//
// The collection holds a schema document whose embedding length is the index
// dimension, so the dimension survives a reopen of a persistent DB.
type ChromemStore struct {
	db     *chromem.DB
	index  string
	prefix string
	logger *slog.Logger

	mu sync.Mutex
}

// NewChromemStore opens an in-memory or persistent chromem-go DB
func NewChromemStore(cfg StoreConfig) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Chromem.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Chromem.Path, cfg.Chromem.Compress)
		if err != nil {
			return nil, llm.ProviderFailure("failed to open chromem db", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:     db,
		index:  cfg.IndexName,
		prefix: cfg.IndexName + ":",
		logger: cfg.logger(),
	}, nil
}

// noEmbedding keeps chromem-go from calling its default remote embedder
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be supplied by the caller")
}

func (s *ChromemStore) collection() *chromem.Collection {
	return s.db.GetCollection(s.index, noEmbedding)
}

// CreateIndex creates the collection and its schema document
func (s *ChromemStore) CreateIndex(ctx context.Context, dim int, metric llm.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("%w: index dimension must be positive", llm.ErrValidation)
	}
	if metric != llm.MetricCosine && metric != "" {
		return fmt.Errorf("%w: chromem supports only cosine distance, got %q", llm.ErrConfig, metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection() != nil {
		return fmt.Errorf("index %q: %w", s.index, llm.ErrAlreadyExists)
	}
	col, err := s.db.CreateCollection(s.index, map[string]string{"dim": strconv.Itoa(dim)}, noEmbedding)
	if err != nil {
		return llm.ProviderFailure("failed to create collection", err)
	}

	axis := make([]float32, dim)
	axis[0] = 1
	err = col.AddDocument(ctx, chromem.Document{
		ID:        chromemSchemaID,
		Metadata:  map[string]string{chromemKind: "schema"},
		Embedding: axis,
		Content:   "schema",
	})
	if err != nil {
		_ = s.db.DeleteCollection(s.index)
		return llm.ProviderFailure("failed to write index schema", err)
	}
	return nil
}

// IndexExists reports whether the collection exists
func (s *ChromemStore) IndexExists(ctx context.Context) (bool, error) {
	return s.collection() != nil, nil
}

// DropIndex deletes the collection
func (s *ChromemStore) DropIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection() == nil {
		return fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
	}
	if err := s.db.DeleteCollection(s.index); err != nil {
		return llm.ProviderFailure("failed to drop collection", err)
	}
	return nil
}

// open returns the collection and its dimension
func (s *ChromemStore) open(ctx context.Context) (*chromem.Collection, int, error) {
	col := s.collection()
	if col == nil {
		return nil, 0, fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
	}
	schema, err := col.GetByID(ctx, chromemSchemaID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: index %q has no schema document", llm.ErrDeserialization, s.index)
	}
	return col, len(schema.Embedding), nil
}

// Add validates all records, then writes them one document each
func (s *ChromemStore) Add(ctx context.Context, records []llm.Record) (map[string]string, error) {
	result := make(map[string]string, len(records))
	if len(records) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, dim, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(records, dim); err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, len(records))
	now := time.Now()
	for i, rec := range records {
		meta, err := EncodeMetadata(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d metadata: %w", llm.ErrValidation, i, err)
		}
		docs[i] = chromem.Document{
			ID:        newKey(s.index, now, rec.Metadata),
			Metadata:  map[string]string{chromemKind: chromemRecord, chromemMetadata: meta},
			Embedding: rec.Vector,
			Content:   rec.Content,
		}
	}

	for _, doc := range docs {
		if err := col.AddDocument(ctx, doc); err != nil {
			return nil, llm.ProviderFailure("failed to add document", err)
		}
		result[doc.ID] = doc.Content
	}
	return result, nil
}

// Get fetches one document
func (s *ChromemStore) Get(ctx context.Context, key string) (*llm.Record, error) {
	col := s.collection()
	if col == nil || key == chromemSchemaID {
		return nil, fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	doc, err := col.GetByID(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	meta, err := DecodeMetadata(doc.Metadata[chromemMetadata])
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	return &llm.Record{
		Key:      doc.ID,
		Content:  doc.Content,
		Vector:   doc.Embedding,
		Metadata: meta,
	}, nil
}

// Delete removes one document
func (s *ChromemStore) Delete(ctx context.Context, key string) error {
	if _, err := s.Get(ctx, key); err != nil {
		return err
	}
	if err := s.collection().Delete(ctx, nil, nil, key); err != nil {
		return llm.ProviderFailure("failed to delete document", err)
	}
	return nil
}

// DeleteAll removes every record document
func (s *ChromemStore) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, s)
}

// List matches record keys against a glob under the index prefix
func (s *ChromemStore) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	col, dim, err := s.open(ctx)
	if errors.Is(err, llm.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	all, err := s.records(ctx, col, dim)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, r := range all {
		ok, err := doublestar.Match(s.prefix+pattern, r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %w", llm.ErrValidation, pattern, err)
		}
		if ok {
			keys = append(keys, r.ID)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// records returns every record document by querying with the schema axis
func (s *ChromemStore) records(ctx context.Context, col *chromem.Collection, dim int) ([]chromem.Result, error) {
	n := col.Count()
	if n <= 1 {
		return nil, nil
	}
	axis := make([]float32, dim)
	axis[0] = 1
	res, err := col.QueryEmbedding(ctx, axis, n, map[string]string{chromemKind: chromemRecord}, nil)
	if err != nil {
		return nil, llm.ProviderFailure("failed to scan collection", err)
	}
	return res, nil
}

// Search runs an exhaustive cosine search; Score is 1 - similarity
func (s *ChromemStore) Search(ctx context.Context, query []float32, k int) ([]llm.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", llm.ErrValidation)
	}
	col, dim, err := s.open(ctx)
	if errors.Is(err, llm.ErrNotFound) {
		return []llm.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d", ErrDimensionMismatch, len(query), dim)
	}

	n := min(k, col.Count())
	if n == 0 {
		return []llm.SearchResult{}, nil
	}
	hits, err := col.QueryEmbedding(ctx, query, n, map[string]string{chromemKind: chromemRecord}, nil)
	if err != nil {
		return nil, llm.ProviderFailure("vector search failed", err)
	}

	results := make([]llm.SearchResult, 0, len(hits))
	for _, hit := range hits {
		meta, err := DecodeMetadata(hit.Metadata[chromemMetadata])
		if err != nil {
			s.logger.Warn("skipping search result with malformed metadata", "key", hit.ID, "error", err)
			continue
		}
		results = append(results, llm.SearchResult{
			Key:      hit.ID,
			Content:  hit.Content,
			Metadata: meta,
			Score:    1 - hit.Similarity,
		})
	}
	return results, nil
}

// Close is a no-op; chromem-go persists synchronously
func (s *ChromemStore) Close() error {
	return nil
}

var _ VectorStore = (*ChromemStore)(nil)
