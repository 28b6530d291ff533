package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"llmmemory/llm"

	"github.com/redis/go-redis/v9"
)

const (
	// Field names in Redis hash
	fieldContent  = "content"
	fieldVector   = "vector"
	fieldMetadata = "metadata"
	fieldScore    = "vector_score"

	defaultEFConstruction = 200
	defaultM              = 16
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB when set
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`

	// Algorithm is FLAT or HNSW
	Algorithm      string `yaml:"algorithm"`
	EFConstruction int    `yaml:"ef_construction"`
	M              int    `yaml:"m"`
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           "localhost:6379",
		PoolSize:       10,
		Algorithm:      "FLAT",
		EFConstruction: defaultEFConstruction,
		M:              defaultM,
	}
}

// RedisStore implements VectorStore on Redis with the RediSearch module.
// Records are hashes under "{index}:".
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
	index  string
	prefix string
	logger *slog.Logger

	mu  sync.RWMutex
	dim int
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg StoreConfig) (*RedisStore, error) {
	rc := cfg.Redis

	var opts *redis.Options
	if rc.URL != "" {
		parsed, err := redis.ParseURL(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid redis url: %w", llm.ErrConfig, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			PoolSize: rc.PoolSize,
		}
	}
	// FT.* replies are parsed as RESP2 arrays
	opts.Protocol = 2

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, llm.ProviderFailure("failed to connect to Redis", err)
	}

	return newRedisStoreWithClient(client, cfg), nil
}

func newRedisStoreWithClient(client *redis.Client, cfg StoreConfig) *RedisStore {
	rc := cfg.Redis
	if rc.Algorithm == "" {
		rc.Algorithm = "FLAT"
	}
	return &RedisStore{
		client: client,
		cfg:    rc,
		index:  cfg.IndexName,
		prefix: cfg.IndexName + ":",
		logger: cfg.logger(),
	}
}

func redisMetric(metric llm.Metric) (string, error) {
	switch metric {
	case llm.MetricCosine, "":
		return "COSINE", nil
	case llm.MetricL2:
		return "L2", nil
	case llm.MetricDot:
		return "IP", nil
	}
	return "", fmt.Errorf("%w: unsupported distance metric %q", llm.ErrConfig, metric)
}

// CreateIndex runs FT.CREATE over hashes under the index prefix
func (s *RedisStore) CreateIndex(ctx context.Context, dim int, metric llm.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("%w: index dimension must be positive", llm.ErrValidation)
	}
	distance, err := redisMetric(metric)
	if err != nil {
		return err
	}

	exists, err := s.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("index %q: %w", s.index, llm.ErrAlreadyExists)
	}

	vectorArgs := []any{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", distance,
	}
	algo := strings.ToUpper(s.cfg.Algorithm)
	if algo == "HNSW" {
		vectorArgs = append(vectorArgs,
			"EF_CONSTRUCTION", strconv.Itoa(s.cfg.EFConstruction),
			"M", strconv.Itoa(s.cfg.M),
		)
	}

	// FT.CREATE idx ON HASH PREFIX 1 idx: SCHEMA content TEXT metadata TEXT
	//   vector VECTOR FLAT 6 TYPE FLOAT32 DIM d DISTANCE_METRIC COSINE
	args := []any{"FT.CREATE", s.index,
		"ON", "HASH",
		"PREFIX", "1", s.prefix,
		"SCHEMA",
		fieldContent, "TEXT",
		fieldMetadata, "TEXT",
		fieldVector, "VECTOR", algo, strconv.Itoa(len(vectorArgs)),
	}
	args = append(args, vectorArgs...)

	if err := s.client.Do(ctx, args...).Err(); err != nil {
		return llm.ProviderFailure("failed to create index", err)
	}

	s.mu.Lock()
	s.dim = dim
	s.mu.Unlock()
	return nil
}

// IndexExists probes FT.INFO; an unknown-index reply means false
func (s *RedisStore) IndexExists(ctx context.Context) (bool, error) {
	_, err := s.client.Do(ctx, "FT.INFO", s.index).Result()
	if err == nil {
		return true, nil
	}
	if isUnknownIndex(err) {
		return false, nil
	}
	return false, llm.ProviderFailure("failed to probe index", err)
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// DropIndex runs FT.DROPINDEX with DD so the hashes go too
func (s *RedisStore) DropIndex(ctx context.Context) error {
	if err := s.client.Do(ctx, "FT.DROPINDEX", s.index, "DD").Err(); err != nil {
		if isUnknownIndex(err) {
			return fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
		}
		return llm.ProviderFailure("failed to drop index", err)
	}
	s.mu.Lock()
	s.dim = 0
	s.mu.Unlock()
	return nil
}

// dimension returns the index dimension, reading it from FT.INFO when the
// index was created by another process.
func (s *RedisStore) dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	dim := s.dim
	s.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	info, err := s.client.Do(ctx, "FT.INFO", s.index).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
		}
		return 0, llm.ProviderFailure("failed to read index info", err)
	}
	dim = findDim(info)
	if dim <= 0 {
		return 0, fmt.Errorf("%w: index %q info carries no vector dimension", llm.ErrDeserialization, s.index)
	}

	s.mu.Lock()
	s.dim = dim
	s.mu.Unlock()
	return dim, nil
}

// findDim walks an FT.INFO reply looking for a "dim" attribute
func findDim(v any) int {
	items, ok := v.([]any)
	if !ok {
		return 0
	}
	for i, item := range items {
		if name, ok := item.(string); ok && strings.EqualFold(name, "dim") && i+1 < len(items) {
			switch d := items[i+1].(type) {
			case int64:
				return int(d)
			case string:
				if n, err := strconv.Atoi(d); err == nil {
					return n
				}
			}
		}
		if d := findDim(item); d > 0 {
			return d
		}
	}
	return 0
}

// Add writes every record with one pipelined HSET each
func (s *RedisStore) Add(ctx context.Context, records []llm.Record) (map[string]string, error) {
	result := make(map[string]string, len(records))
	if len(records) == 0 {
		return result, nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(records, dim); err != nil {
		return nil, err
	}

	metas := make([]string, len(records))
	for i, rec := range records {
		meta, err := EncodeMetadata(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d metadata: %w", llm.ErrValidation, i, err)
		}
		metas[i] = meta
	}

	now := time.Now()
	pipe := s.client.Pipeline()
	for i, rec := range records {
		key := newKey(s.index, now, rec.Metadata)
		pipe.HSet(ctx, key,
			fieldContent, rec.Content,
			fieldVector, encodeVector(rec.Vector),
			fieldMetadata, metas[i],
		)
		result[key] = rec.Content
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, llm.ProviderFailure("failed to insert records", err)
	}
	return result, nil
}

// Get reads one hash
func (s *RedisStore) Get(ctx context.Context, key string) (*llm.Record, error) {
	if !strings.HasPrefix(key, s.prefix) {
		return nil, fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, llm.ProviderFailure("failed to get record", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}

	rec := &llm.Record{Key: key, Content: fields[fieldContent]}
	if blob, ok := fields[fieldVector]; ok {
		vec, err := decodeVector([]byte(blob))
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", llm.ErrDeserialization, key, err)
		}
		rec.Vector = vec
	}
	meta, err := DecodeMetadata(fields[fieldMetadata])
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	rec.Metadata = meta
	return rec, nil
}

// Delete removes one hash
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, s.prefix) {
		return fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return llm.ProviderFailure("failed to delete record", err)
	}
	if n == 0 {
		return fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every record under the prefix
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, s)
}

// List scans keys under the prefix
func (s *RedisStore) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, llm.ProviderFailure("failed to list keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Search runs a KNN query sorted by ascending vector_score
func (s *RedisStore) Search(ctx context.Context, query []float32, k int) ([]llm.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", llm.ErrValidation)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", llm.ErrValidation)
	}

	// FT.SEARCH idx "*=>[KNN k @vector $blob AS vector_score]"
	//   PARAMS 2 blob <bytes> SORTBY vector_score ASC LIMIT 0 k
	//   RETURN 3 vector_score content metadata DIALECT 2
	queryStr := fmt.Sprintf("*=>[KNN %d @%s $blob AS %s]", k, fieldVector, fieldScore)
	reply, err := s.client.Do(ctx, "FT.SEARCH", s.index, queryStr,
		"PARAMS", "2", "blob", encodeVector(query),
		"SORTBY", fieldScore, "ASC",
		"LIMIT", "0", strconv.Itoa(k),
		"RETURN", "3", fieldScore, fieldContent, fieldMetadata,
		"DIALECT", "2",
	).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return []llm.SearchResult{}, nil
		}
		return nil, llm.ProviderFailure("vector search failed", err)
	}

	results, err := parseSearchReply(reply, s.logger)
	if err != nil {
		return nil, err
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// parseSearchReply parses a RESP2 FT.SEARCH reply:
// [total, key1, [field, value, ...], key2, [...], ...].
// Records whose metadata cannot be decoded are logged and skipped.
func parseSearchReply(reply any, logger *slog.Logger) ([]llm.SearchResult, error) {
	values, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected search reply %T", llm.ErrDeserialization, reply)
	}

	results := make([]llm.SearchResult, 0, len(values)/2)
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]any)
		if !ok {
			continue
		}

		res := llm.SearchResult{Key: key}
		var rawMeta string
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value := fmt.Sprint(fields[j+1])
			switch name {
			case fieldContent:
				res.Content = value
			case fieldMetadata:
				rawMeta = value
			case fieldScore:
				if f, err := strconv.ParseFloat(value, 32); err == nil {
					res.Score = float32(f)
				}
			}
		}

		meta, err := DecodeMetadata(rawMeta)
		if err != nil {
			logger.Warn("skipping search result with malformed metadata", "key", key, "error", err)
			continue
		}
		res.Metadata = meta
		results = append(results, res)
	}
	return results, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ VectorStore = (*RedisStore)(nil)
