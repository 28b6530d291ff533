package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"llmmemory/llm"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PGVectorConfig configures the PostgreSQL + pgvector backend
type PGVectorConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// DefaultPGVectorConfig returns default configuration
func DefaultPGVectorConfig() PGVectorConfig {
	return PGVectorConfig{MaxOpenConns: 5}
}

const metricCommentPrefix = "metric="

// PGVectorStore keeps one table per index:
// key TEXT PRIMARY KEY, content TEXT, metadata TEXT, embedding vector(d).
// The metric is recorded in the table comment.
type PGVectorStore struct {
	db     *sql.DB
	index  string
	table  string
	prefix string
	logger *slog.Logger
}

// NewPGVectorStore connects with lib/pq
func NewPGVectorStore(ctx context.Context, cfg StoreConfig) (*PGVectorStore, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("%w: postgres url is required", llm.ErrConfig)
	}
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrConfig, err)
	}
	if cfg.Postgres.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, llm.ProviderFailure("failed to connect to postgres", err)
	}
	return newPGVectorStoreWithDB(db, cfg), nil
}

func newPGVectorStoreWithDB(db *sql.DB, cfg StoreConfig) *PGVectorStore {
	return &PGVectorStore{
		db:     db,
		index:  cfg.IndexName,
		table:  tableName(cfg.IndexName),
		prefix: cfg.IndexName + ":",
		logger: cfg.logger(),
	}
}

// tableName maps an index name to a safe lower-case identifier
func tableName(index string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(index) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "vec_" + b.String()
}

func pgOperator(metric llm.Metric) (op, opclass string, err error) {
	switch metric {
	case llm.MetricCosine, "":
		return "<=>", "vector_cosine_ops", nil
	case llm.MetricL2:
		return "<->", "vector_l2_ops", nil
	case llm.MetricDot:
		return "<#>", "vector_ip_ops", nil
	}
	return "", "", fmt.Errorf("%w: unsupported distance metric %q", llm.ErrConfig, metric)
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}

// CreateIndex creates the table and an HNSW index on the embedding
func (s *PGVectorStore) CreateIndex(ctx context.Context, dim int, metric llm.Metric) error {
	if dim <= 0 {
		return fmt.Errorf("%w: index dimension must be positive", llm.ErrValidation)
	}
	if metric == "" {
		metric = llm.MetricCosine
	}
	_, opclass, err := pgOperator(metric)
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

	table := pq.QuoteIdentifier(s.table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE %s (
			key TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING hnsw (embedding %s)`,
			pq.QuoteIdentifier(s.table+"_embedding_idx"), table, opclass),
		fmt.Sprintf(`COMMENT ON TABLE %s IS %s`, table, pq.QuoteLiteral(metricCommentPrefix+string(metric))),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return llm.ProviderFailure("failed to begin transaction", err)
	}
	defer tx.Rollback()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return llm.ProviderFailure("failed to create index", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return llm.ProviderFailure("failed to create index", err)
	}
	return nil
}

// IndexExists checks the catalog for the table
func (s *PGVectorStore) IndexExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1)`, s.table).Scan(&exists)
	if err != nil {
		return false, llm.ProviderFailure("failed to probe index", err)
	}
	return exists, nil
}

// DropIndex drops the table
func (s *PGVectorStore) DropIndex(ctx context.Context) error {
	exists, err := s.IndexExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s`, pq.QuoteIdentifier(s.table))); err != nil {
		return llm.ProviderFailure("failed to drop index", err)
	}
	return nil
}

// schema reads the dimension from the column typmod and the metric from the comment
func (s *PGVectorStore) schema(ctx context.Context) (int, llm.Metric, error) {
	var (
		dim     int
		comment sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT a.atttypmod, obj_description(a.attrelid, 'pg_class')
		 FROM pg_attribute a
		 WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding'`,
		pq.QuoteIdentifier(s.table)).Scan(&dim, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", fmt.Errorf("index %q: %w", s.index, llm.ErrNotFound)
	}
	if err != nil {
		return 0, "", llm.ProviderFailure("failed to read index schema", err)
	}

	metric := llm.MetricCosine
	if comment.Valid {
		if m, ok := llm.ParseMetric(strings.TrimPrefix(comment.String, metricCommentPrefix)); ok {
			metric = m
		}
	}
	return dim, metric, nil
}

// Add inserts all records in one transaction
func (s *PGVectorStore) Add(ctx context.Context, records []llm.Record) (map[string]string, error) {
	result := make(map[string]string, len(records))
	if len(records) == 0 {
		return result, nil
	}

	dim, _, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(records, dim); err != nil {
		return nil, err
	}
	metas := make([]string, len(records))
	for i, rec := range records {
		if metas[i], err = EncodeMetadata(rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: record %d metadata: %w", llm.ErrValidation, i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, llm.ProviderFailure("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, content, metadata, embedding) VALUES ($1, $2, $3, $4)`,
		pq.QuoteIdentifier(s.table)))
	if err != nil {
		return nil, llm.ProviderFailure("failed to prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i, rec := range records {
		key := newKey(s.index, now, rec.Metadata)
		if _, err := stmt.ExecContext(ctx, key, rec.Content, metas[i], pgvector.NewVector(rec.Vector)); err != nil {
			return nil, llm.ProviderFailure("failed to insert record", err)
		}
		result[key] = rec.Content
	}

	if err := tx.Commit(); err != nil {
		return nil, llm.ProviderFailure("failed to commit records", err)
	}
	return result, nil
}

// Get selects one row
func (s *PGVectorStore) Get(ctx context.Context, key string) (*llm.Record, error) {
	var (
		content, meta string
		vec           pgvector.Vector
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT content, metadata, embedding FROM %s WHERE key = $1`, pq.QuoteIdentifier(s.table)),
		key).Scan(&content, &meta, &vec)
	if errors.Is(err, sql.ErrNoRows) || (err != nil && isUndefinedTable(err)) {
		return nil, fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	if err != nil {
		return nil, llm.ProviderFailure("failed to get record", err)
	}

	metadata, err := DecodeMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	return &llm.Record{Key: key, Content: content, Vector: vec.Slice(), Metadata: metadata}, nil
}

// Delete removes one row
func (s *PGVectorStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE key = $1`, pq.QuoteIdentifier(s.table)), key)
	if err != nil {
		if isUndefinedTable(err) {
			return fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
		}
		return llm.ProviderFailure("failed to delete record", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("key %q: %w", key, llm.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every row but keeps the table
func (s *PGVectorStore) DeleteAll(ctx context.Context) error {
	return deleteAll(ctx, s)
}

// List selects keys and filters them with a glob
func (s *PGVectorStore) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT key FROM %s ORDER BY key`, pq.QuoteIdentifier(s.table)))
	if err != nil {
		if isUndefinedTable(err) {
			return []string{}, nil
		}
		return nil, llm.ProviderFailure("failed to list keys", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, llm.ProviderFailure("failed to list keys", err)
		}
		ok, err := doublestar.Match(s.prefix+pattern, key)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %w", llm.ErrValidation, pattern, err)
		}
		if ok {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, llm.ProviderFailure("failed to list keys", err)
	}
	return keys, nil
}

// Search orders by the metric's distance operator. For dot product the
// score is the negated inner product, so ascending order still means closer.
func (s *PGVectorStore) Search(ctx context.Context, query []float32, k int) ([]llm.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", llm.ErrValidation)
	}
	dim, metric, err := s.schema(ctx)
	if errors.Is(err, llm.ErrNotFound) {
		return []llm.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d", ErrDimensionMismatch, len(query), dim)
	}
	op, _, err := pgOperator(metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT key, content, metadata, embedding %[2]s $1 AS distance
		 FROM %[1]s ORDER BY embedding %[2]s $1 LIMIT $2`, pq.QuoteIdentifier(s.table), op),
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, llm.ProviderFailure("vector search failed", err)
	}
	defer rows.Close()

	results := make([]llm.SearchResult, 0, k)
	for rows.Next() {
		var (
			res  llm.SearchResult
			meta string
			dist float64
		)
		if err := rows.Scan(&res.Key, &res.Content, &meta, &dist); err != nil {
			return nil, llm.ProviderFailure("vector search failed", err)
		}
		if res.Metadata, err = DecodeMetadata(meta); err != nil {
			s.logger.Warn("skipping search result with malformed metadata", "key", res.Key, "error", err)
			continue
		}
		res.Score = float32(dist)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, llm.ProviderFailure("vector search failed", err)
	}
	return results, nil
}

// Close closes the connection pool
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

var _ VectorStore = (*PGVectorStore)(nil)
