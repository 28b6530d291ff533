package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"llmmemory/llm"
	"llmmemory/llm/loader"
	"llmmemory/llm/memory"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	// SearchKnowledgeToolName is the name of the knowledge search tool
	SearchKnowledgeToolName = "search_knowledge"

	maxTopK = 10
)

// Knowledge exposes a memory manager to tool-calling agents
type Knowledge struct {
	manager *memory.Manager
	loader  *loader.Loader
	client  *http.Client
	logger  *slog.Logger
}

// KnowledgeOption customizes a Knowledge
type KnowledgeOption func(*Knowledge)

// WithHTTPClient sets the client used by ingest_url
func WithHTTPClient(c *http.Client) KnowledgeOption {
	return func(k *Knowledge) { k.client = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) KnowledgeOption {
	return func(k *Knowledge) { k.logger = l }
}

// NewKnowledge binds the knowledge tools to a manager. A nil loader uses
// the default parser registry.
func NewKnowledge(m *memory.Manager, l *loader.Loader, opts ...KnowledgeOption) *Knowledge {
	if l == nil {
		l = loader.New(nil, loader.DefaultConfig())
	}
	k := &Knowledge{
		manager: m,
		loader:  l,
		client:  &http.Client{Timeout: DefaultTimeout * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// SearchKnowledgeParams defines parameters for knowledge base search
type SearchKnowledgeParams struct {
	Query string `json:"query" jsonschema:"description=What to look up in the knowledge base"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Number of results (default 3, max 10)"`
}

const searchDescription = `Search the local knowledge base for passages related to a query.

USE CASES:
- Answer questions about documents the user has memorized
- Find supporting context before answering

PARAMETERS:
- query (required): natural language query
- top_k (optional): number of passages, default 3, max 10

OUTPUT FORMAT:
Passages ordered from closest to farthest. Each passage shows its key,
its distance (lower is closer) and its source when known.`

// Search runs a KNN query against the knowledge base
func (k *Knowledge) Search(ctx context.Context, params SearchKnowledgeParams) (string, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return Error("query parameter is required")
	}

	topK := params.TopK
	if topK <= 0 {
		topK = memory.DefaultK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	results, err := k.manager.Query(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("knowledge search failed: %w", err)
	}
	if len(results) == 0 {
		return Success("No related passages found in the knowledge base.", nil)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d related passages:\n\n", len(results)))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (distance: %.4f) key=%s ---\n", i+1, r.Score, r.Key))
		sb.WriteString(r.Content)
		sb.WriteString("\n")
		if source := sourceOf(r.Metadata); source != "" {
			sb.WriteString(fmt.Sprintf("Source: %s", source))
			if ts, ok := r.Metadata["timestamp"].(string); ok && ts != "" {
				sb.WriteString(fmt.Sprintf(" | Timestamp: %s", ts))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return Success(strings.TrimRight(sb.String(), "\n"), &Metadata{MatchCount: len(results)})
}

// Tools returns every knowledge tool
func (k *Knowledge) Tools() ([]tool.BaseTool, error) {
	search, err := utils.InferTool(SearchKnowledgeToolName, searchDescription, k.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", SearchKnowledgeToolName, err)
	}
	ingest, err := utils.InferTool(IngestDocumentToolName, ingestDescription, k.Ingest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", IngestDocumentToolName, err)
	}
	ingestURL, err := utils.InferTool(IngestURLToolName, ingestURLDescription, k.IngestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", IngestURLToolName, err)
	}
	list, err := utils.InferTool(ListDocumentsToolName, listDescription, k.List)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", ListDocumentsToolName, err)
	}
	del, err := utils.InferTool(DeleteDocumentToolName, deleteDescription, k.Delete)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", DeleteDocumentToolName, err)
	}
	return []tool.BaseTool{search, ingest, ingestURL, list, del}, nil
}

// entry is one stored chunk as seen by list and delete
type entry struct {
	key    string
	record *llm.Record
}

// scan loads every stored chunk matching pattern, sorted by key
func (k *Knowledge) scan(ctx context.Context, pattern string) ([]entry, error) {
	keys, err := k.manager.List(ctx, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		rec, err := k.manager.Get(ctx, key)
		if errors.Is(err, llm.ErrDeserialization) {
			k.logger.Warn("skipping record with unreadable metadata", "key", key, "error", err)
			continue
		}
		if errors.Is(err, llm.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: key, record: rec})
	}
	return entries, nil
}

// sourceKeys returns the keys of every chunk whose source is listed
func (k *Knowledge) sourceKeys(ctx context.Context, sources ...string) ([]string, error) {
	wanted := make(map[string]bool, len(sources))
	for _, s := range sources {
		wanted[s] = true
	}
	entries, err := k.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if wanted[sourceOf(e.record.Metadata)] {
			keys = append(keys, e.key)
		}
	}
	return keys, nil
}

// forget deletes keys, ignoring ones already gone
func (k *Knowledge) forget(ctx context.Context, keys []string) (int, error) {
	removed := 0
	for _, key := range keys {
		err := k.manager.Forget(ctx, key)
		if errors.Is(err, llm.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// sourceOf returns where a chunk came from
func sourceOf(meta map[string]any) string {
	for _, field := range []string{"source", "file_path"} {
		if s, ok := meta[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
