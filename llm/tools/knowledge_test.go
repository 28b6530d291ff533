package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmmemory/llm/embedding"
	"llmmemory/llm/memory"
	"llmmemory/llm/vector"

	"github.com/cloudwego/eino/compose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKnowledge(t *testing.T) *Knowledge {
	t.Helper()
	cfg := vector.DefaultStoreConfig()
	cfg.Backend = "chromem"
	cfg.IndexName = "kb"
	store, err := vector.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m, err := memory.NewManager(store, embedding.NewHashEmbedder(64), memory.DefaultConfig())
	require.NoError(t, err)
	return NewKnowledge(m, nil)
}

func TestToolResultString(t *testing.T) {
	out, err := Success("done", &Metadata{Source: "a.md", ChunkCount: 2, URL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "done\n\n<metadata source=\"a.md\" chunks=2 url=http://x />", out)

	out, _ = Error("boom")
	assert.Equal(t, "[ERROR] boom", out)

	out, _ = Partial("half", nil)
	assert.Equal(t, "[PARTIAL] half", out)
}

func TestTools(t *testing.T) {
	ts, err := newTestKnowledge(t).Tools()
	require.NoError(t, err)

	var names []string
	for _, tl := range ts {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{SearchKnowledgeToolName, IngestDocumentToolName, IngestURLToolName, ListDocumentsToolName, DeleteDocumentToolName}, names)
}

func TestIngestSearchListDelete(t *testing.T) {
	ctx := context.Background()
	k := newTestKnowledge(t)

	dir := t.TempDir()
	guide := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(guide, []byte("# Redis guide\n\nRedis keeps vectors in hashes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets.txt"), []byte("Cats sleep most of the day."), 0o644))

	out, err := k.Ingest(ctx, IngestDocumentParams{FilePath: dir})
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 2 document(s)")

	out, err = k.Search(ctx, SearchKnowledgeParams{Query: "Redis vectors", TopK: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "Redis keeps vectors in hashes.")
	assert.Contains(t, out, "Source: "+guide)
	assert.NotContains(t, out, "Cats")

	out, err = k.List(ctx, ListDocumentsParams{})
	require.NoError(t, err)
	assert.Contains(t, out, "from 2 source(s)")
	assert.Contains(t, out, "Title: Redis guide")

	// re-ingesting replaces the old chunk
	out, err = k.Ingest(ctx, IngestDocumentParams{FilePath: guide, Title: "Ops"})
	require.NoError(t, err)
	assert.Contains(t, out, "Replaced 1 previous chunk(s).")

	out, err = k.List(ctx, ListDocumentsParams{Source: guide})
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Ops")
	assert.Contains(t, out, "Chunks: 1")

	out, err = k.Delete(ctx, DeleteDocumentParams{Source: guide})
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 chunk(s)")

	keys, err := k.manager.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	out, err = k.Delete(ctx, DeleteDocumentParams{Key: keys[0]})
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted chunk")

	out, err = k.List(ctx, ListDocumentsParams{})
	require.NoError(t, err)
	assert.Contains(t, out, "Knowledge base is empty")
}

func TestToolValidation(t *testing.T) {
	ctx := context.Background()
	k := newTestKnowledge(t)

	out, err := k.Search(ctx, SearchKnowledgeParams{Query: "  "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))

	out, _ = k.Ingest(ctx, IngestDocumentParams{})
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))

	out, _ = k.Ingest(ctx, IngestDocumentParams{FilePath: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))

	out, _ = k.Delete(ctx, DeleteDocumentParams{})
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))

	out, _ = k.Delete(ctx, DeleteDocumentParams{Key: "kb:nope"})
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))

	out, _ = k.IngestURL(ctx, IngestURLParams{URL: "ftp://example.com"})
	assert.True(t, strings.HasPrefix(out, "[ERROR]"))
}

func TestIngestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title>Release notes</title></head><body><p>Version two ships pgvector support.</p><script>track()</script></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	k := newTestKnowledge(t)

	out, err := k.IngestURL(ctx, IngestURLParams{URL: srv.URL + "/page"})
	require.NoError(t, err)
	assert.Contains(t, out, "Release notes")
	assert.Contains(t, out, "chunks=1")

	out, err = k.Search(ctx, SearchKnowledgeParams{Query: "pgvector support"})
	require.NoError(t, err)
	assert.Contains(t, out, "Version two ships pgvector support.")
	assert.NotContains(t, out, "track()")

	out, err = k.IngestURL(ctx, IngestURLParams{URL: srv.URL + "/missing"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[PARTIAL]"))
	assert.Contains(t, out, "status=404")
}

func TestErrorHandler(t *testing.T) {
	mw := ErrorHandler()
	failing := mw.Invokable(func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
		return nil, errors.New("[LocalFunc] failed to invoke tool, toolName=x, err=disk full")
	})
	out, err := failing(context.Background(), &compose.ToolInput{})
	require.NoError(t, err)
	assert.Equal(t, "[ERROR] disk full", out.Result)

	interrupted := mw.Invokable(func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
		return nil, errors.New("interrupt signal")
	})
	_, err = interrupted(context.Background(), &compose.ToolInput{})
	assert.Error(t, err)
}
