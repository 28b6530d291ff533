package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"llmmemory/llm"
	"llmmemory/llm/conversation"
	"llmmemory/llm/providers"
	"llmmemory/llm/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with the overridable
// variables unset. godotenv never replaces a variable that exists, even
// when empty, and whatever it sets is restored by t.Setenv's cleanup.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{EnvConfigPath, "VECTOR_STORE", "INDEX_NAME", "DISTANCE_METRIC", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"CHUNK_STRATEGY", "EMBEDDING_PROVIDER", "CHAT_PROVIDER", "API_KEY", "MODEL", "TEMPERATURE", "MAX_TOKENS",
		"TIKTOKEN_ENCODING", "LOG_LEVEL", "REDIS_URL", "POSTGRES_URL", "TOP_K", "AGENT_MAX_ITERATIONS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "llm_memory", cfg.Store.IndexName)
	assert.Equal(t, vector.DefaultChunkConfig(), cfg.Chunk)
	assert.Equal(t, providers.KindOpenAI, cfg.Chat.Kind)
	assert.InDelta(t, 0.7, cfg.Window.Temperature, 1e-6)
	assert.Equal(t, 4096, cfg.Window.MaxTokens)
	assert.Equal(t, conversation.DefaultEncoding, cfg.Window.Encoding)
	assert.Equal(t, 3, cfg.Agent.TopK)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)

	yamlPath := filepath.Join(dir, "llmmemory.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
store:
  backend: chromem
  index: notes
chunk:
  size: 400
  overlap: 40
  strategy: sentence
chat:
  kind: mistral
window:
  max_tokens: 1000
log_level: debug
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHUNK_OVERLAP=20\n"), 0o644))
	t.Setenv("MAX_TOKENS", "2000")

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.Store.Backend)
	assert.Equal(t, "notes", cfg.Store.IndexName)
	assert.Equal(t, vector.ChunkConfig{Size: 400, Overlap: 20, Strategy: vector.StrategySentence}, cfg.Chunk)
	assert.Equal(t, providers.KindMistral, cfg.Chat.Kind)
	assert.Equal(t, 2000, cfg.Window.MaxTokens)

	lvl, _ := cfg.Level()
	assert.Equal(t, slog.LevelDebug, lvl)

	// LLMMEMORY_CONFIG names the file when no path is passed
	t.Setenv(EnvConfigPath, yamlPath)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.Store.IndexName)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, llm.ErrConfig)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("store: [oops"), 0o644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, llm.ErrConfig)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Chunk.Overlap = cfg.Chunk.Size
	cfg.Store.Backend = "faiss"
	cfg.Store.Metric = "hamming"
	cfg.Embedding.Provider = "nope"
	cfg.Chat.Kind = "nope"
	cfg.Window.MaxTokens = 0
	cfg.Window.Temperature = 3
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.ErrorIs(t, err, llm.ErrConfig)
	for _, want := range []string{"overlap", "faiss", "hamming", "embedding", "chat provider", "max_tokens", "temperature", "loud"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDerivedConfigs(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Store.Metric = "ip"
	cfg.Chat.Model = "gpt-4o-mini"

	mc := cfg.MemoryConfig(nil)
	assert.Equal(t, llm.MetricDot, mc.Metric)
	assert.Equal(t, cfg.Chunk, mc.Chunk)

	wc, err := cfg.ConversationConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", wc.Model)
	assert.Equal(t, conversation.DefaultTemplate, wc.Template)

	tmpl := filepath.Join(dir, "prompt.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("Q: {{.query_str}}"), 0o644))
	cfg.Window.TemplateFile = tmpl
	wc, err = cfg.ConversationConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "Q: {{.query_str}}", wc.Template)

	cfg.Window.TemplateFile = filepath.Join(dir, "missing.tmpl")
	_, err = cfg.ConversationConfig(nil)
	assert.ErrorIs(t, err, llm.ErrConfig)

	cfg.Window.Encoding = "whitespace"
	tok, err := cfg.Tokenizer()
	require.NoError(t, err)
	assert.Len(t, tok.Encode("one two three"), 3)

	lc := cfg.LoaderConfig(nil)
	assert.Equal(t, "**/*", lc.Pattern)

	cfg.Agent.MaxIterations = 5
	rc := cfg.RuntimeConfig(nil)
	assert.Equal(t, 5, rc.MaxIterations)
	assert.Equal(t, 20, rc.MaxMessages)
}
