package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmmemory/config"
	"llmmemory/llm"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offline points every command at a persistent chromem store and the
// hash embedder under a temp dir
func offline(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{config.EnvConfigPath, "API_KEY", "CHAT_PROVIDER", "MODEL", "DISTANCE_METRIC",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "CHUNK_STRATEGY", "TOP_K", "COZE_LOOP_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("VECTOR_STORE", "chromem")
	t.Setenv("CHROMEM_PATH", filepath.Join(dir, "db"))
	t.Setenv("INDEX_NAME", "notes")
	t.Setenv("EMBEDDING_PROVIDER", "hash")
	t.Setenv("VECTOR_DIM", "256")
	t.Setenv("TIKTOKEN_ENCODING", "whitespace")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func resetFlags() {
	configPath, verbose = "", false
	memorizeText = ""
	queryK, queryJSON = 0, false
	getJSON, forgetAll = false, false
	promptK, askK, askAgent, askSchema = 0, 0, false, ""
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background())
	return buf.String(), err
}

func storedKeys(out string) []string {
	var keys []string
	for _, line := range strings.Split(out, "\n") {
		if key, ok := strings.CutPrefix(line, "  notes:"); ok {
			keys = append(keys, "notes:"+key)
		}
	}
	return keys
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"memorize", "query", "get", "list", "forget", "prompt", "ask", "chat"} {
		assert.Contains(t, names, want)
	}
}

func TestMemorizeQueryForget(t *testing.T) {
	dir := offline(t)
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "redis.md"), []byte("# Redis\n\nRedis keeps vectors in hashes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "pets.txt"), []byte("Cats sleep most of the day."), 0o644))

	out, err := run(t, "memorize", docs, "--meta", "team=ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Memorized 2 document(s) into 2 chunk(s).")
	keys := storedKeys(out)
	require.Len(t, keys, 2)

	out, err = run(t, "query", "Redis keeps vectors", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] notes:")
	assert.Contains(t, out, "Redis keeps vectors in hashes.")
	assert.NotContains(t, out, "Cats")

	out, err = run(t, "query", "Cats sleep", "--json")
	require.NoError(t, err)
	var results []llm.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "Cats sleep most of the day.", results[0].Content)

	out, err = run(t, "get", keys[0])
	require.NoError(t, err)
	assert.Contains(t, out, `"team": "ops"`)

	out, err = run(t, "prompt", "Where are vectors kept?", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Context information is below.")
	assert.Contains(t, out, "answer the question: Where are vectors kept?")

	out, err = run(t, "forget", keys[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot 1 key(s).")

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, keys[1], strings.TrimSpace(out))

	_, err = run(t, "get", keys[0])
	assert.ErrorIs(t, err, llm.ErrNotFound)

	out, err = run(t, "forget", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot everything.")

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No keys found.")
}

func TestMemorizeText(t *testing.T) {
	offline(t)

	out, err := run(t, "memorize", "--text", "The deploy window is Tuesday.")
	require.NoError(t, err)
	assert.Contains(t, out, "Memorized 1 document(s) into 1 chunk(s).")

	_, err = run(t, "memorize")
	assert.EqualError(t, err, "give at least one path or --text")
}

func TestCommandErrors(t *testing.T) {
	offline(t)

	// no API key for the chat provider
	_, err := run(t, "ask", "anything")
	assert.ErrorIs(t, err, llm.ErrConfig)

	_, err = run(t, "forget")
	assert.EqualError(t, err, "give at least one key or --all")

	_, err = run(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")

	t.Setenv("CHUNK_SIZE", "0")
	_, err = run(t, "list")
	assert.ErrorIs(t, err, llm.ErrConfig)
}
