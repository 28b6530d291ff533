package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"llmmemory/llm"

	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEino struct {
	vectors [][]float64
	err     error
	calls   [][]string
}

func (f *fakeEino) EmbedStrings(ctx context.Context, texts []string, opts ...einoEmbedding.Option) ([][]float64, error) {
	f.calls = append(f.calls, texts)
	return f.vectors, f.err
}

func TestEinoEmbedderConvertsToFloat32(t *testing.T) {
	fake := &fakeEino{vectors: [][]float64{{0.5, -1, 2}}}
	e := WrapEino(fake)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, vec)
	assert.Equal(t, [][]string{{"hello"}}, fake.calls)
}

func TestEinoEmbedderErrors(t *testing.T) {
	ctx := context.Background()

	_, err := WrapEino(&fakeEino{}).Embed(ctx, "")
	assert.ErrorIs(t, err, llm.ErrValidation)

	_, err = WrapEino(&fakeEino{err: errors.New("rate limited")}).Embed(ctx, "x")
	assert.ErrorIs(t, err, llm.ErrProvider)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = WrapEino(&fakeEino{vectors: [][]float64{}}).Embed(ctx, "x")
	assert.ErrorIs(t, err, llm.ErrProvider)
}

func TestNewFactory(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, llm.ErrNotFound)

	for _, name := range []string{"openai", "mistral", "openrouter", "huggingface", "gemini"} {
		_, err := New(ctx, Config{Provider: name})
		assert.ErrorIs(t, err, llm.ErrConfig, name)
	}

	e, err := New(ctx, Config{Provider: "HASH", Dimensions: 32})
	require.NoError(t, err)
	vec, err := e.Embed(ctx, "hi")
	require.NoError(t, err)
	assert.Len(t, vec, 32)

	e, err = New(ctx, Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &EinoEmbedder{}, e)

	assert.Equal(t, []string{"gemini", "hash", "huggingface", "mistral", "openai", "openrouter"}, Providers())
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(0)
	assert.Equal(t, 256, h.Dimension())

	a, err := h.Embed(ctx, "Hello world")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "hello, WORLD!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "case and punctuation are ignored")

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1, math.Sqrt(norm), 1e-5)

	c, err := h.Embed(ctx, "completely unrelated sentence")
	require.NoError(t, err)
	assert.Greater(t, cosine(a, b), cosine(a, c))

	hello, err := h.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Greater(t, cosine(hello, a), cosine(hello, c))

	_, err = h.Embed(ctx, "   ")
	assert.ErrorIs(t, err, llm.ErrValidation)

	punct, err := h.Embed(ctx, "?!")
	require.NoError(t, err)
	assert.Equal(t, float32(1), punct[0])
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
