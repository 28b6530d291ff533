package vector

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"llmmemory/llm"
)

// Strategy selects how a document is split
type Strategy string

const (
	// StrategyFixed cuts fixed-width rune windows
	StrategyFixed Strategy = "fixed"
	// StrategySentence packs whole sentences and never splits one
	StrategySentence Strategy = "sentence"
)

// ChunkConfig configures how documents are split into chunks.
// Sizes are counted in characters (runes), not bytes.
type ChunkConfig struct {
	Size     int      `yaml:"size"`
	Overlap  int      `yaml:"overlap"`
	Strategy Strategy `yaml:"strategy"`
}

// DefaultChunkConfig returns the default chunk configuration
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:     1024,
		Overlap:  50,
		Strategy: StrategyFixed,
	}
}

// Validate checks the size/overlap relation
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", llm.ErrConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", llm.ErrConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", llm.ErrConfig, c.Overlap, c.Size)
	}
	switch c.Strategy {
	case StrategyFixed, StrategySentence:
	default:
		return fmt.Errorf("%w: unknown chunk strategy %q", llm.ErrConfig, c.Strategy)
	}
	return nil
}

// Chunker splits documents into overlapping, size-bounded chunks
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker validates cfg. An empty strategy means fixed.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyFixed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the effective configuration
func (c *Chunker) Config() ChunkConfig {
	return c.cfg
}

// Chunk splits every document in order. Each chunk gets a copy of its
// document's metadata.
func (c *Chunker) Chunk(docs []llm.Document) []llm.Chunk {
	var chunks []llm.Chunk
	for _, doc := range docs {
		for _, piece := range c.Split(doc.Content) {
			chunks = append(chunks, llm.Chunk{
				Content:  piece,
				Metadata: maps.Clone(doc.Metadata),
			})
		}
	}
	return chunks
}

// Split splits a single text. Blank text yields nothing; text that already
// fits in one chunk is returned unchanged.
func (c *Chunker) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if utf8.RuneCountInString(content) <= c.cfg.Size {
		return []string{content}
	}

	if c.cfg.Strategy == StrategySentence {
		return packSentences(splitSentences(content), c.cfg.Size, c.cfg.Overlap)
	}
	return fixedWindows(content, c.cfg.Size, c.cfg.Overlap)
}

// fixedWindows emits windows of size runes, each starting size-overlap
// after the previous one. The last window ends exactly at the end of text.
func fixedWindows(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

const sentenceSep = " "

// packSentences greedily fills chunks with whole sentences. A new chunk is
// seeded with trailing sentences of the previous chunk, see overlapSeed.
func packSentences(sentences []string, size, overlap int) []string {
	var (
		chunks []string
		cur    []string
	)

	for _, s := range sentences {
		sl := utf8.RuneCountInString(s)
		if len(cur) > 0 && joinedLen(cur)+len(sentenceSep)+sl > size {
			chunks = append(chunks, strings.Join(cur, sentenceSep))
			cur = append([]string(nil), overlapSeed(cur, sl, size, overlap)...)
		}
		cur = append(cur, s)
	}

	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, sentenceSep))
	}
	return chunks
}

// overlapSeed picks the shortest suffix of prev whose joined length reaches
// overlap and still leaves room for a next sentence of nextLen runes. When
// no suffix reaches overlap within size it falls back to the longest one
// that fits. Zero overlap seeds nothing.
func overlapSeed(prev []string, nextLen, size, overlap int) []string {
	if overlap <= 0 {
		return nil
	}
	var fallback []string
	for i := len(prev) - 1; i >= 0; i-- {
		tail := prev[i:]
		n := joinedLen(tail)
		if n+len(sentenceSep)+nextLen > size {
			break
		}
		if n >= overlap {
			return tail
		}
		fallback = tail
	}
	return fallback
}

func joinedLen(sentences []string) int {
	if len(sentences) == 0 {
		return 0
	}
	n := len(sentenceSep) * (len(sentences) - 1)
	for _, s := range sentences {
		n += utf8.RuneCountInString(s)
	}
	return n
}
