package conversation

import (
	"fmt"
	"strings"
	"sync"

	"llmmemory/llm"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the GPT-2 byte-pair vocabulary
const DefaultEncoding = "r50k_base"

// Tokenizer encodes text for length counting only
type Tokenizer interface {
	Encode(text string) []int
}

// TiktokenTokenizer counts tokens with a tiktoken encoding
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// NewTiktokenTokenizer loads an encoding once per process. The first load
// fetches the vocabulary unless a BPE loader is installed.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if enc, ok := encodings[encoding]; ok {
		return &TiktokenTokenizer{enc: enc}, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load tokenizer %q: %w", llm.ErrConfig, encoding, err)
	}
	encodings[encoding] = enc
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// WhitespaceTokenizer treats every whitespace-separated field as a token.
// It is the offline fallback when no vocabulary can be loaded.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i := range ids {
		ids[i] = i
	}
	return ids
}
