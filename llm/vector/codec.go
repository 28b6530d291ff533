package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"llmmemory/llm"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// encodeVector packs a vector as little-endian float32, the layout RediSearch expects
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}

// EncodeMetadata serializes metadata to JSON text. Nil becomes "{}".
func EncodeMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeMetadata parses metadata JSON text into a mapping
func DecodeMetadata(text string) (map[string]any, error) {
	metadata := make(map[string]any)
	if text == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(text), &metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", llm.ErrDeserialization, err)
	}
	return metadata, nil
}

// keyTimeLayout is yyyyMMddHHmmssSSS
const keyTimeLayout = "20060102150405.000"

// newKey builds {index}:{timestamp}:{doc_timestamp}:{random}
func newKey(index string, now time.Time, metadata map[string]any) string {
	stamp := strings.Replace(now.UTC().Format(keyTimeLayout), ".", "", 1)
	docStamp := ""
	if v, ok := metadata["timestamp"]; ok && v != nil {
		docStamp = fmt.Sprint(v)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s:%s:%s:%s", index, stamp, docStamp, suffix)
}

// checkDimensions validates every record against dim before anything is written
func checkDimensions(records []llm.Record, dim int) error {
	for i, rec := range records {
		if len(rec.Vector) != dim {
			return fmt.Errorf("%w: record %d has dimension %d, index expects %d",
				ErrDimensionMismatch, i, len(rec.Vector), dim)
		}
	}
	return nil
}
