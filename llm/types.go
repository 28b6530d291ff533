package llm

// Document is caller input for memorization
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Chunk is a bounded fragment of a document. Metadata is the parent's.
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Record is the unit persisted by a vector store
type Record struct {
	Key      string         `json:"key"`
	Content  string         `json:"content"`
	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is one KNN hit. Score is a distance: lower is closer.
type SearchResult struct {
	Key      string         `json:"key"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// Role tags a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Metric is the distance function an index is created with
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

// ParseMetric maps a metric name to a Metric. "ip" is accepted as an alias for dot.
func ParseMetric(name string) (Metric, bool) {
	switch name {
	case "", "cosine", "COSINE":
		return MetricCosine, true
	case "l2", "L2":
		return MetricL2, true
	case "dot", "ip", "IP":
		return MetricDot, true
	}
	return "", false
}
