package tools

import (
	"context"
	"fmt"
	"strings"
)

const (
	// ListDocumentsToolName is the name of the document listing tool
	ListDocumentsToolName = "list_documents"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// listDescription is the detailed tool description for the AI
const listDescription = `List documents in the knowledge base, grouped by source.

PARAMETERS:
- pattern (optional): glob over chunk keys, e.g. "*:20240309*" (default: all)
- source (optional): only show chunks from this file path or URL
- limit (optional): maximum chunks to inspect (default: 100)

OUTPUT FORMAT:
One block per source with its title, chunk count, keys and a preview.`

// ListDocumentsParams defines parameters for listing documents
type ListDocumentsParams struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"description=Glob over chunk keys (default: all)"`
	Source  string `json:"source,omitempty" jsonschema:"description=Filter by source file path or URL"`
	Limit   int    `json:"limit,omitempty" jsonschema:"description=Maximum number of chunks to inspect (default: 100)"`
}

// List describes what is stored
func (k *Knowledge) List(ctx context.Context, params ListDocumentsParams) (string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	entries, err := k.scan(ctx, params.Pattern)
	if err != nil {
		return "", fmt.Errorf("failed to list documents: %w", err)
	}
	total := len(entries)
	if total == 0 {
		return Success("Knowledge base is empty. Use ingest_document to add documents.", nil)
	}

	// Group chunks by source, keeping first-seen order
	var order []string
	grouped := make(map[string][]entry)
	inspected := 0
	for _, e := range entries {
		if inspected == limit {
			break
		}
		source := sourceOf(e.record.Metadata)
		if params.Source != "" && source != params.Source {
			continue
		}
		if source == "" {
			source = "(unknown source)"
		}
		if _, ok := grouped[source]; !ok {
			order = append(order, source)
		}
		grouped[source] = append(grouped[source], e)
		inspected++
	}
	if inspected == 0 {
		return Success(fmt.Sprintf("No documents match the specified filters.\nTotal chunks in knowledge base: %d", total), nil)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d chunk(s) from %d source(s):\n\n", inspected, len(order)))
	for _, source := range order {
		chunks := grouped[source]
		first := chunks[0].record
		sb.WriteString(fmt.Sprintf("%s\n", source))
		if title, ok := first.Metadata["title"]; ok {
			sb.WriteString(fmt.Sprintf("   Title: %v\n", title))
		}
		sb.WriteString(fmt.Sprintf("   Chunks: %d\n", len(chunks)))
		for _, c := range chunks {
			sb.WriteString(fmt.Sprintf("   - %s\n", c.key))
		}
		if preview := first.Content; preview != "" {
			if r := []rune(preview); len(r) > 100 {
				preview = string(r[:100]) + "..."
			}
			sb.WriteString(fmt.Sprintf("   Preview: %s\n", preview))
		}
		sb.WriteString("\n")
	}

	return Success(strings.TrimRight(sb.String(), "\n"), &Metadata{
		MatchCount: inspected,
		Total:      total,
	})
}
