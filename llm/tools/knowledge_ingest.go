package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// IngestDocumentToolName is the name of the document ingestion tool
	IngestDocumentToolName = "ingest_document"
)

// IngestDocumentParams defines parameters for document ingestion
type IngestDocumentParams struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to a file or directory to ingest into the knowledge base"`
	Title    string `json:"title,omitempty" jsonschema:"description=Optional title for the document (defaults to the parsed title)"`
}

// ingestDescription is the detailed tool description for the AI
const ingestDescription = `Ingest a file or a directory into the knowledge base for semantic search.

SUPPORTED FORMATS:
- Markdown files (.md, .markdown), frontmatter becomes metadata
- HTML files (.html, .htm)
- Any other UTF-8 text file is read as plain text
- Binary files are skipped

PARAMETERS:
- file_path (required): path to a file, or a directory walked recursively
- title (optional): custom title for a single document

PROCESS:
1. Each file is parsed according to its extension
2. Content is split into chunks
3. Each chunk is embedded and stored

NOTES:
- Chunks previously ingested from the same path are replaced
- Use list_documents to see what's in the knowledge base`

// Ingest loads a file or directory and memorizes it
func (k *Knowledge) Ingest(ctx context.Context, params IngestDocumentParams) (string, error) {
	path := strings.TrimSpace(params.FilePath)
	if path == "" {
		return Error("file_path parameter is required")
	}
	path = filepath.Clean(path)

	docs, err := k.loader.Load(ctx, path)
	if err != nil {
		return Error(fmt.Sprintf("failed to load %s: %v", path, err))
	}
	if len(docs) == 0 {
		return Error(fmt.Sprintf("no ingestible text found at %s", path))
	}

	sources := make([]string, 0, len(docs))
	for i := range docs {
		source, _ := docs[i].Metadata["file_path"].(string)
		docs[i].Metadata["source"] = source
		if params.Title != "" && len(docs) == 1 {
			docs[i].Metadata["title"] = params.Title
		}
		sources = append(sources, source)
	}
	stale, err := k.sourceKeys(ctx, sources...)
	if err != nil {
		return "", fmt.Errorf("failed to look up previous chunks: %w", err)
	}

	keys, err := k.manager.Memorize(ctx, docs)
	if err != nil {
		return "", fmt.Errorf("failed to memorize %s: %w", path, err)
	}
	replaced, err := k.forget(ctx, stale)
	if err != nil {
		return "", fmt.Errorf("failed to remove previous chunks: %w", err)
	}

	msg := fmt.Sprintf("Ingested %d document(s) from %s into %d chunk(s).", len(docs), path, len(keys))
	if replaced > 0 {
		msg += fmt.Sprintf(" Replaced %d previous chunk(s).", replaced)
	}
	return Success(msg, &Metadata{Source: path, ChunkCount: len(keys), MatchCount: len(docs)})
}
