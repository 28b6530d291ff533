package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"llmmemory/llm"
)

const (
	// DeleteDocumentToolName is the name of the document deletion tool
	DeleteDocumentToolName = "delete_document"
)

// deleteDescription is the detailed tool description
const deleteDescription = `Delete documents from the knowledge base.

PARAMETERS (one required):
- source: delete every chunk ingested from this file path or URL
- key: delete one chunk by its key

WARNING:
- This operation cannot be undone
- Always confirm with the user before deleting
- Use list_documents to find keys and sources first`

// DeleteDocumentParams defines parameters for document deletion
type DeleteDocumentParams struct {
	Source string `json:"source,omitempty" jsonschema:"description=Source file path or URL to delete all chunks from"`
	Key    string `json:"key,omitempty" jsonschema:"description=Key of a single chunk to delete"`
}

// Delete forgets one chunk or a whole source
func (k *Knowledge) Delete(ctx context.Context, params DeleteDocumentParams) (string, error) {
	key := strings.TrimSpace(params.Key)
	source := strings.TrimSpace(params.Source)
	if key == "" && source == "" {
		return Error("either 'source' or 'key' parameter is required")
	}

	if key != "" {
		err := k.manager.Forget(ctx, key)
		if errors.Is(err, llm.ErrNotFound) {
			return Error(fmt.Sprintf("no chunk with key %s", key))
		}
		if err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return Success(fmt.Sprintf("Deleted chunk %s.", key), &Metadata{MatchCount: 1})
	}

	keys, err := k.sourceKeys(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", source, err)
	}
	if len(keys) == 0 {
		return Success(fmt.Sprintf("No documents found for source: %s", source), nil)
	}
	removed, err := k.forget(ctx, keys)
	if err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", source, err)
	}
	return Success(fmt.Sprintf("Deleted %d chunk(s) from %s.", removed, source), &Metadata{
		Source:     source,
		MatchCount: removed,
	})
}
