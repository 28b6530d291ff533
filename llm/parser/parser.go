package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llmmemory/llm"
)

// FileType represents the type of document file
type FileType string

const (
	FileTypeMD      FileType = "md"
	FileTypeHTML    FileType = "html"
	FileTypeTXT     FileType = "txt"
	FileTypeUnknown FileType = "unknown"
)

// Parser turns raw bytes into a document ready for memorization
type Parser interface {
	// Parse reads a document; name is used for titles and metadata and may be empty
	Parse(ctx context.Context, r io.Reader, name string) (*llm.Document, error)

	// FileType returns the file type this parser handles
	FileType() FileType
}

// Registry holds all registered parsers
type Registry struct {
	parsers  map[FileType]Parser
	fallback Parser
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[FileType]Parser),
	}
}

// Register adds a parser to the registry
func (r *Registry) Register(p Parser) {
	r.parsers[p.FileType()] = p
}

// SetFallback sets the parser used for unknown extensions
func (r *Registry) SetFallback(p Parser) {
	r.fallback = p
}

// GetParser returns a parser for the given file type
func (r *Registry) GetParser(ft FileType) (Parser, bool) {
	p, ok := r.parsers[ft]
	return p, ok
}

// GetParserForPath picks a parser by extension, then the fallback
func (r *Registry) GetParserForPath(filePath string) (Parser, bool) {
	ext := strings.TrimPrefix(filepath.Ext(filePath), ".")
	if p, ok := r.GetParser(FileTypeFromExt(ext)); ok {
		return p, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// FileTypes lists the registered types
func (r *Registry) FileTypes() []FileType {
	types := make([]FileType, 0, len(r.parsers))
	for ft := range r.parsers {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseFile parses a file using the appropriate parser
func (r *Registry) ParseFile(ctx context.Context, filePath string) (*llm.Document, error) {
	parser, ok := r.GetParserForPath(filePath)
	if !ok {
		return nil, fmt.Errorf("parser for %s: %w", filePath, llm.ErrNotFound)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := parser.Parse(ctx, f, filePath)
	if err != nil {
		return nil, err
	}
	doc.Metadata["file_path"] = filePath
	return doc, nil
}

// FileTypeFromExt converts a file extension to FileType
func FileTypeFromExt(ext string) FileType {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return FileTypeMD
	case "html", "htm":
		return FileTypeHTML
	case "txt", "text":
		return FileTypeTXT
	default:
		return FileTypeUnknown
	}
}

// String returns the string representation of the FileType
func (ft FileType) String() string {
	return string(ft)
}

// DefaultRegistry returns a registry with all default parsers registered.
// Unknown extensions are read as plain text.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	txt := NewTxtParser()
	reg.Register(txt)
	reg.Register(NewMarkdownParser())
	reg.Register(NewHTMLParser())
	reg.SetFallback(txt)
	return reg
}

// readAll reads r and repairs invalid UTF-8
func readAll(r io.Reader) (string, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read content: %w", err)
	}
	return strings.ToValidUTF8(string(data), "�"), len(data), nil
}

// baseMetadata holds the fields every parser records
func baseMetadata(ft FileType, contentType, name string, size int) map[string]any {
	meta := map[string]any{
		"format":       string(ft),
		"content_type": contentType,
		"file_size":    size,
	}
	if name != "" {
		meta["file_name"] = filepath.Base(name)
	}
	return meta
}

// ExtractTitle extracts a title from content (first line or heading)
func ExtractTitle(content, filePath string) string {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" && len(line) < 100 {
			return line
		}
		if line != "" {
			break
		}
	}
	if filePath != "" {
		return extractFileName(filePath)
	}
	return "Untitled"
}

// extractFileName turns "my-notes_v2.md" into "my notes v2"
func extractFileName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("-", " ", "_", " ").Replace(name)
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(content, "\n"), "\n") + 1
}
