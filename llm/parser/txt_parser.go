package parser

import (
	"context"
	"io"

	"llmmemory/llm"
)

// TxtParser handles plain text files
type TxtParser struct{}

// NewTxtParser creates a new plain text parser
func NewTxtParser() *TxtParser {
	return &TxtParser{}
}

// Parse reads plain text unchanged
func (p *TxtParser) Parse(ctx context.Context, r io.Reader, name string) (*llm.Document, error) {
	content, size, err := readAll(r)
	if err != nil {
		return nil, err
	}

	meta := baseMetadata(FileTypeTXT, "text/plain", name, size)
	meta["line_count"] = countLines(content)
	meta["title"] = ExtractTitle(content, name)
	return &llm.Document{Content: content, Metadata: meta}, nil
}

// FileType returns the file type this parser handles
func (p *TxtParser) FileType() FileType {
	return FileTypeTXT
}
