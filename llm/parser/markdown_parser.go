package parser

import (
	"context"
	"io"
	"regexp"
	"strings"

	"llmmemory/llm"

	"gopkg.in/yaml.v3"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---\r?\n?(.*)\z`)
	fencePattern       = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`[^`]+`")
	headingPattern     = regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`)
	imagePattern       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emphasisPattern    = regexp.MustCompile(`(\*\*|__|\*|_)(\S(?:.*?\S)?)(\*\*|__|\*|_)`)
)

// MarkdownParser handles markdown files
type MarkdownParser struct {
	// stripCodeBlocks whether to remove code blocks from content
	stripCodeBlocks bool
}

// NewMarkdownParser creates a new markdown parser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// WithoutCode returns a parser that drops fenced and inline code
func (p *MarkdownParser) WithoutCode() *MarkdownParser {
	return &MarkdownParser{stripCodeBlocks: true}
}

// Parse splits off YAML frontmatter into metadata and flattens the
// markdown into plain paragraphs for embedding
func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader, name string) (*llm.Document, error) {
	raw, size, err := readAll(r)
	if err != nil {
		return nil, err
	}

	meta := baseMetadata(FileTypeMD, "text/markdown", name, size)
	meta["line_count"] = countLines(raw)

	body := raw
	if m := frontmatterPattern.FindStringSubmatch(raw); m != nil {
		body = m[2]
		meta["has_frontmatter"] = true
		front := map[string]any{}
		if err := yaml.Unmarshal([]byte(m[1]), &front); err != nil {
			meta["yaml_error"] = err.Error()
		}
		for k, v := range front {
			meta[k] = v
		}
	} else {
		meta["has_frontmatter"] = false
	}

	if _, ok := meta["title"]; !ok {
		meta["title"] = ExtractTitle(body, name)
	}
	if p.stripCodeBlocks {
		body = fencePattern.ReplaceAllString(body, "")
		body = inlineCodePattern.ReplaceAllString(body, "")
	}
	return &llm.Document{Content: cleanMarkdown(body), Metadata: meta}, nil
}

// cleanMarkdown removes markup but keeps the text
func cleanMarkdown(content string) string {
	content = headingPattern.ReplaceAllString(content, "$1")
	content = imagePattern.ReplaceAllString(content, "$1")
	content = linkPattern.ReplaceAllString(content, "$1")
	content = emphasisPattern.ReplaceAllString(content, "$2")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "<") {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n\n")
}

// FileType returns the file type this parser handles
func (p *MarkdownParser) FileType() FileType {
	return FileTypeMD
}
