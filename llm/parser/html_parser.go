package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"llmmemory/llm"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files
type HTMLParser struct {
	// preserveStructure converts the body to markdown instead of flat text
	preserveStructure bool
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		preserveStructure: true,
	}
}

// PlainText returns a parser that emits flat text without markdown markup
func (p *HTMLParser) PlainText() *HTMLParser {
	return &HTMLParser{preserveStructure: false}
}

// Parse reads and parses HTML from the reader
func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, name string) (*llm.Document, error) {
	raw, size, err := readAll(r)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	meta := baseMetadata(FileTypeHTML, "text/html", name, size)
	meta["html_tag_count"] = doc.Find("*").Length()
	meta["title"] = p.extractTitle(doc, name)
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		meta["description"] = strings.TrimSpace(desc)
	}

	doc.Find("script, style, noscript, template").Remove()

	content, err := p.extractText(doc)
	if err != nil {
		return nil, err
	}
	return &llm.Document{Content: content, Metadata: meta}, nil
}

// extractTitle prefers <title>, then the first <h1>, then the file name
func (p *HTMLParser) extractTitle(doc *goquery.Document, name string) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	if name != "" {
		return extractFileName(name)
	}
	return "Untitled"
}

func (p *HTMLParser) extractText(doc *goquery.Document) (string, error) {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	if !p.preserveStructure {
		return cleanWhitespace(body.Text()), nil
	}

	inner, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(inner)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// cleanWhitespace collapses runs of blank lines and trims each line
func cleanWhitespace(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// FileType returns the file type this parser handles
func (p *HTMLParser) FileType() FileType {
	return FileTypeHTML
}
