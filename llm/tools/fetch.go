package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llmmemory/llm"
	"llmmemory/llm/loader"
	"llmmemory/llm/parser"
)

const (
	// IngestURLToolName is the name of the URL ingestion tool
	IngestURLToolName = "ingest_url"

	// DefaultTimeout is the default request timeout in seconds
	DefaultTimeout = 30
	// MaxTimeout is the maximum allowed timeout in seconds
	MaxTimeout = 120
	// MaxReadSize is the maximum response size (5MB)
	MaxReadSize = int64(5 * 1024 * 1024)
)

// IngestURLParams defines the arguments for URL ingestion
type IngestURLParams struct {
	URL     string `json:"url" jsonschema:"description=The URL to ingest. Must start with http:// or https://"`
	Title   string `json:"title,omitempty" jsonschema:"description=Optional title (defaults to the page title)"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"description=Optional timeout in seconds (default: 30, max: 120)"`
}

const ingestURLDescription = `Fetch a web page and store it in the knowledge base.

CAPABILITIES:
- HTML is converted to markdown, scripts and styles are dropped
- Plain text and markdown responses are stored as-is
- Handles redirects automatically
- Size limit: 5MB

PARAMETERS:
- url (required): the URL to fetch (must start with http:// or https://)
- title (optional): custom title
- timeout (optional): timeout in seconds (default: 30, max: 120)

NOTES:
- Chunks previously ingested from the same URL are replaced
- Non-200 responses are not stored`

// IngestURL fetches a page and memorizes it
func (k *Knowledge) IngestURL(ctx context.Context, params IngestURLParams) (string, error) {
	if params.URL == "" {
		return Error("url parameter is required")
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return Error("url must start with http:// or https://")
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return Error(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("User-Agent", "llmmemory-ingest/1.0")

	start := time.Now()
	resp, err := k.client.Do(req)
	if err != nil {
		return Error(fmt.Sprintf("failed to fetch URL: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxReadSize))
	if err != nil {
		return Error(fmt.Sprintf("failed to read response: %v", err))
	}
	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return Partial(fmt.Sprintf("nothing stored: server answered %s", resp.Status), &Metadata{
			URL:        params.URL,
			StatusCode: resp.StatusCode,
			Duration:   duration.Milliseconds(),
		})
	}

	doc, err := parseResponse(ctx, resp.Header.Get("Content-Type"), body, params.URL)
	if err != nil {
		return Error(fmt.Sprintf("failed to parse %s: %v", params.URL, err))
	}
	if strings.TrimSpace(doc.Content) == "" {
		return Error(fmt.Sprintf("no text found at %s", params.URL))
	}
	doc.Metadata["source"] = params.URL
	doc.Metadata["timestamp"] = time.Now().Format(loader.TimestampLayout)
	if params.Title != "" {
		doc.Metadata["title"] = params.Title
	}

	stale, err := k.sourceKeys(ctx, params.URL)
	if err != nil {
		return "", fmt.Errorf("failed to look up previous chunks: %w", err)
	}
	keys, err := k.manager.Memorize(ctx, []llm.Document{*doc})
	if err != nil {
		return "", fmt.Errorf("failed to memorize %s: %w", params.URL, err)
	}
	if _, err := k.forget(ctx, stale); err != nil {
		return "", fmt.Errorf("failed to remove previous chunks: %w", err)
	}

	msg := fmt.Sprintf("Ingested %s (%v) into %d chunk(s).", params.URL, doc.Metadata["title"], len(keys))
	if int64(len(body)) >= MaxReadSize {
		msg += fmt.Sprintf(" Content was truncated to %d bytes.", MaxReadSize)
	}
	return Success(msg, &Metadata{
		URL:        params.URL,
		StatusCode: resp.StatusCode,
		Duration:   duration.Milliseconds(),
		ChunkCount: len(keys),
	})
}

// parseResponse picks a parser from the content type
func parseResponse(ctx context.Context, contentType string, body []byte, url string) (*llm.Document, error) {
	var p parser.Parser
	switch {
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		p = parser.NewHTMLParser()
	case strings.Contains(contentType, "text/markdown"):
		p = parser.NewMarkdownParser()
	default:
		p = parser.NewTxtParser()
	}
	return p.Parse(ctx, bytes.NewReader(body), url)
}
