// Package loader walks a directory and turns every readable file into a
// document ready for the memory manager.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"llmmemory/llm"
	"llmmemory/llm/parser"

	"github.com/bmatcuk/doublestar/v4"
)

// TimestampLayout is the layout of the timestamp metadata (yyyyMMddHHmmss)
const TimestampLayout = "20060102150405"

// binarySniffLen bytes are checked for NUL when deciding if a file is text
const binarySniffLen = 8000

// Config controls which files are loaded
type Config struct {
	// Pattern is a doublestar glob relative to the root, "**/*" by default
	Pattern string
	// MaxFileSize skips larger files; 0 means no limit
	MaxFileSize int64
	// IncludeHidden also walks dot files and dot directories
	IncludeHidden bool
	Logger        *slog.Logger
}

// DefaultConfig returns the default loader configuration
func DefaultConfig() Config {
	return Config{
		Pattern:     "**/*",
		MaxFileSize: 10 << 20,
	}
}

// Loader reads files through a parser registry
type Loader struct {
	registry *parser.Registry
	cfg      Config
	logger   *slog.Logger
}

// New creates a loader; a nil registry uses parser.DefaultRegistry
func New(registry *parser.Registry, cfg Config) *Loader {
	if registry == nil {
		registry = parser.DefaultRegistry()
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "**/*"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, cfg: cfg, logger: logger}
}

// Load returns one document per processable file under root, in walk order.
// A root that is a regular file loads just that file. Binary, non-UTF-8,
// oversized and unparseable files are skipped and logged.
func (l *Loader) Load(ctx context.Context, root string) ([]llm.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		doc, ok := l.loadFile(ctx, root, info)
		if !ok {
			return nil, nil
		}
		return []llm.Document{doc}, nil
	}

	if !doublestar.ValidatePattern(l.cfg.Pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", l.cfg.Pattern, llm.ErrConfig)
	}

	var docs []llm.Document
	fsys := os.DirFS(root)
	err = doublestar.GlobWalk(fsys, l.cfg.Pattern, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.cfg.IncludeHidden && isHidden(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			l.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if doc, ok := l.loadFile(ctx, filepath.Join(root, filepath.FromSlash(rel)), fi); ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	l.logger.Debug("loaded documents", "root", root, "count", len(docs))
	return docs, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, info fs.FileInfo) (llm.Document, bool) {
	if l.cfg.MaxFileSize > 0 && info.Size() > l.cfg.MaxFileSize {
		l.logger.Info("skipping large file", "path", path, "size", info.Size())
		return llm.Document{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("skipping unreadable file", "path", path, "error", err)
		return llm.Document{}, false
	}
	if !isText(data) {
		l.logger.Debug("skipping binary file", "path", path)
		return llm.Document{}, false
	}

	p, ok := l.registry.GetParserForPath(path)
	if !ok {
		l.logger.Debug("no parser", "path", path)
		return llm.Document{}, false
	}
	doc, err := p.Parse(ctx, bytes.NewReader(data), path)
	if err != nil {
		l.logger.Warn("skipping unparseable file", "path", path, "error", err)
		return llm.Document{}, false
	}
	if strings.TrimSpace(doc.Content) == "" {
		return llm.Document{}, false
	}

	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	doc.Metadata["file_name"] = filepath.Base(path)
	doc.Metadata["file_path"] = path
	doc.Metadata["timestamp"] = info.ModTime().Format(TimestampLayout)
	return *doc, true
}

func isText(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return false
	}
	return utf8.Valid(data)
}

func isHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
