package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/solenne/docent/core"
)

// Loader supplies documents for indexing. Implementations own format
// detection and text extraction; the pipeline only chunks and embeds
// what a loader hands it.
type Loader interface {
	// Load reads path, which may be a single file or a directory, and
	// returns one document per file it understands. Directory loads skip
	// unsupported and unreadable files; loading a single unsupported
	// file is an ErrUnsupportedFormat.
	Load(ctx context.Context, path string) ([]*core.Document, error)
}

// textFormats maps supported extensions to their format tags.
var textFormats = map[string]string{
	".txt":      "text",
	".text":     "text",
	".md":       "markdown",
	".markdown": "markdown",
}

// DetectFormat returns the format tag for a path, or "" when no loader
// understands its extension.
func DetectFormat(path string) string {
	return textFormats[strings.ToLower(filepath.Ext(path))]
}

// CleanText collapses every whitespace run to a single space and trims
// the ends. Chunk IDs are derived from cleaned text, so changing this
// changes the identity of every indexed chunk.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FileLoader loads plain-text files: .txt, .text, .md, .markdown.
// Rich formats (PDF, DOCX) need their own Loader implementation.
type FileLoader struct {
	logger *slog.Logger
}

// NewFileLoader creates a plain-text file loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{
		logger: slog.Default().With("component", "file-loader"),
	}
}

var _ Loader = (*FileLoader)(nil)

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, path string) ([]*core.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return l.loadDirectory(ctx, path)
	}

	if DetectFormat(path) == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	doc, err := l.loadFile(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return []*core.Document{doc}, nil
}

// loadDirectory loads every supported file directly under dir. Per-file
// failures are logged and skipped so one broken file cannot block the
// rest of the corpus.
func (l *FileLoader) loadDirectory(ctx context.Context, dir string) ([]*core.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var docs []*core.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if DetectFormat(path) == "" {
			l.logger.Debug("skipping unsupported file", "file", entry.Name())
			continue
		}

		doc, err := l.loadFile(path)
		if err != nil {
			l.logger.Error("failed to load file", "file", entry.Name(), "err", err)
			continue
		}
		if doc == nil {
			l.logger.Debug("skipping empty file", "file", entry.Name())
			continue
		}
		docs = append(docs, doc)
	}

	l.logger.Info("loaded documents", "dir", dir, "count", len(docs))
	return docs, nil
}

// loadFile reads and normalizes one file. A file that cleans down to
// nothing returns (nil, nil).
func (l *FileLoader) loadFile(path string) (*core.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	content := CleanText(string(raw))
	if content == "" {
		return nil, nil
	}

	return &core.Document{
		Name:    filepath.Base(path),
		Path:    path,
		Format:  DetectFormat(path),
		Content: content,
	}, nil
}
