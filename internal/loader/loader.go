// Package loader walks the document directory and produces embedding-ready
// chunks with per-document metadata attached.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/chunker"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/metrics"
)

// Inferencer classifies a document excerpt into category and department.
type Inferencer interface {
	Classify(ctx context.Context, text string) (category, department string)
}

// Loader turns files in a directory into chunks. Files with unsupported
// extensions are skipped; files that fail extraction are logged and skipped
// so one broken document never aborts a whole run.
type Loader struct {
	registry *extract.Registry
	splitter *chunker.Splitter
	inferrer Inferencer // optional
	log      *zap.Logger
}

func New(registry *extract.Registry, splitter *chunker.Splitter, inferrer Inferencer, log *zap.Logger) *Loader {
	return &Loader{
		registry: registry,
		splitter: splitter,
		inferrer: inferrer,
		log:      log,
	}
}

// Load returns chunks for every supported document in dir, ordered by
// filename and, within a document, by page and chunk position.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read document directory: %w", err)
	}

	var chunks []domain.Chunk
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		if !l.registry.Supported(entry.Name()) {
			l.log.Debug("skipping unsupported file", zap.String("file", entry.Name()))
			continue
		}

		docChunks, err := l.loadFile(ctx, dir, entry.Name())
		if err != nil {
			metrics.IndexDocumentErrorsTotal.WithLabelValues("extract").Inc()
			l.log.Warn("skipping document after extraction failure",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	return chunks, nil
}

// LoadFile loads a single document by bare filename.
func (l *Loader) LoadFile(ctx context.Context, dir, name string) ([]domain.Chunk, error) {
	if !l.registry.Supported(name) {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidRequest, filepath.Ext(name))
	}
	return l.loadFile(ctx, dir, name)
}

func (l *Loader) loadFile(ctx context.Context, dir, name string) ([]domain.Chunk, error) {
	path := filepath.Join(dir, name)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}

	ext, ok := l.registry.ForFile(name)
	if !ok {
		return nil, fmt.Errorf("no extractor for %q", name)
	}

	pages, err := ext.Extract(path)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		l.log.Debug("document has no extractable text", zap.String("file", name))
		return nil, nil
	}

	meta := domain.Metadata{
		Source:     name,
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		CreatedAt:  info.ModTime().UTC().Format(time.RFC3339),
		Category:   domain.DefaultCategory,
		Department: domain.DefaultDepartment,
	}

	if l.inferrer != nil {
		meta.Category, meta.Department = l.inferrer.Classify(ctx, classifierSample(pages))
	}

	var chunks []domain.Chunk
	for _, page := range pages {
		for _, text := range l.splitter.Split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				Text:    text,
				Ordinal: page.Number,
				Meta:    meta,
			})
		}
	}

	l.log.Debug("loaded document",
		zap.String("file", name),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))

	return chunks, nil
}

// classifierSample joins page text for classification. The classifier reads
// only the first couple thousand runes, so large documents are cut off early
// instead of being concatenated in full.
func classifierSample(pages []extract.Page) string {
	var sb strings.Builder
	for _, page := range pages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Text)
		if sb.Len() >= 8192 {
			break
		}
	}
	return sb.String()
}
