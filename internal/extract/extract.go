// Package extract turns document files into plain-text pages by format.
package extract

import (
	"path/filepath"
	"strings"
)

// Page is a unit of extracted text. Single-page formats produce one page
// with Number 1; PDFs produce one Page per physical page.
type Page struct {
	Number int
	Text   string
}

// Extractor converts one file format into text pages.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates a registry with the default extractor set.
func NewRegistry() *Registry {
	return &Registry{
		byExt: map[string]Extractor{
			".txt": &TextExtractor{},
			".md":  &MarkdownExtractor{},
			".csv": &CSVExtractor{},
			".pdf": &PDFExtractor{},
		},
	}
}

// ForFile returns the extractor for the file's extension, if registered.
// Extension matching is case-insensitive.
func (r *Registry) ForFile(path string) (Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	return e, ok
}

// Supported reports whether the file's extension has a registered extractor.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForFile(path)
	return ok
}

// Extensions returns the registered extensions, unordered.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
