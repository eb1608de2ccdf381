// Package extractor converts source documents into ordered raw text blocks.
// Each supported format has its own Extractor, selected by a Format tag
// derived from the file extension.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
)

// Format identifies a document format.
type Format string

// Supported formats.
const (
	FormatText Format = "txt"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Extractor returns the raw text blocks of a document, in document order.
type Extractor interface {
	Format() Format
	Extract(ctx context.Context, path string) ([]string, error)
}

// FormatOf maps a path's extension to a Format.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatText, FormatDOCX, FormatPDF, FormatXLSX:
		return Format(ext), nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Base(path))
}

// Registry dispatches extraction to the extractor registered for a format.
type Registry struct {
	byFormat map[Format]Extractor
}

// NewRegistry creates a registry. A later extractor replaces an earlier one
// for the same format.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byFormat: make(map[Format]Extractor, len(extractors))}
	for _, e := range extractors {
		r.byFormat[e.Format()] = e
	}
	return r
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(NewPlainText(), NewDOCX(), NewPDF(), NewXLSX())
}

// Formats lists the registered formats.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.byFormat))
	for f := range r.byFormat {
		out = append(out, f)
	}
	return out
}

// Extract resolves the format of path and runs its extractor.
func (r *Registry) Extract(ctx context.Context, path string) (Format, []string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return "", nil, err
	}
	e, ok := r.byFormat[format]
	if !ok {
		return "", nil, fmt.Errorf("%w: no extractor registered for %s", domain.ErrUnsupportedFormat, format)
	}
	blocks, err := e.Extract(ctx, path)
	if err != nil {
		return format, nil, err
	}
	return format, blocks, nil
}

func extractionErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrExtraction, filepath.Base(path), err)
}
