package extractor

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"
)

// PlainText splits UTF-8 text files into paragraphs separated by a blank line.
type PlainText struct{}

// NewPlainText creates a plain text extractor.
func NewPlainText() *PlainText { return &PlainText{} }

// Format returns FormatText.
func (p *PlainText) Format() Format { return FormatText }

// Extract returns one block per "\n\n"-separated paragraph.
func (p *PlainText) Extract(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, extractionErr(path, err)
	}
	if !utf8.Valid(data) {
		return nil, extractionErr(path, errors.New("file is not valid UTF-8"))
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\n\n"), nil
}
