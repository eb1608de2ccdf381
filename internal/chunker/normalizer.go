package chunker

import (
	"strings"

	"docrag/internal/domain"
)

// Normalize trims surrounding whitespace from a raw block. It reports false
// when nothing is left, in which case the block is discarded.
func Normalize(block string) (string, bool) {
	text := strings.TrimSpace(block)
	if text == "" {
		return "", false
	}
	return text, true
}

// FromBlocks normalizes the blocks of one document into chunks. Each block
// becomes at most one chunk; Index keeps the block's position in the document.
func FromBlocks(source, format string, blocks []string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(blocks))
	for i, b := range blocks {
		text, ok := Normalize(b)
		if !ok {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:   text,
			Source: source,
			Format: format,
			Index:  i,
		})
	}
	return chunks
}
