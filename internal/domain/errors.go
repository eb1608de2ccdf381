package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat indicates a document extension with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtraction indicates a corrupt or unreadable document.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbedding indicates an embedding provider failure (auth, network, rate limit).
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore indicates a vector store open, insert, search or persist failure.
	ErrStore = errors.New("vector store failure")

	// ErrGeneration indicates the generation API returned an error.
	ErrGeneration = errors.New("generation failed")

	// ErrUpstreamTimeout indicates an embedding or generation call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates vectors whose size differs from the store's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Upstream wraps err from a network collaborator with kind. A deadline
// overrun is additionally marked with ErrUpstreamTimeout.
func Upstream(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", kind, ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
