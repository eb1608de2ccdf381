// Package embedding holds helpers shared by embedding providers.
package embedding

import (
	"context"
	"fmt"

	"docrag/internal/domain"
)

// Embedder converts text into fixed-dimension vectors.
type Embedder = domain.Embedder

// EmbedInBatches embeds texts in document mode, at most batchSize per
// provider call. It returns only after every text is embedded, and checks
// that each vector has the embedder's dimension.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vecs, err := e.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", domain.ErrEmbedding, e.Name(), len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	if err := CheckDimension(e, out...); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckDimension fails when any vector's size differs from e.Dimension().
// An embedder reporting zero has not learned its dimension yet; the vectors
// must then agree with each other.
func CheckDimension(e Embedder, vecs ...[]float32) error {
	want := e.Dimension()
	for i, v := range vecs {
		if want == 0 {
			want = len(v)
		}
		if len(v) != want || len(v) == 0 {
			return fmt.Errorf("%w: %w: vector %d has %d values, want %d", domain.ErrEmbedding, domain.ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}
