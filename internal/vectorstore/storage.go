// Package vectorstore defines the append-only vector index contract and the
// ranking helpers shared by its implementations.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docrag/internal/domain"
)

// Storage persists records and supports similarity search.
type Storage interface {
	// Insert appends records. Existing records are never updated or removed.
	Insert(ctx context.Context, records []domain.Record) error
	// Search returns at most k records ordered by descending cosine similarity.
	Search(ctx context.Context, vector []float32, k int) ([]domain.QueryResult, error)
	// Texts enumerates the text of every stored record.
	Texts(ctx context.Context) ([]string, error)
	// Persist flushes inserted records to durable storage.
	Persist(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// FingerprintLister is implemented by stores that keep fingerprints alongside
// records, avoiding rehashing every stored text.
type FingerprintLister interface {
	Fingerprints(ctx context.Context) ([]domain.Fingerprint, error)
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Rank scores records against query and returns the k best, highest first.
// Ties keep the order of records.
func Rank(records []domain.Record, query []float32, k int) []domain.QueryResult {
	results := make([]domain.QueryResult, len(records))
	for i, r := range records {
		results[i] = domain.QueryResult{Record: r, Score: Cosine(r.Vector, query)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// ValidateK rejects non-positive result counts.
func ValidateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	return nil
}

// CheckDimension fails when any vector's size differs from dim. A zero dim
// accepts the size of the first vector.
func CheckDimension(dim int, vecs ...[]float32) (int, error) {
	for _, v := range vecs {
		if len(v) == 0 {
			return dim, fmt.Errorf("%w: %w: empty vector", domain.ErrStore, domain.ErrDimensionMismatch)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return dim, fmt.Errorf("%w: %w: got %d, store holds %d", domain.ErrStore, domain.ErrDimensionMismatch, len(v), dim)
		}
	}
	return dim, nil
}
