// Package retrieval embeds queries and ranks stored records against them.
package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/vectorstore"
)

// DefaultK is the number of results returned when none is requested.
const DefaultK = 5

// ParseK parses a user-supplied result count. Non-numeric or non-positive
// input yields def and ok=false so callers can tell the user.
func ParseK(raw string, def int) (k int, ok bool) {
	if def <= 0 {
		def = DefaultK
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def, false
	}
	return n, true
}

// Retriever finds the stored records most similar to a query.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	log      *zap.Logger
}

// New creates a Retriever. A nil logger is replaced with a no-op one.
func New(e embedding.Embedder, s vectorstore.Storage, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: e, store: s, log: log}
}

// Retrieve embeds query in query mode and returns at most k records in the
// store's ranking order.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimension(r.embedder, vec); err != nil {
		return nil, err
	}
	results, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	r.log.Debug("retrieved",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.String("embedder", r.embedder.Name()),
	)
	return results, nil
}
