package domain

import "context"

// Chunk is a normalized, non-empty block of text considered for storage.
// Its identity is the exact Text; Source and Index only trace where it came from.
type Chunk struct {
	Text   string
	Source string
	Format string
	Index  int
}

// Fingerprint is the hex-encoded SHA-256 digest of a chunk's text.
type Fingerprint string

// Record is a stored tuple owned by the vector store.
type Record struct {
	ID          string
	Text        string
	Vector      []float32
	Fingerprint Fingerprint
	Metadata    map[string]string
}

// QueryResult is a stored record ranked by a similarity search.
// Score is only meaningful for ordering within one result set.
type QueryResult struct {
	Record Record
	Score  float32
}

// Embedder turns text into fixed-dimension vectors. Documents and queries
// may be encoded differently but must share the same dimension.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Responder answers a query using retrieved texts as grounding context.
type Responder interface {
	Name() string
	Respond(ctx context.Context, query string, grounding []string) (string, error)
}
