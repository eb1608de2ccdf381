// Package service wires extraction, deduplication, embedding, storage,
// retrieval and response generation into the ingest-then-ask flow.
package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/dedup"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/extractor"
	"docrag/internal/responder"
	"docrag/internal/retrieval"
	"docrag/internal/vectorstore"
)

// Metadata keys stored with every record.
const (
	MetaSource      = "source"
	MetaBlock       = "block"
	MetaFormat      = "format"
	MetaFingerprint = "fingerprint"
)

// Config is the explicit configuration handed to the pipeline.
type Config struct {
	// SourcePath is the document ingested when Run gets no path.
	SourcePath string
	// StoreLocation is where the vector store keeps its index.
	StoreLocation string
	// ProviderCredential authenticates the embedding and generation provider.
	ProviderCredential string
	DefaultK           int
	// BatchSize caps the texts sent per embedding call.
	BatchSize int
}

// IngestReport summarizes one document's ingestion.
type IngestReport struct {
	Source     string
	Format     extractor.Format
	Blocks     int
	Chunks     int
	Inserted   int
	Duplicates int
}

// Answer is the outcome of a query.
type Answer struct {
	Query   string
	K       int
	Results []domain.QueryResult
	Text    string
}

// Stats describes the store contents.
type Stats struct {
	Records      int
	Fingerprints int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithOutput sets where progress text and answers are printed.
func WithOutput(w io.Writer) Option { return func(p *Pipeline) { p.out = w } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithExtractors replaces the default extractor registry.
func WithExtractors(r *extractor.Registry) Option { return func(p *Pipeline) { p.extractors = r } }

// Pipeline runs ingestion and queries against one vector store. It is not
// safe for concurrent runs.
type Pipeline struct {
	cfg        Config
	extractors *extractor.Registry
	embedder   embedding.Embedder
	store      vectorstore.Storage
	retriever  *retrieval.Retriever
	responder  responder.Responder
	out        io.Writer
	log        *zap.Logger
	state      atomic.Int32
}

// New creates a pipeline over the given collaborators.
func New(cfg Config, emb embedding.Embedder, store vectorstore.Storage, resp responder.Responder, opts ...Option) *Pipeline {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = retrieval.DefaultK
	}
	p := &Pipeline{
		cfg:        cfg,
		extractors: extractor.Default(),
		embedder:   emb,
		store:      store,
		responder:  resp,
		out:        io.Discard,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retriever = retrieval.New(emb, store, p.log)
	return p
}

// State returns the stage of the current or last run.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// SetOutput redirects progress text and answers.
func (p *Pipeline) SetOutput(w io.Writer) { p.out = w }

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug("pipeline state", zap.Stringer("state", s))
}

func (p *Pipeline) fail(err error) error {
	p.setState(StateFailed)
	return err
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Ingest extracts path, drops chunks already stored and stores the rest.
// Either every new chunk of the document is embedded, inserted and
// persisted, or nothing is inserted.
func (p *Pipeline) Ingest(ctx context.Context, path string) (IngestReport, error) {
	report := IngestReport{Source: path}

	p.setState(StateExtracting)
	p.printf("Loading file: %s\n", path)
	format, blocks, err := p.extractors.Extract(ctx, path)
	if err != nil {
		return report, p.fail(err)
	}
	report.Format = format
	report.Blocks = len(blocks)
	chunks := chunker.FromBlocks(path, string(format), blocks)
	report.Chunks = len(chunks)
	p.printf("Extracted %d text chunks.\n\n", len(chunks))

	p.setState(StateDeduplicating)
	existing, err := p.existingFingerprints(ctx)
	if err != nil {
		return report, p.fail(err)
	}
	part := dedup.Partition(existing, chunks)
	report.Duplicates = len(part.Duplicates)
	for range part.Duplicates {
		p.printf("Duplicate chunk skipped.\n")
	}

	p.setState(StateEmbeddingInserting)
	if len(part.New) == 0 {
		p.printf("No new unique chunks to add.\n")
		p.setState(StateReady)
		p.logIngest(report)
		return report, nil
	}
	p.printf("Adding %d new unique chunks to vector store...\n\n", len(part.New))

	texts := make([]string, len(part.New))
	for i, c := range part.New {
		texts[i] = c.Text
	}
	vecs, err := embedding.EmbedInBatches(ctx, p.embedder, texts, p.cfg.BatchSize)
	if err != nil {
		return report, p.fail(err)
	}
	records := make([]domain.Record, len(part.New))
	for i, c := range part.New {
		records[i] = domain.Record{
			ID:          uuid.NewString(),
			Text:        c.Text,
			Vector:      vecs[i],
			Fingerprint: part.Fingerprints[i],
			Metadata: map[string]string{
				MetaSource:      c.Source,
				MetaBlock:       strconv.Itoa(c.Index),
				MetaFormat:      c.Format,
				MetaFingerprint: string(part.Fingerprints[i]),
			},
		}
	}
	if err := p.store.Insert(ctx, records); err != nil {
		return report, p.fail(err)
	}
	if err := p.store.Persist(ctx); err != nil {
		return report, p.fail(err)
	}
	report.Inserted = len(records)

	p.setState(StateReady)
	p.logIngest(report)
	return report, nil
}

func (p *Pipeline) logIngest(r IngestReport) {
	p.log.Info("ingested",
		zap.String("source", r.Source),
		zap.String("format", string(r.Format)),
		zap.Int("blocks", r.Blocks),
		zap.Int("chunks", r.Chunks),
		zap.Int("inserted", r.Inserted),
		zap.Int("duplicates", r.Duplicates),
	)
}

func (p *Pipeline) existingFingerprints(ctx context.Context) (dedup.Set, error) {
	return storedFingerprints(ctx, p.store)
}

// storedFingerprints returns the dedup universe: the fingerprints of every
// stored record. Stores that keep fingerprints are asked directly; otherwise
// every stored text is rehashed.
func storedFingerprints(ctx context.Context, store vectorstore.Storage) (dedup.Set, error) {
	if fl, ok := store.(vectorstore.FingerprintLister); ok {
		fps, err := fl.Fingerprints(ctx)
		if err != nil {
			return nil, err
		}
		return dedup.NewSet(fps...), nil
	}
	texts, err := store.Texts(ctx)
	if err != nil {
		return nil, err
	}
	return dedup.FromTexts(texts), nil
}

// Retrieve returns at most k stored records ranked against query.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]domain.QueryResult, error) {
	p.setState(StateRetrieving)
	results, err := p.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, p.fail(err)
	}
	return results, nil
}

// Ask retrieves the top k records for query, prints them, and prints the
// responder's answer grounded on their texts.
func (p *Pipeline) Ask(ctx context.Context, query string, k int) (Answer, error) {
	if k <= 0 {
		k = p.cfg.DefaultK
	}
	ans := Answer{Query: query, K: k}
	results, err := p.Retrieve(ctx, query, k)
	if err != nil {
		return ans, err
	}
	ans.Results = results

	p.printf("\nTop-%d Retrieved Chunks:\n\n", k)
	grounding := make([]string, len(results))
	for i, r := range results {
		grounding[i] = r.Record.Text
		p.printf("%d. %s\n\n", i+1, strings.TrimSpace(r.Record.Text))
	}

	p.setState(StateResponding)
	text, err := p.responder.Respond(ctx, query, grounding)
	if err != nil {
		return ans, p.fail(err)
	}
	ans.Text = text
	p.printf("\n%s Response:\n %s\n", p.responder.Name(), text)
	p.setState(StateDone)
	p.log.Info("answered", zap.Int("k", k), zap.Int("results", len(results)), zap.String("responder", p.responder.Name()))
	return ans, nil
}

// ParseK resolves a user-supplied k against the configured default. A
// non-empty invalid value is reported on the output and replaced.
func (p *Pipeline) ParseK(raw string) int {
	k, ok := retrieval.ParseK(raw, p.cfg.DefaultK)
	if !ok && strings.TrimSpace(raw) != "" {
		p.printf("Invalid input. Defaulting to %d.\n", k)
	}
	return k
}

// Run ingests path (or the configured source path) and answers query.
func (p *Pipeline) Run(ctx context.Context, path, query, rawK string) (Answer, error) {
	if path == "" {
		path = p.cfg.SourcePath
	}
	if path == "" {
		return Answer{}, p.fail(fmt.Errorf("%w: no document path given", domain.ErrInvalidInput))
	}
	if _, err := p.Ingest(ctx, path); err != nil {
		return Answer{}, err
	}
	return p.Ask(ctx, query, p.ParseK(rawK))
}

// Stats reports how many records and distinct fingerprints the store holds.
func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	return StoreStats(ctx, p.store)
}

// StoreStats reports the contents of store without needing a provider.
func StoreStats(ctx context.Context, store vectorstore.Storage) (Stats, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	fps, err := storedFingerprints(ctx, store)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Records: n, Fingerprints: len(fps)}, nil
}

// Close releases the vector store.
func (p *Pipeline) Close() error { return p.store.Close() }
