// Package qdrant is a minimal REST client to a Qdrant collection. It assumes
// cosine distance and creates the collection on first insert.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/dedup"
	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

const scrollPage = 256

var errNotFound = fmt.Errorf("%w: qdrant collection not found", domain.ErrStore)

// Config configures the Qdrant store.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage is a vector store backed by a Qdrant collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	dimension int
}

var (
	_ vectorstore.Storage           = (*Storage)(nil)
	_ vectorstore.FingerprintLister = (*Storage)(nil)
)

// NewStorage returns a store for cfg.Collection. No request is made until first use.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant url and collection are required", domain.ErrStore)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	point
	Score float32 `json:"score"`
}

// collectionDimension returns the vector size of the collection, or 0 if it
// does not exist yet.
func (s *Storage) collectionDimension(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension > 0 {
		return s.dimension, nil
	}
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.dimension = resp.Result.Config.Params.Vectors.Size
	return s.dimension, nil
}

func (s *Storage) createCollection(ctx context.Context, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

// Insert upserts records under fresh point ids. Each point carries a
// sequence number so ties and enumeration keep insertion order.
func (s *Storage) Insert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := s.collectionDimension(ctx)
	if err != nil {
		return err
	}
	vecs := make([][]float32, len(records))
	for i := range records {
		vecs[i] = records[i].Vector
	}
	newDim, err := vectorstore.CheckDimension(dim, vecs...)
	if err != nil {
		return err
	}
	base := 0
	if dim == 0 {
		if err := s.createCollection(ctx, newDim); err != nil {
			return err
		}
	} else if base, err = s.Count(ctx); err != nil {
		return err
	}

	points := make([]point, len(records))
	for i, r := range records {
		id := r.ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		fp := r.Fingerprint
		if fp == "" {
			fp = dedup.Fingerprint(r.Text)
		}
		payload := map[string]any{
			"text":        r.Text,
			"fingerprint": string(fp),
			"seq":         base + i,
		}
		if len(r.Metadata) > 0 {
			payload["metadata"] = r.Metadata
		}
		points[i] = point{ID: id, Vector: r.Vector, Payload: payload}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.QueryResult, error) {
	if err := vectorstore.ValidateK(k); err != nil {
		return nil, err
	}
	dim, err := s.collectionDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if _, err := vectorstore.CheckDimension(dim, vector); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	sort.SliceStable(resp.Result, func(i, j int) bool {
		a, b := resp.Result[i], resp.Result[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return seqOf(a.point) < seqOf(b.point)
	})
	results := make([]domain.QueryResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.QueryResult{Record: toRecord(r.point), Score: r.Score})
	}
	return results, nil
}

func (s *Storage) Texts(ctx context.Context) ([]string, error) {
	points, err := s.scroll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = toRecord(p).Text
	}
	return out, nil
}

// Fingerprints returns the fingerprint stored in each point's payload.
func (s *Storage) Fingerprints(ctx context.Context) ([]domain.Fingerprint, error) {
	points, err := s.scroll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Fingerprint, len(points))
	for i, p := range points {
		out[i] = toRecord(p).Fingerprint
	}
	return out, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Persist is a no-op: inserts wait for Qdrant to apply them.
func (s *Storage) Persist(context.Context) error { return nil }

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// scroll pages through every point's payload, returned in insertion order.
func (s *Storage) scroll(ctx context.Context) ([]point, error) {
	var (
		all    []point
		offset any
	)
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Result.Points...)
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	sort.SliceStable(all, func(i, j int) bool { return seqOf(all[i]) < seqOf(all[j]) })
	return all, nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: qdrant marshal: %w", domain.ErrStore, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%w: qdrant request: %w", domain.ErrStore, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %w", domain.ErrStore, method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: qdrant %s %s failed: %s: %s", domain.ErrStore, method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: qdrant decode: %w", domain.ErrStore, err)
		}
	}
	return nil
}

func seqOf(p point) float64 {
	v, _ := p.Payload["seq"].(float64)
	return v
}

func toRecord(p point) domain.Record {
	r := domain.Record{ID: p.ID, Vector: p.Vector}
	if v, ok := p.Payload["text"].(string); ok {
		r.Text = v
	}
	if v, ok := p.Payload["fingerprint"].(string); ok {
		r.Fingerprint = domain.Fingerprint(v)
	}
	if m, ok := p.Payload["metadata"].(map[string]any); ok {
		r.Metadata = make(map[string]string, len(m))
		for k, v := range m {
			if sv, ok := v.(string); ok {
				r.Metadata[k] = sv
			}
		}
	}
	return r
}
