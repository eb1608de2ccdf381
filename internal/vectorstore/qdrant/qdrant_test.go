package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// fakeQdrant implements the subset of the Qdrant REST API the store uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	points  []point
	apiKeys []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	path := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	reply := func(v any) { _ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok"}) }

	if path == "" && r.Method == http.MethodPut {
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.size = body.Vectors.Size
		reply(true)
		return
	}
	if f.size == 0 {
		http.Error(w, `{"status":{"error":"Not found: Collection doesn't exist"}}`, http.StatusNotFound)
		return
	}

	switch {
	case path == "" && r.Method == http.MethodGet:
		reply(map[string]any{"config": map[string]any{"params": map[string]any{
			"vectors": map[string]any{"size": f.size, "distance": "Cosine"},
		}}})
	case path == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		reply(map[string]any{"status": "completed"})
	case path == "/points/count":
		reply(map[string]any{"count": len(f.points)})
	case path == "/points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		out := make([]map[string]any, 0, len(f.points))
		for _, p := range f.points {
			out = append(out, map[string]any{
				"id": p.ID, "score": vectorstore.Cosine(p.Vector, body.Vector),
				"payload": p.Payload, "vector": p.Vector,
			})
		}
		// Real engines give no tie order; reverse to make that visible.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i]["score"].(float32) > out[j]["score"].(float32) })
		if body.Limit < len(out) {
			out = out[:body.Limit]
		}
		reply(out)
	case path == "/points/scroll":
		var body struct {
			Limit  int `json:"limit"`
			Offset any `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		start := 0
		if body.Offset != nil {
			start = int(body.Offset.(float64))
		}
		end := min(start+body.Limit, len(f.points))
		var next any
		if end < len(f.points) {
			next = end
		}
		page := make([]map[string]any, 0, end-start)
		for _, p := range f.points[start:end] {
			page = append(page, map[string]any{"id": p.ID, "payload": p.Payload})
		}
		reply(map[string]any{"points": page, "next_page_offset": next})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"})
	require.NoError(t, err)
	return s, fake
}

func TestStorage_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	res, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	texts, err := s.Texts(ctx)
	require.NoError(t, err)
	assert.Empty(t, texts)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_InsertSearchEnumerate(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t)

	require.NoError(t, s.Insert(ctx, []domain.Record{
		{Text: "Apple", Vector: []float32{1, 0}, Fingerprint: "fa", Metadata: map[string]string{"source": "a.txt"}},
		{Text: "Banana", Vector: []float32{0, 1}, Fingerprint: "fb"},
	}))
	require.NoError(t, s.Insert(ctx, []domain.Record{
		{Text: "Avocado", Vector: []float32{2, 0}, Fingerprint: "fc"},
	}))
	assert.Equal(t, 2, fake.size)
	assert.Contains(t, fake.apiKeys, "secret")

	res, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Apple", res[0].Record.Text, "ties keep insertion order")
	assert.Equal(t, "Avocado", res[1].Record.Text)
	assert.Equal(t, "a.txt", res[0].Record.Metadata["source"])

	texts, err := s.Texts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "Banana", "Avocado"}, texts)

	fps, err := s.Fingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Fingerprint{"fa", "fb", "fc"}, fps)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, s.Persist(ctx))
}

func TestStorage_ScrollPaginates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	records := make([]domain.Record, scrollPage+10)
	for i := range records {
		records[i] = domain.Record{Text: "t", Vector: []float32{1, float32(i)}}
	}
	require.NoError(t, s.Insert(ctx, records))

	texts, err := s.Texts(ctx)
	require.NoError(t, err)
	assert.Len(t, texts, len(records))
}

func TestStorage_DimensionGuard(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	require.NoError(t, s.Insert(ctx, []domain.Record{{Text: "a", Vector: []float32{1, 0}}}))

	err := s.Insert(ctx, []domain.Record{{Text: "b", Vector: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestNewStorage_Validates(t *testing.T) {
	_, err := NewStorage(Config{URL: "http://localhost:6333"})
	assert.ErrorIs(t, err, domain.ErrStore)
}
