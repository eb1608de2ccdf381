// Package memory is an in-process vector store using brute-force cosine
// similarity, optionally snapshotted to a gob file.
package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// SnapshotFile is the snapshot name inside the store location.
const SnapshotFile = "index.gob"

type snapshot struct {
	Dimension int
	Records   []domain.Record
}

// Storage is a simple in-memory vector store.
type Storage struct {
	mu        sync.RWMutex
	path      string
	dimension int
	records   []domain.Record
}

// NewStorage returns an empty store that is never written to disk.
func NewStorage() *Storage { return &Storage{} }

// Open returns a store snapshotted under location, loading any previous snapshot.
func Open(location string) (*Storage, error) {
	s := &Storage{path: filepath.Join(location, SnapshotFile)}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot: %w", domain.ErrStore, err)
	}
	defer f.Close()
	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot %s: %w", domain.ErrStore, s.path, err)
	}
	s.dimension = snap.Dimension
	s.records = snap.Records
	return s, nil
}

func (s *Storage) Insert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vecs := make([][]float32, len(records))
	for i := range records {
		vecs[i] = records[i].Vector
	}
	dim, err := vectorstore.CheckDimension(s.dimension, vecs...)
	if err != nil {
		return err
	}
	s.dimension = dim
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]domain.QueryResult, error) {
	if err := vectorstore.ValidateK(k); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	if _, err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}
	return vectorstore.Rank(s.records, vector, k), nil
}

func (s *Storage) Texts(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Text
	}
	return out, nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Persist writes the snapshot atomically. It is a no-op for stores created
// with NewStorage.
func (s *Storage) Persist(context.Context) error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create store dir: %w", domain.ErrStore, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), SnapshotFile+".*")
	if err != nil {
		return fmt.Errorf("%w: create snapshot: %w", domain.ErrStore, err)
	}
	defer os.Remove(tmp.Name())
	if err := gob.NewEncoder(tmp).Encode(snapshot{Dimension: s.dimension, Records: s.records}); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode snapshot: %w", domain.ErrStore, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write snapshot: %w", domain.ErrStore, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: replace snapshot: %w", domain.ErrStore, err)
	}
	return nil
}

func (s *Storage) Close() error { return nil }
