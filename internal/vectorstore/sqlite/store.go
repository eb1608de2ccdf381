// Package sqlite is the default on-disk vector store. Records, their vectors
// and their fingerprints live in one SQLite file; search is brute-force cosine
// over every stored vector.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/dedup"
	"docrag/internal/domain"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/sqlite/migrations"
)

// DBFile is the database name inside the store location.
const DBFile = "index.db"

const dimensionKey = "dimension"

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ vectorstore.Storage           = (*Store)(nil)
	_ vectorstore.FingerprintLister = (*Store)(nil)
)

// Open opens or creates the store under location.
func Open(location string) (*Store, error) {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %w", domain.ErrStore, err)
	}
	dbPath := filepath.Join(location, DBFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrStore, err)
	}
	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrStore, err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Insert appends records in a single transaction, recording the store's
// vector dimension on first use.
func (s *Store) Insert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin insert: %w", domain.ErrStore, err)
	}
	defer tx.Rollback() //nolint:errcheck

	dim, err := dimension(ctx, tx)
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
	if dim == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO store_meta (key, value) VALUES (?, ?)`,
			dimensionKey, strconv.Itoa(newDim)); err != nil {
			return fmt.Errorf("%w: saving dimension: %w", domain.ErrStore, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, fingerprint, text, vector, metadata)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing insert: %w", domain.ErrStore, err)
	}
	defer stmt.Close()

	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("%w: marshalling metadata: %w", domain.ErrStore, err)
		}
		if string(meta) == "null" {
			meta = []byte("{}")
		}
		fp := r.Fingerprint
		if fp == "" {
			fp = dedup.Fingerprint(r.Text)
		}
		if _, err := stmt.ExecContext(ctx, id, string(fp), r.Text,
			float32SliceToBytes(r.Vector), string(meta)); err != nil {
			return fmt.Errorf("%w: inserting record: %w", domain.ErrStore, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit insert: %w", domain.ErrStore, err)
	}
	return nil
}

// Search ranks every stored vector against vector.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.QueryResult, error) {
	if err := vectorstore.ValidateK(k); err != nil {
		return nil, err
	}
	dim, err := dimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if _, err := vectorstore.CheckDimension(dim, vector); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, text, vector, metadata FROM records ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			r        domain.Record
			fp       string
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&r.ID, &fp, &r.Text, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %w", domain.ErrStore, err)
		}
		r.Fingerprint = domain.Fingerprint(fp)
		r.Vector = bytesToFloat32Slice(blob)
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshalling metadata: %w", domain.ErrStore, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating records: %w", domain.ErrStore, err)
	}
	return vectorstore.Rank(records, vector, k), nil
}

func (s *Store) Texts(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT text FROM records ORDER BY seq`)
}

// Fingerprints returns the fingerprint of every stored record.
func (s *Store) Fingerprints(ctx context.Context) ([]domain.Fingerprint, error) {
	raw, err := queryStrings(ctx, s.db, `SELECT fingerprint FROM records ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Fingerprint, len(raw))
	for i, fp := range raw {
		out[i] = domain.Fingerprint(fp)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting records: %w", domain.ErrStore, err)
	}
	return n, nil
}

// Persist checkpoints the write-ahead log into the main database file.
// Committed inserts are already durable.
func (s *Store) Persist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("%w: checkpoint: %w", domain.ErrStore, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dimension(ctx context.Context, q queryer) (int, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, dimensionKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading dimension: %w", domain.ErrStore, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt dimension %q", domain.ErrStore, v)
	}
	return n, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return out, nil
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
