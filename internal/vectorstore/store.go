// Package vectorstore is the Vector Store (spec.md §4.3): dense-vector
// persistence with cosine top-k search and metadata filters, backed by
// sqlite-vec's vec0 virtual table rather than the teacher's unfetchable
// SurrealDB fork (internal/storage/surrealdb_vectors.go), per
// SPEC_FULL.md §4.3 and DESIGN.md's REDESIGN note.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// minBatchSize is spec.md §4.3's "writes are batched (≥64 at a time)"
// amortization threshold. Nothing in this package reads it: InsertBatch
// does not buffer across calls and writes exactly the records it is
// given in one transaction, and Update writes a single record.
const minBatchSize = 64

// Record is spec.md §3's VectorRecord: one dense embedding per entity,
// upserted on re-embed.
type Record struct {
	EntityID string
	Vector   []float32
	Metadata Metadata
}

// Metadata is VectorRecord's {path, type, name, language} payload.
type Metadata struct {
	Path     string
	Type     string
	Name     string
	Language string
}

// Hit is a single search result: {entityId, score, metadata}.
type Hit struct {
	EntityID string
	Score    float64
	Metadata Metadata
}

// Filter narrows search results by metadata after the KNN pass.
type Filter struct {
	Path     string
	Type     string
	Language string
}

// Store is the Vector Store. A single writer connection serializes
// inserts/updates (vec0 tables are not safe for concurrent writers);
// reads use the same pool since sqlite-vec search is a plain SELECT.
type Store struct {
	db  *sql.DB
	dim int
	mu  sync.Mutex
}

// Open initializes the vec0 virtual table at dim dimensions and
// returns a ready Store (the "initialize" operation of spec.md §4.3).
func Open(dbPath string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorstore: dim must be positive, got %d", dim)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("vectorstore: creating directory %s: %w", dir, err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: opening %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: pinging %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schemaSQL(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: applying schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, dim: dim}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch upserts a set of records. Callers should batch ≥64 at a
// time per spec.md §4.3; smaller batches still work, just less
// efficiently.
func (s *Store) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("vectorstore: record %s has dimension %d, store expects %d", r.EntityID, len(r.Vector), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := upsertRecord(ctx, tx, r); err != nil {
			return fmt.Errorf("vectorstore: upserting %s: %w", r.EntityID, err)
		}
	}
	return tx.Commit()
}

// Update replaces a single entity's vector and metadata (upsert on
// re-embed, per VectorRecord's invariant).
func (s *Store) Update(ctx context.Context, entityID string, vector []float32, metadata Metadata) error {
	if len(vector) != s.dim {
		return fmt.Errorf("vectorstore: vector has dimension %d, store expects %d", len(vector), s.dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertRecord(ctx, tx, Record{EntityID: entityID, Vector: vector, Metadata: metadata}); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM vec_entities WHERE entity_id = ?", r.EntityID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO vec_entities (entity_id, embedding) VALUES (?, ?)",
		r.EntityID, serializeFloat32(normalize(r.Vector))); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vector_metadata (entity_id, path, type, name, language, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(entity_id) DO UPDATE SET
			path = excluded.path,
			type = excluded.type,
			name = excluded.name,
			language = excluded.language,
			updated_at = excluded.updated_at
	`, r.EntityID, r.Metadata.Path, r.Metadata.Type, r.Metadata.Name, r.Metadata.Language)
	return err
}

// Search performs cosine KNN search, grounded on
// bbiangul-go-reason/store.go's VectorSearch (`MATCH ? AND k = ?`,
// `score = 1 - distance`). filter narrows results by metadata after
// the vec0 KNN pass.
func (s *Store) Search(ctx context.Context, queryVec []float32, limit int, filter *Filter) ([]Hit, error) {
	if len(queryVec) != s.dim {
		return nil, fmt.Errorf("vectorstore: query vector has dimension %d, store expects %d", len(queryVec), s.dim)
	}
	if limit <= 0 {
		limit = 10
	}

	// Over-fetch so post-filtering by metadata still yields up to
	// `limit` results.
	k := limit
	if filter != nil {
		k = limit * 4
		if k > 256 {
			k = 256
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.entity_id, v.distance, m.path, m.type, m.name, m.language
		FROM vec_entities v
		JOIN vector_metadata m ON m.entity_id = v.entity_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(normalize(queryVec)), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.EntityID, &distance, &h.Metadata.Path, &h.Metadata.Type, &h.Metadata.Name, &h.Metadata.Language); err != nil {
			return nil, err
		}
		h.Score = 1 - distance
		if filter != nil && !matchesFilter(h.Metadata, *filter) {
			continue
		}
		hits = append(hits, h)
		if len(hits) >= limit {
			break
		}
	}
	return hits, rows.Err()
}

func matchesFilter(m Metadata, f Filter) bool {
	if f.Path != "" && m.Path != f.Path {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.Language != "" && m.Language != f.Language {
		return false
	}
	return true
}

// Reset removes every stored vector and its metadata, used by the
// clean_index tool to force a full re-embed alongside a graph reset.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_entities"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_metadata"); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the number of stored vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vector_metadata").Scan(&n)
	return n, err
}

// Delete removes a vector and its metadata, used when an entity is
// removed from the Graph Store.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vec_entities WHERE entity_id = ?", entityID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_metadata WHERE entity_id = ?", entityID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetVector returns the stored vector and metadata for entityID, used
// by the Semantic Agent's analyze/clone_detect tasks to look up a
// reference entity's own embedding before searching for neighbors.
func (s *Store) GetVector(ctx context.Context, entityID string) ([]float32, Metadata, bool, error) {
	var blob []byte
	var m Metadata
	row := s.db.QueryRowContext(ctx, `
		SELECT v.embedding, m.path, m.type, m.name, m.language
		FROM vec_entities v
		JOIN vector_metadata m ON m.entity_id = v.entity_id
		WHERE v.entity_id = ?
	`, entityID)
	if err := row.Scan(&blob, &m.Path, &m.Type, &m.Name, &m.Language); err != nil {
		if err == sql.ErrNoRows {
			return nil, Metadata{}, false, nil
		}
		return nil, Metadata{}, false, err
	}
	return deserializeFloat32(blob), m, true, nil
}

func deserializeFloat32(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// normalize L2-normalizes v so Search's cosine distance is comparable
// across records of differing magnitude (VectorRecord's invariant:
// "‖vector‖ may be unnormalized; the ranker normalizes on comparison").
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec, grounded on bbiangul-go-reason/store.go's identical
// helper.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
