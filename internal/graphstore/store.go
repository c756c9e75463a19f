// Package graphstore is the Graph Store (spec.md §4.2): persistent
// entity/relationship tables with typed queries and BFS traversals,
// backed by embedded SQLite rather than the teacher's unfetchable
// SurrealDB fork.
package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// Store wraps a single SQLite connection (SetMaxOpenConns(1)) holding
// the entity and relationship tables; reads and writes are serialized
// through it, so reads do not run concurrently with each other or with
// writes.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database at dbPath with WAL mode,
// foreign keys, and a generous busy timeout, grounded on
// bbiangul-go-reason/store/store.go's connection string and pool
// settings.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("graphstore: creating db directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("graphstore: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: creating schema: %w", err)
	}

	// The graph store serializes writes via a single-writer discipline
	// (spec.md §4): one open connection avoids SQLITE_BUSY under WAL,
	// while readers still see a consistent snapshot.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertResult is the outcome of UpsertEntities.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// UpsertEntities transactionally inserts or replaces entities by id,
// then attempts to promote any pending relationships whose endpoints
// now resolve (spec.md §4.2).
func (s *Store) UpsertEntities(ctx context.Context, entities []parserengine.Entity) (UpsertResult, error) {
	var result UpsertResult

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entities (id, name, entity_type, file_path,
				start_line, start_col, start_index, end_line, end_col, end_index,
				content_hash, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name         = excluded.name,
				entity_type  = excluded.entity_type,
				file_path    = excluded.file_path,
				start_line   = excluded.start_line,
				start_col    = excluded.start_col,
				start_index  = excluded.start_index,
				end_line     = excluded.end_line,
				end_col      = excluded.end_col,
				end_index    = excluded.end_index,
				content_hash = excluded.content_hash,
				metadata     = excluded.metadata,
				updated_at   = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entities {
			existed, err := entityExists(ctx, tx, e.ID)
			if err != nil {
				return err
			}

			metadataJSON, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", e.ID, err)
			}

			if _, err := stmt.ExecContext(ctx, e.ID, e.Name, e.Type, e.FilePath,
				e.Location.Start.Line, e.Location.Start.Col, e.Location.Start.Index,
				e.Location.End.Line, e.Location.End.Col, e.Location.End.Index,
				e.ContentHash, string(metadataJSON)); err != nil {
				return err
			}

			if existed {
				result.Updated++
			} else {
				result.Inserted++
			}
		}

		return promotePendingRelationships(ctx, tx)
	})

	return result, err
}

func entityExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM entities WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertRelationships inserts directed edges. A relationship whose
// endpoints don't both resolve yet is deferred to the pending set
// instead of failing the whole batch (spec.md §4.2).
func (s *Store) UpsertRelationships(ctx context.Context, rels []parserengine.Relationship) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rels {
			if err := upsertOneRelationship(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertOneRelationship(ctx context.Context, tx *sql.Tx, r parserengine.Relationship) error {
	fromOK, err := entityExists(ctx, tx, r.FromID)
	if err != nil {
		return err
	}
	toOK, err := entityExists(ctx, tx, r.ToID)
	if err != nil {
		return err
	}

	if !fromOK || !toOK {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pending_relationships (id, from_id, to_id, rel_type, line, context, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.FromID, r.ToID, string(r.Type), r.Metadata.Line, r.Metadata.Context, r.Metadata.Source)
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (id, from_id, to_id, rel_type, line, context, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, rel_type) DO UPDATE SET
			line    = excluded.line,
			context = excluded.context,
			source  = excluded.source
	`, r.ID, r.FromID, r.ToID, string(r.Type), r.Metadata.Line, r.Metadata.Context, r.Metadata.Source)
	return err
}

// promotePendingRelationships re-attempts every pending relationship
// after an entity upsert, moving resolved ones into the relationships
// table.
func promotePendingRelationships(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, from_id, to_id, rel_type, line, context, source FROM pending_relationships
	`)
	if err != nil {
		return err
	}

	type pending struct {
		id, fromID, toID, relType, context, source string
		line                                       sql.NullInt64
	}
	var candidates []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.fromID, &p.toID, &p.relType, &p.line, &p.context, &p.source); err != nil {
			rows.Close()
			return err
		}
		candidates = append(candidates, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range candidates {
		fromOK, err := entityExists(ctx, tx, p.fromID)
		if err != nil {
			return err
		}
		toOK, err := entityExists(ctx, tx, p.toID)
		if err != nil {
			return err
		}
		if !fromOK || !toOK {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relationships (id, from_id, to_id, rel_type, line, context, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(from_id, to_id, rel_type) DO UPDATE SET
				line    = excluded.line,
				context = excluded.context,
				source  = excluded.source
		`, p.id, p.fromID, p.toID, p.relType, p.line, p.context, p.source); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_relationships WHERE id = ?", p.id); err != nil {
			return err
		}
	}

	return nil
}

// DeleteResult is the outcome of DeleteByFile.
type DeleteResult struct {
	EntitiesRemoved      int
	RelationshipsRemoved int
}

// DeleteByFile removes every entity whose file_path matches and
// cascades to their relationships (spec.md §4.2, §6 invariant: "For
// every entity with file F, deleteByFile(F) removes exactly that
// entity and its adjacent relationships").
func (s *Store) DeleteByFile(ctx context.Context, path string) (DeleteResult, error) {
	var result DeleteResult

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM entities WHERE file_path = ?", path)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		relRes, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM relationships WHERE from_id IN (%s) OR to_id IN (%s)", placeholders, placeholders),
			append(append([]any{}, args...), args...)...)
		if err != nil {
			return err
		}
		relCount, _ := relRes.RowsAffected()
		result.RelationshipsRemoved = int(relCount)

		entRes, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM entities WHERE id IN (%s)", placeholders), args...)
		if err != nil {
			return err
		}
		entCount, _ := entRes.RowsAffected()
		result.EntitiesRemoved = int(entCount)

		return nil
	})

	return result, err
}

// QueryType is the closed set spec.md §4.2's executeQuery accepts.
type QueryType string

const (
	QueryTypeEntity       QueryType = "entity"
	QueryTypeRelationship QueryType = "relationship"
)

// Filters narrows an executeQuery call.
type Filters struct {
	NamePattern *regexp.Regexp
	NameExact   string
	EntityTypes []string
	FilePaths   []string
}

// Query is spec.md §4.2's q = {type, filters, limit, offset}.
type Query struct {
	Type    QueryType
	Filters Filters
	Limit   int
	Offset  int
}

// QueryResult is executeQuery's {entities[], relationships[], stats}.
type QueryResult struct {
	Entities      []parserengine.Entity
	Relationships []parserengine.Relationship
	Stats         QueryStats
}

// QueryStats reports how many rows matched versus were returned,
// letting callers detect truncation by limit/offset.
type QueryStats struct {
	Matched  int
	Returned int
}

// ExecuteQuery runs a filtered entity or relationship query.
func (s *Store) ExecuteQuery(ctx context.Context, q Query) (QueryResult, error) {
	switch q.Type {
	case QueryTypeEntity:
		return s.queryEntities(ctx, q)
	case QueryTypeRelationship:
		return s.queryRelationships(ctx, q)
	default:
		return QueryResult{}, fmt.Errorf("graphstore: unrecognized query type %q", q.Type)
	}
}

func (s *Store) queryEntities(ctx context.Context, q Query) (QueryResult, error) {
	var conditions []string
	var args []any

	if q.Filters.NameExact != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, q.Filters.NameExact)
	}
	if len(q.Filters.EntityTypes) > 0 {
		conditions = append(conditions, "entity_type IN ("+placeholders(len(q.Filters.EntityTypes))+")")
		for _, t := range q.Filters.EntityTypes {
			args = append(args, t)
		}
	}
	if len(q.Filters.FilePaths) > 0 {
		conditions = append(conditions, "file_path IN ("+placeholders(len(q.Filters.FilePaths))+")")
		for _, p := range q.Filters.FilePaths {
			args = append(args, p)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, entity_type, file_path,
			start_line, start_col, start_index, end_line, end_col, end_index,
			content_hash, metadata
		FROM entities %s ORDER BY file_path, start_line
	`, where), args...)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	var all []parserengine.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return QueryResult{}, err
		}
		if q.Filters.NamePattern != nil && !q.Filters.NamePattern.MatchString(e.Name) {
			continue
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}

	page := paginateEntities(all, q.Limit, q.Offset)
	return QueryResult{
		Entities: page,
		Stats:    QueryStats{Matched: len(all), Returned: len(page)},
	}, nil
}

func (s *Store) queryRelationships(ctx context.Context, q Query) (QueryResult, error) {
	var conditions []string
	var args []any

	if len(q.Filters.EntityTypes) > 0 {
		conditions = append(conditions, "rel_type IN ("+placeholders(len(q.Filters.EntityTypes))+")")
		for _, t := range q.Filters.EntityTypes {
			args = append(args, t)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, from_id, to_id, rel_type, line, context, source
		FROM relationships %s ORDER BY from_id, to_id
	`, where), args...)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	var all []parserengine.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return QueryResult{}, err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}

	page := paginateRelationships(all, q.Limit, q.Offset)
	return QueryResult{
		Relationships: page,
		Stats:         QueryStats{Matched: len(all), Returned: len(page)},
	}, nil
}

// GetRelationshipsForEntity returns every edge where id is the
// source or the target (spec.md §4.2).
func (s *Store) GetRelationshipsForEntity(ctx context.Context, id string) ([]parserengine.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_id, to_id, rel_type, line, context, source
		FROM relationships WHERE from_id = ? OR to_id = ?
		ORDER BY from_id, to_id
	`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []parserengine.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// Metrics is getMetrics()'s {totalEntities, totalRelationships, totalFiles}.
type Metrics struct {
	TotalEntities      int
	TotalRelationships int
	TotalFiles         int
}

// GetMetrics reports aggregate store counts.
func (s *Store) GetMetrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&m.TotalEntities); err != nil {
		return Metrics{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relationships").Scan(&m.TotalRelationships); err != nil {
		return Metrics{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT file_path) FROM entities").Scan(&m.TotalFiles); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

// Reset truncates every entity, relationship, and pending-relationship
// row, used by the reset_graph tool (spec.md §6's high-impact
// operations).
func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"relationships", "pending_relationships", "entities"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("graphstore: resetting %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func paginateEntities(all []parserengine.Entity, limit, offset int) []parserengine.Entity {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func paginateRelationships(all []parserengine.Relationship, limit, offset int) []parserengine.Relationship {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func scanEntity(rows *sql.Rows) (parserengine.Entity, error) {
	var e parserengine.Entity
	var metadataJSON sql.NullString
	if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.FilePath,
		&e.Location.Start.Line, &e.Location.Start.Col, &e.Location.Start.Index,
		&e.Location.End.Line, &e.Location.End.Col, &e.Location.End.Index,
		&e.ContentHash, &metadataJSON); err != nil {
		return parserengine.Entity{}, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return parserengine.Entity{}, fmt.Errorf("unmarshal metadata for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func scanRelationship(rows *sql.Rows) (parserengine.Relationship, error) {
	var r parserengine.Relationship
	var relType string
	var line sql.NullInt64
	var context, source sql.NullString
	if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &relType, &line, &context, &source); err != nil {
		return parserengine.Relationship{}, err
	}
	r.Type = parserengine.RelationshipType(relType)
	r.Metadata = parserengine.RelationshipMetadata{
		Line:    int(line.Int64),
		Context: context.String,
		Source:  source.String,
	}
	return r, nil
}
