package graphstore

import (
	"context"

	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// MostReferencedEntities returns up to limit entities ordered by
// inbound relationship count descending, used by the Semantic Cache's
// warmup path (SPEC_FULL.md §4.4: "fetch the N most-referenced
// entities from the Graph Store").
func (s *Store) MostReferencedEntities(ctx context.Context, limit int) ([]parserengine.Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.entity_type, e.file_path,
			e.start_line, e.start_col, e.start_index, e.end_line, e.end_col, e.end_index,
			e.content_hash, e.metadata
		FROM entities e
		LEFT JOIN relationships r ON r.to_id = e.id
		GROUP BY e.id
		ORDER BY COUNT(r.id) DESC, e.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []parserengine.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
