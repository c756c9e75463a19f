package vectorstore

import (
	"fmt"
)

// schemaSQL is the Vector Store's DDL: a vec0 virtual table keyed by
// entity_id, grounded on bbiangul-go-reason/store/schema.go's
// vec_chunks table, generalized from chunk ids to entity ids
// (SPEC_FULL.md §4.3). vector_metadata carries the {path, type, name,
// language} metadata VectorRecord requires alongside the vector
// itself, since vec0 virtual tables only hold the embedding column.
func schemaSQL(dim int) string {
	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_entities USING vec0(
    entity_id TEXT PRIMARY KEY,
    embedding FLOAT[%d]
);

CREATE TABLE IF NOT EXISTS vector_metadata (
    entity_id TEXT PRIMARY KEY,
    path      TEXT NOT NULL,
    type      TEXT NOT NULL,
    name      TEXT NOT NULL,
    language  TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vector_metadata_path ON vector_metadata(path);
CREATE INDEX IF NOT EXISTS idx_vector_metadata_type ON vector_metadata(type);
`, dim)
}
