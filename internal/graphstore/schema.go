package graphstore

// schemaSQL is the Graph Store's DDL, grounded on
// bbiangul-go-reason/store/schema.go's entities/relationships tables:
// a flat entity table plus a directed, typed relationship table, with
// a pending_relationships holding area for edges whose endpoints
// haven't been upserted yet (spec.md §4.2's "deferred to a pending
// set and retried after the next entity upsert").
const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    entity_type  TEXT NOT NULL,
    file_path    TEXT NOT NULL,
    start_line   INTEGER NOT NULL,
    start_col    INTEGER NOT NULL,
    start_index  INTEGER NOT NULL,
    end_line     INTEGER NOT NULL,
    end_col      INTEGER NOT NULL,
    end_index    INTEGER NOT NULL,
    content_hash TEXT NOT NULL,
    metadata     JSON,
    updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file_path);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);

CREATE TABLE IF NOT EXISTS relationships (
    id       TEXT PRIMARY KEY,
    from_id  TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    to_id    TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    rel_type TEXT NOT NULL,
    line     INTEGER,
    context  TEXT,
    source   TEXT,
    UNIQUE(from_id, to_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(rel_type);

-- Relationships whose endpoints did not resolve at upsert time. Retried
-- whenever new entities are upserted.
CREATE TABLE IF NOT EXISTS pending_relationships (
    id       TEXT PRIMARY KEY,
    from_id  TEXT NOT NULL,
    to_id    TEXT NOT NULL,
    rel_type TEXT NOT NULL,
    line     INTEGER,
    context  TEXT,
    source   TEXT
);
`
