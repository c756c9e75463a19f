// Package parserengine wraps pkg/treesitter with the Parser Engine
// contract from spec.md §4.1: content-hash caching, incremental
// FileChange handling, and entity/relationship extraction.
package parserengine

// Location mirrors spec.md §3's Entity.location shape.
type Location struct {
	Line, Col, Index int
}

// Span is a start/end Location pair.
type Span struct {
	Start, End Location
}

// Entity is spec.md §3's Entity: a named code construct addressable by
// a stable id.
type Entity struct {
	ID          string
	Name        string
	Type        string
	FilePath    string
	Location    Span
	ContentHash string
	Metadata    map[string]any
}

// RelationshipType is the closed set from spec.md §3.
type RelationshipType string

const (
	RelCalls     RelationshipType = "calls"
	RelImports   RelationshipType = "imports"
	RelExports   RelationshipType = "exports"
	RelInherits  RelationshipType = "inherits"
	RelImplements RelationshipType = "implements"
	RelContains  RelationshipType = "contains"
	RelReferences RelationshipType = "references"
	RelDependsOn RelationshipType = "depends_on"
)

// Relationship is spec.md §3's Relationship.
type Relationship struct {
	ID       string
	FromID   string
	ToID     string
	Type     RelationshipType
	Metadata RelationshipMetadata
}

// RelationshipMetadata is the metadata shape spec.md §3 names for
// relationships: {line, context, source}.
type RelationshipMetadata struct {
	Line    int
	Context string
	Source  string
}

// ParseError is a non-fatal error attached to a ParseResult.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

// ParseResult is spec.md §3's ParseResult: the Parser Engine's
// structured output for one file, ephemeral and passed to the
// Indexer Agent.
type ParseResult struct {
	FilePath      string
	Language      string
	ContentHash   string
	Entities      []Entity
	Relationships []Relationship
	ParseTimeMs   int64
	FromCache     bool
	Errors        []ParseError
}

// FileChangeKind is the closed set from spec.md §4.1.
type FileChangeKind string

const (
	FileCreated  FileChangeKind = "created"
	FileModified FileChangeKind = "modified"
	FileDeleted  FileChangeKind = "deleted"
)

// FileChange is spec.md §4.1's FileChange.
type FileChange struct {
	Kind         FileChangeKind
	FilePath     string
	Content      []byte
	PreviousHash string
}
