//go:build cgo

package graphstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "graph.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntity(id, name, filePath string) parserengine.Entity {
	return parserengine.Entity{
		ID:          id,
		Name:        name,
		Type:        "function",
		FilePath:    filePath,
		ContentHash: "hash-" + id,
	}
}

func TestUpsertEntitiesInsertsAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.UpsertEntities(ctx, []parserengine.Entity{sampleEntity("a.go:function:/foo", "foo", "a.go")})
	if err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}
	if result.Inserted != 1 || result.Updated != 0 {
		t.Fatalf("first upsert = %+v, want {Inserted:1 Updated:0}", result)
	}

	result, err = s.UpsertEntities(ctx, []parserengine.Entity{sampleEntity("a.go:function:/foo", "foo", "a.go")})
	if err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}
	if result.Updated != 1 || result.Inserted != 0 {
		t.Fatalf("second upsert = %+v, want {Inserted:0 Updated:1}", result)
	}
}

func TestUpsertRelationshipsDefersUnresolvedEndpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rel := parserengine.Relationship{
		ID:     "a->b:calls",
		FromID: "a.go:function:/foo",
		ToID:   "a.go:function:/bar",
		Type:   parserengine.RelCalls,
	}
	if err := s.UpsertRelationships(ctx, []parserengine.Relationship{rel}); err != nil {
		t.Fatalf("UpsertRelationships() error = %v", err)
	}

	rels, err := s.GetRelationshipsForEntity(ctx, rel.FromID)
	if err != nil {
		t.Fatalf("GetRelationshipsForEntity() error = %v", err)
	}
	if len(rels) != 0 {
		t.Fatal("relationship with unresolved endpoints should not appear before its entities exist")
	}

	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{
		sampleEntity(rel.FromID, "foo", "a.go"),
		sampleEntity(rel.ToID, "bar", "a.go"),
	}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}

	rels, err = s.GetRelationshipsForEntity(ctx, rel.FromID)
	if err != nil {
		t.Fatalf("GetRelationshipsForEntity() error = %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected the pending relationship to be promoted once its endpoints resolved, got %d edges", len(rels))
	}
}

func TestDeleteByFileRemovesEntityAndAdjacentRelationships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fooID, barID := "a.go:function:/foo", "b.go:function:/bar"
	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{
		sampleEntity(fooID, "foo", "a.go"),
		sampleEntity(barID, "bar", "b.go"),
	}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}
	if err := s.UpsertRelationships(ctx, []parserengine.Relationship{{
		ID: "foo->bar", FromID: fooID, ToID: barID, Type: parserengine.RelCalls,
	}}); err != nil {
		t.Fatalf("UpsertRelationships() error = %v", err)
	}

	result, err := s.DeleteByFile(ctx, "a.go")
	if err != nil {
		t.Fatalf("DeleteByFile() error = %v", err)
	}
	if result.EntitiesRemoved != 1 {
		t.Fatalf("EntitiesRemoved = %d, want 1", result.EntitiesRemoved)
	}
	if result.RelationshipsRemoved != 1 {
		t.Fatalf("RelationshipsRemoved = %d, want 1", result.RelationshipsRemoved)
	}

	res, err := s.ExecuteQuery(ctx, Query{Type: QueryTypeEntity, Filters: Filters{FilePaths: []string{"a.go"}}})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(res.Entities) != 0 {
		t.Fatal("deleted file's entities should not be returned by subsequent queries")
	}
}

func TestGetMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{
		sampleEntity("a.go:function:/foo", "foo", "a.go"),
		sampleEntity("b.go:function:/bar", "bar", "b.go"),
	}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}

	metrics, err := s.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics() error = %v", err)
	}
	if metrics.TotalEntities != 2 {
		t.Fatalf("TotalEntities = %d, want 2", metrics.TotalEntities)
	}
	if metrics.TotalFiles != 2 {
		t.Fatalf("TotalFiles = %d, want 2", metrics.TotalFiles)
	}
}

func TestExecuteQueryFiltersByEntityType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fn := sampleEntity("a.go:function:/foo", "foo", "a.go")
	cls := sampleEntity("a.go:class:/Widget", "Widget", "a.go")
	cls.Type = "class"

	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{fn, cls}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}

	res, err := s.ExecuteQuery(ctx, Query{Type: QueryTypeEntity, Filters: Filters{EntityTypes: []string{"class"}}})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(res.Entities) != 1 || res.Entities[0].Name != "Widget" {
		t.Fatalf("ExecuteQuery(class) = %+v, want only Widget", res.Entities)
	}
}
