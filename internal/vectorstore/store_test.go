//go:build cgo

package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, dim int) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vectors.db")
	s, err := Open(dbPath, dim)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func TestOpenRejectsNonPositiveDim(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "v.db"), 0); err == nil {
		t.Fatal("Open() with dim=0 should error")
	}
}

func TestInsertBatchAndSearchReturnsNearestFirst(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	records := []Record{
		{EntityID: "a", Vector: unitVec(4, 0), Metadata: Metadata{Path: "a.go", Type: "function", Name: "A", Language: "go"}},
		{EntityID: "b", Vector: unitVec(4, 1), Metadata: Metadata{Path: "b.go", Type: "function", Name: "B", Language: "go"}},
	}
	if err := s.InsertBatch(ctx, records); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	hits, err := s.Search(ctx, unitVec(4, 0), 2, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].EntityID != "a" {
		t.Fatalf("Search() top hit = %s, want a (exact match)", hits[0].EntityID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("exact match score %v should exceed the other hit's score %v", hits[0].Score, hits[1].Score)
	}
}

func TestInsertBatchRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t, 4)
	err := s.InsertBatch(context.Background(), []Record{{EntityID: "a", Vector: []float32{1, 2, 3}}})
	if err == nil {
		t.Fatal("InsertBatch() with wrong dimension should error")
	}
}

func TestUpdateReplacesExistingVector(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	if err := s.InsertBatch(ctx, []Record{{EntityID: "a", Vector: unitVec(4, 0), Metadata: Metadata{Path: "a.go"}}}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if err := s.Update(ctx, "a", unitVec(4, 2), Metadata{Path: "a.go", Type: "function"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1 (update should not duplicate)", count)
	}

	hits, err := s.Search(ctx, unitVec(4, 2), 1, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != "a" {
		t.Fatalf("Search() after Update = %+v, want updated vector to be nearest", hits)
	}
}

func TestSearchAppliesMetadataFilter(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	records := []Record{
		{EntityID: "a", Vector: unitVec(4, 0), Metadata: Metadata{Path: "a.go", Type: "function", Language: "go"}},
		{EntityID: "b", Vector: unitVec(4, 0), Metadata: Metadata{Path: "b.py", Type: "function", Language: "python"}},
	}
	if err := s.InsertBatch(ctx, records); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	hits, err := s.Search(ctx, unitVec(4, 0), 10, &Filter{Language: "python"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].EntityID != "b" {
		t.Fatalf("Search() with language filter = %+v, want only b", hits)
	}
}

func TestDeleteRemovesVectorAndMetadata(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	if err := s.InsertBatch(ctx, []Record{{EntityID: "a", Vector: unitVec(4, 0), Metadata: Metadata{Path: "a.go"}}}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("Count() after Delete = %d, want 0", count)
	}
}
