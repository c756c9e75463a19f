package semantic

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeGraphSource struct {
	entities []PopularEntity
}

func (f fakeGraphSource) MostReferencedEntities(ctx context.Context, limit int) ([]PopularEntity, error) {
	if limit < len(f.entities) {
		return f.entities[:limit], nil
	}
	return f.entities, nil
}

type fakeNeighborhoodSource struct {
	fail map[string]bool
}

func (f fakeNeighborhoodSource) TopKNeighborhood(ctx context.Context, entityID string, k int) ([]SemanticHit, error) {
	if f.fail[entityID] {
		return nil, errors.New("boom")
	}
	return []SemanticHit{{EntityID: entityID, Path: entityID + ".go", Score: 0.9}}, nil
}

func TestWarmupPrimesCacheForEachPopularEntity(t *testing.T) {
	c, err := New(10, 0, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	graph := fakeGraphSource{entities: []PopularEntity{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	}}
	neighborhoods := fakeNeighborhoodSource{}

	primed, err := Warmup(context.Background(), c, graph, nil, neighborhoods, 0, 0)
	if err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if primed != 2 {
		t.Fatalf("Warmup() primed = %d, want 2", primed)
	}
	if c.Len() != 2 {
		t.Fatalf("cache.Len() = %d, want 2 entries primed", c.Len())
	}
}

func TestWarmupSkipsEntitiesWhoseNeighborhoodFails(t *testing.T) {
	c, err := New(10, 0, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	graph := fakeGraphSource{entities: []PopularEntity{
		{ID: "a", Name: "A"},
		{ID: "broken", Name: "Broken"},
	}}
	neighborhoods := fakeNeighborhoodSource{fail: map[string]bool{"broken": true}}

	primed, err := Warmup(context.Background(), c, graph, nil, neighborhoods, 0, 0)
	if err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if primed != 1 {
		t.Fatalf("Warmup() primed = %d, want 1 (broken entity skipped)", primed)
	}
}
