//go:build cgo

package graphstore

import (
	"context"
	"testing"

	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// seedChain builds A <-calls- B <-calls- C (A depends on B, B depends on C)
// matching spec.md's worked Impact invariant example.
func seedChain(t *testing.T, s *Store) (a, b, c string) {
	t.Helper()
	ctx := context.Background()
	a, b, c = "f.go:function:/A", "f.go:function:/B", "f.go:function:/C"

	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{
		sampleEntity(a, "A", "f.go"),
		sampleEntity(b, "B", "f.go"),
		sampleEntity(c, "C", "f.go"),
	}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}
	if err := s.UpsertRelationships(ctx, []parserengine.Relationship{
		{ID: "b->a", FromID: b, ToID: a, Type: parserengine.RelCalls},
		{ID: "c->b", FromID: c, ToID: b, Type: parserengine.RelCalls},
	}); err != nil {
		t.Fatalf("UpsertRelationships() error = %v", err)
	}
	return a, b, c
}

func TestImpactMatchesWorkedInvariantExample(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b, c := seedChain(t, s)

	result, err := s.Impact(ctx, a, 1)
	if err != nil {
		t.Fatalf("Impact(depth=1) error = %v", err)
	}
	if len(result.Direct) != 1 || result.Direct[0].ID != b {
		t.Fatalf("Impact(depth=1).Direct = %+v, want [B]", result.Direct)
	}
	if len(result.Transitive) != 0 {
		t.Fatalf("Impact(depth=1).Transitive = %+v, want []", result.Transitive)
	}

	result, err = s.Impact(ctx, a, 2)
	if err != nil {
		t.Fatalf("Impact(depth=2) error = %v", err)
	}
	if len(result.Direct) != 1 || result.Direct[0].ID != b {
		t.Fatalf("Impact(depth=2).Direct = %+v, want [B]", result.Direct)
	}
	if len(result.Transitive) != 1 || result.Transitive[0].ID != c {
		t.Fatalf("Impact(depth=2).Transitive = %+v, want [C]", result.Transitive)
	}
}

func TestImpactOutboundDependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b, _ := seedChain(t, s)

	result, err := s.Impact(ctx, b, 1)
	if err != nil {
		t.Fatalf("Impact() error = %v", err)
	}
	if len(result.Outbound) != 1 || result.Outbound[0].ID != a {
		t.Fatalf("Impact(B).Outbound = %+v, want [A]", result.Outbound)
	}
}

func TestNeighborhoodDedupsEdgesAndRespectsDepth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b, c := seedChain(t, s)

	result, err := s.Neighborhood(ctx, b, 1, nil)
	if err != nil {
		t.Fatalf("Neighborhood() error = %v", err)
	}
	if _, ok := result.Visited[a]; !ok {
		t.Fatal("Neighborhood(B, depth=1) should visit A")
	}
	if _, ok := result.Visited[c]; !ok {
		t.Fatal("Neighborhood(B, depth=1) should visit C (incoming edge from C)")
	}
	if len(result.Edges) != 2 {
		t.Fatalf("Edges = %d, want 2 (deduplicated)", len(result.Edges))
	}
}

func TestNeighborhoodFiltersByRelationshipType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b, _ := seedChain(t, s)

	result, err := s.Neighborhood(ctx, b, 1, []parserengine.RelationshipType{parserengine.RelImports})
	if err != nil {
		t.Fatalf("Neighborhood() error = %v", err)
	}
	if _, ok := result.Visited[a]; ok {
		t.Fatal("Neighborhood() with an imports-only filter should not traverse a calls edge")
	}
}

func TestResolveScoresExactNameAboveSubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exact := sampleEntity("x.go:function:/Widget", "Widget", "x.go")
	substr := sampleEntity("y.go:function:/MyWidgetFactory", "MyWidgetFactory", "y.go")
	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{exact, substr}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}

	scored, err := s.Resolve(ctx, "Widget", "", 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(scored) < 2 {
		t.Fatalf("Resolve() returned %d candidates, want >= 2", len(scored))
	}
	if scored[0].Entity.ID != exact.ID {
		t.Fatalf("Resolve() top candidate = %s, want exact match %s", scored[0].Entity.ID, exact.ID)
	}
	if scored[0].Score <= scored[1].Score {
		t.Fatalf("exact match score %v should exceed substring match score %v", scored[0].Score, scored[1].Score)
	}
}

func TestResolveFilePathHintBoostsSameDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	same := sampleEntity("pkg/foo.go:function:/Helper", "Helper", "pkg/foo.go")
	other := sampleEntity("other/bar.go:function:/Helper", "Helper", "other/bar.go")
	if _, err := s.UpsertEntities(ctx, []parserengine.Entity{same, other}); err != nil {
		t.Fatalf("UpsertEntities() error = %v", err)
	}

	scored, err := s.Resolve(ctx, "Helper", "pkg/caller.go", 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if scored[0].Entity.ID != same.ID {
		t.Fatalf("Resolve() top candidate = %s, want same-directory match %s", scored[0].Entity.ID, same.ID)
	}
}

func TestResolveTopKTruncates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a.go:function:/Dup", "b.go:function:/Dup", "c.go:function:/Dup"} {
		if _, err := s.UpsertEntities(ctx, []parserengine.Entity{sampleEntity(id, "Dup", id)}); err != nil {
			t.Fatalf("UpsertEntities() error = %v", err)
		}
	}

	scored, err := s.Resolve(ctx, "Dup", "", 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("Resolve(topK=2) returned %d candidates, want 2", len(scored))
	}
}
