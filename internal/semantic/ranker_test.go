package semantic

import "testing"

func TestRerankSemanticHitsAppliesStructuralBoost(t *testing.T) {
	hits := []SemanticHit{
		{EntityID: "a", Path: "pkg/a.go", Score: 0.50},
		{EntityID: "b", Path: "pkg/b.go", Score: 0.60},
	}
	structural := map[string]bool{"pkg/a.go": true}

	ranked := RerankSemanticHits(hits, structural)

	var a, b RankedHit
	for _, r := range ranked {
		switch r.EntityID {
		case "a":
			a = r
		case "b":
			b = r
		}
	}

	if a.StructuralBoost != 0.15 {
		t.Fatalf("a.StructuralBoost = %v, want 0.15", a.StructuralBoost)
	}
	if b.StructuralBoost != 0 {
		t.Fatalf("b.StructuralBoost = %v, want 0", b.StructuralBoost)
	}
	if a.FinalScore != 0.65 {
		t.Fatalf("a.FinalScore = %v, want 0.65", a.FinalScore)
	}
	// a (0.65) should now outrank b (0.60) despite the lower raw score.
	if ranked[0].EntityID != "a" {
		t.Fatalf("ranked[0] = %s, want a to win via structural boost", ranked[0].EntityID)
	}
}

func TestRerankSemanticHitsTiesKeepOriginalOrder(t *testing.T) {
	hits := []SemanticHit{
		{EntityID: "first", Path: "x.go", Score: 0.5},
		{EntityID: "second", Path: "y.go", Score: 0.5},
	}
	ranked := RerankSemanticHits(hits, nil)
	if ranked[0].EntityID != "first" || ranked[1].EntityID != "second" {
		t.Fatalf("RerankSemanticHits() = %+v, want stable tie order [first second]", ranked)
	}
}

func TestRerankSemanticHitsSortsDescending(t *testing.T) {
	hits := []SemanticHit{
		{EntityID: "low", Path: "a.go", Score: 0.1},
		{EntityID: "high", Path: "b.go", Score: 0.9},
		{EntityID: "mid", Path: "c.go", Score: 0.5},
	}
	ranked := RerankSemanticHits(hits, nil)
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].FinalScore < ranked[i].FinalScore {
			t.Fatalf("RerankSemanticHits() not sorted descending: %+v", ranked)
		}
	}
}
