package embedder

import (
	"context"
	"testing"
)

func TestStubEmbedderDimension(t *testing.T) {
	e := NewStubEmbedder(128)
	if e.Dimension() != 128 {
		t.Errorf("Dimension() = %d, want 128", e.Dimension())
	}
}

func TestStubEmbedderDefaultDimension(t *testing.T) {
	e := NewStubEmbedder(0)
	if e.Dimension() != 768 {
		t.Errorf("Dimension() = %d, want default 768", e.Dimension())
	}
}

func TestStubEmbedderDeterministic(t *testing.T) {
	e := NewStubEmbedder(32)
	ctx := context.Background()

	v1, err := e.EmbedQuery(ctx, "func add(a, b int) int { return a + b }")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	v2, err := e.EmbedQuery(ctx, "func add(a, b int) int { return a + b }")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}

	if len(v1) != 32 || len(v2) != 32 {
		t.Fatalf("unexpected vector length: %d, %d", len(v1), len(v2))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("stub embedder not deterministic at index %d: %v != %v", i, v1[i], v2[i])
		}
	}
}

func TestStubEmbedderDistinguishesText(t *testing.T) {
	e := NewStubEmbedder(32)
	ctx := context.Background()

	v1, _ := e.EmbedQuery(ctx, "alpha")
	v2, _ := e.EmbedQuery(ctx, "beta")

	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct inputs produced identical vectors")
	}
}

func TestStubEmbedderBatch(t *testing.T) {
	e := NewStubEmbedder(16)
	ctx := context.Background()

	vecs, err := e.EmbedDocuments(ctx, []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("EmbedDocuments() returned %d vectors, want 3", len(vecs))
	}
	for _, v := range vecs {
		if len(v) != 16 {
			t.Errorf("vector length = %d, want 16", len(v))
		}
	}
}

func TestStubEmbedderEmptyBatch(t *testing.T) {
	e := NewStubEmbedder(16)
	vecs, err := e.EmbedDocuments(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(vecs) != 0 {
		t.Errorf("EmbedDocuments(nil) = %d vectors, want 0", len(vecs))
	}
}
