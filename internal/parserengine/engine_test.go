package parserengine

import (
	"context"
	"testing"
)

const sampleGoSource = `package sample

func add(a, b int) int {
	return helper(a, b)
}

func helper(a, b int) int {
	return a + b
}
`

func TestEngineParseExtractsEntitiesAndContainsEdges(t *testing.T) {
	e := NewEngine(0)
	defer e.Close()

	result, err := e.Parse(context.Background(), "sample.go", []byte(sampleGoSource), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("Parse() reported errors: %v", result.Errors)
	}
	if len(result.Entities) == 0 {
		t.Fatal("Parse() returned no entities for a valid Go file")
	}
	if result.FromCache {
		t.Fatal("first Parse() of a file should not be a cache hit")
	}
}

func TestEngineParseSecondCallIsCacheHit(t *testing.T) {
	e := NewEngine(0)
	defer e.Close()

	first, err := e.Parse(context.Background(), "sample.go", []byte(sampleGoSource), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	second, err := e.Parse(context.Background(), "sample.go", []byte(sampleGoSource), first.ContentHash)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !second.FromCache {
		t.Fatal("second Parse() with the same content hash should be a cache hit")
	}
}

func TestEngineParseUnsupportedExtension(t *testing.T) {
	e := NewEngine(0)
	defer e.Close()

	result, err := e.Parse(context.Background(), "notes.unsupportedext", []byte("whatever"), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("Parse() of an unsupported extension should report an error, not fail silently")
	}
}

func TestEngineApplyFileChangeDeletedInvalidatesCache(t *testing.T) {
	e := NewEngine(0)
	defer e.Close()

	parsed, err := e.Parse(context.Background(), "sample.go", []byte(sampleGoSource), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	result, err := e.ApplyFileChange(context.Background(), FileChange{
		Kind:     FileDeleted,
		FilePath: "sample.go",
	})
	if err != nil {
		t.Fatalf("ApplyFileChange() error = %v", err)
	}
	if len(result.Entities) != 0 {
		t.Fatal("ApplyFileChange(deleted) should synthesize an empty ParseResult")
	}

	second, err := e.Parse(context.Background(), "sample.go", []byte(sampleGoSource), parsed.ContentHash)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if second.FromCache {
		t.Fatal("cache entry should have been invalidated by the deleted FileChange")
	}
}

func TestEngineApplyFileChangeCreatedParsesContent(t *testing.T) {
	e := NewEngine(0)
	defer e.Close()

	result, err := e.ApplyFileChange(context.Background(), FileChange{
		Kind:     FileCreated,
		FilePath: "sample.go",
		Content:  []byte(sampleGoSource),
	})
	if err != nil {
		t.Fatalf("ApplyFileChange() error = %v", err)
	}
	if len(result.Entities) == 0 {
		t.Fatal("ApplyFileChange(created) should parse the given content")
	}
}
