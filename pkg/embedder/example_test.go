package embedder_test

import (
	"context"
	"fmt"
	"log"

	"github.com/codegraphrag/codegraphrag-mcp/pkg/embedder"
)

// Example demonstrates embedding a batch of code snippets with the
// in-memory-stub provider, which needs no network access.
func ExampleNewGeneratorFromOptions() {
	gen, err := embedder.NewGeneratorFromOptions(embedder.Options{
		Provider:     embedder.ProviderInMemoryStub,
		Dimension:    256,
		MaxBatchSize: 32,
		Concurrency:  2,
	})
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}

	ctx := context.Background()
	vectors, err := gen.GenerateBatch(ctx, []string{
		"func add(a, b int) int { return a + b }",
		"func sub(a, b int) int { return a - b }",
	})
	if err != nil {
		log.Fatalf("failed to generate batch: %v", err)
	}

	fmt.Printf("generator dimension: %d\n", gen.Dimension())
	fmt.Printf("vectors produced: %d\n", len(vectors))
	// Output: generator dimension: 256
	// vectors produced: 2
}

// Example demonstrates the single-snippet code embedding path.
func ExampleGenerator_GenerateCodeEmbedding() {
	gen, err := embedder.NewGeneratorFromOptions(embedder.Options{
		Provider:  embedder.ProviderInMemoryStub,
		Dimension: 128,
	})
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}

	vec, err := gen.GenerateCodeEmbedding(context.Background(), "class Widget {}")
	if err != nil {
		log.Fatalf("failed to embed code: %v", err)
	}

	fmt.Printf("vector length: %d\n", len(vec))
	// Output: vector length: 128
}
