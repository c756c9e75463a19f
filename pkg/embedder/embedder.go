// Package embedder provides the Embedding Generator contract (spec.md §4.3):
// a provider-agnostic way to turn text into dense vectors, with batching,
// retries, and a pluggable set of backing providers.
package embedder

import "context"

// Embedder is the low-level per-provider primitive: a batch and a
// single-query embedding call plus the vector dimensionality it
// produces. Concrete providers (Ollama, OpenAI-compatible HTTP, the
// in-memory stub) implement this; Generator wraps one with retries,
// batching, and the spec's generateBatch/generateCodeEmbedding names.
type Embedder interface {
	// EmbedDocuments creates embeddings for a batch of texts, one
	// vector per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery creates an embedding for a single piece of text,
	// optimized for search queries where a provider distinguishes
	// query-time from document-time encoding.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the vectors this
	// embedder produces.
	Dimension() int
}
