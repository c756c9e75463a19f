package embedder

import (
	"context"
	"encoding/binary"
	"hash/fnv"
)

// StubEmbedder backs the "in-memory-stub" embedding provider
// (spec.md §4.3): a deterministic, hash-based embedder with no
// external dependency, for tests and offline operation. It has no
// real-world library to wrap and is the one stdlib-only provider.
type StubEmbedder struct {
	dimension int
}

// NewStubEmbedder creates a deterministic stub embedder producing
// vectors of the given dimension (default 768 if dimension <= 0).
func NewStubEmbedder(dimension int) *StubEmbedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &StubEmbedder{dimension: dimension}
}

// EmbedDocuments returns one deterministic vector per input text.
func (s *StubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.hashVector(t)
	}
	return out, nil
}

// EmbedQuery returns a deterministic vector for a single text.
func (s *StubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return s.hashVector(text), nil
}

// Dimension returns the configured vector dimension.
func (s *StubEmbedder) Dimension() int {
	return s.dimension
}

// hashVector derives a unit-ish vector from repeated FNV-1a hashing of
// the text with a per-component seed; the same text always produces
// the same vector, which is all the stub provider promises.
func (s *StubEmbedder) hashVector(text string) []float32 {
	vec := make([]float32, s.dimension)
	seedBuf := make([]byte, 8)
	for i := range vec {
		h := fnv.New64a()
		h.Write([]byte(text))
		binary.LittleEndian.PutUint64(seedBuf, uint64(i))
		h.Write(seedBuf)
		sum := h.Sum64()
		// Map to [-1, 1].
		vec[i] = float32(int64(sum%2000001)-1000000) / 1000000.0
	}
	return vec
}
