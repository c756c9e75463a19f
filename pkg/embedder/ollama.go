package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbedder backs the "local-runtime" embedding provider
// (spec.md §4.3) with an Ollama server.
type OllamaEmbedder struct {
	client    *ollama.LLM
	model     string
	dimension int
}

// NewOllamaEmbedder creates an OllamaEmbedder against the given
// server URL and model name (e.g. "nomic-embed-text",
// "mxbai-embed-large"). dimension overrides the built-in guess for
// known models when > 0.
func NewOllamaEmbedder(url, model string, dimension int) (*OllamaEmbedder, error) {
	if url == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	client, err := ollama.New(
		ollama.WithServerURL(url),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	if dimension <= 0 {
		dimension = dimensionForOllamaModel(model)
	}

	return &OllamaEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

// EmbedDocuments embeds a batch of texts.
func (o *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	emb, err := embeddings.NewEmbedder(o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embed documents: %w", err)
	}

	return toFloat32Batch(vectors), nil
}

// EmbedQuery embeds a single query text.
func (o *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	emb, err := embeddings.NewEmbedder(o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	vector, err := emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed query: %w", err)
	}

	return toFloat32(vector), nil
}

// Dimension returns the vector dimensionality.
func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func dimensionForOllamaModel(model string) int {
	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm", "sentence-transformers/all-MiniLM-L6-v2":
		return 384
	case "sentence-transformers/all-mpnet-base-v2":
		return 768
	default:
		return 768
	}
}

func toFloat32Batch(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, v := range in {
		out[i] = toFloat32(v)
	}
	return out
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
