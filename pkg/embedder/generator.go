package embedder

import (
	"context"
	"math/rand"
	"time"
)

// maxRetryAttempts caps the exponential-backoff retry budget for a
// single provider call (spec.md §4.3: "capped at 3 attempts").
const maxRetryAttempts = 3

// Generator implements the spec's Embedding Generator contract
// (generateBatch/generateCodeEmbedding) on top of an Embedder,
// chunking requests to the provider's MaxBatchSize and retrying
// transient failures with capped exponential backoff and jitter.
type Generator struct {
	embedder    Embedder
	maxBatch    int
	concurrency int
}

// NewGenerator wraps an Embedder with the batching/retry policy. A
// maxBatch <= 0 falls back to chunks of 64; a concurrency <= 0 falls
// back to 1.
func NewGenerator(e Embedder, maxBatch, concurrency int) *Generator {
	if maxBatch <= 0 {
		maxBatch = 64
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Generator{embedder: e, maxBatch: maxBatch, concurrency: concurrency}
}

// Dimension returns the underlying provider's vector dimensionality.
func (g *Generator) Dimension() int {
	return g.embedder.Dimension()
}

// GenerateBatch embeds a batch of texts, chunking into maxBatch-sized
// provider calls and running up to `concurrency` chunks in flight.
// Returns one vector per input text, in order.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	chunks := chunkStrings(texts, g.maxBatch)
	results := make([][][]float32, len(chunks))

	sem := make(chan struct{}, g.concurrency)
	errCh := make(chan error, len(chunks))
	done := make(chan struct{}, len(chunks))

	for i, chunk := range chunks {
		i, chunk := i, chunk
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			vecs, err := g.embedWithRetry(ctx, chunk)
			if err != nil {
				errCh <- err
				return
			}
			results[i] = vecs
		}()
	}

	for range chunks {
		<-done
	}
	close(errCh)
	if err, ok := <-errCh; ok {
		return nil, err
	}

	var out [][]float32
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// GenerateCodeEmbedding embeds a single piece of source code, routed
// through the query-optimized path (spec.md §4.3).
func (g *Generator) GenerateCodeEmbedding(ctx context.Context, code string) ([]float32, error) {
	vec, err := g.queryWithRetry(ctx, code)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (g *Generator) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		vecs, err := g.embedder.EmbedDocuments(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, errUnavailable(lastErr)
}

func (g *Generator) queryWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		vec, err := g.embedder.EmbedQuery(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	return nil, errUnavailable(lastErr)
}

func errUnavailable(cause error) error {
	if cause == nil {
		return ErrEmbeddingUnavailable
	}
	return &unavailableError{cause: cause}
}

type unavailableError struct{ cause error }

func (e *unavailableError) Error() string {
	return ErrEmbeddingUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Unwrap() error { return ErrEmbeddingUnavailable }

// sleepBackoff waits an exponentially increasing, jittered delay
// before the next retry attempt (attempt is 1-based: the first retry).
func sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	delay := base + jitter

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
