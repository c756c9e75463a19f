package semantic

import (
	"context"
	"fmt"
)

// PopularEntity is the minimal shape Warmup needs from the Graph
// Store's most-referenced-entities query.
type PopularEntity struct {
	ID       string
	Name     string
	FilePath string
}

// GraphSource is the subset of the Graph Store Warmup depends on.
type GraphSource interface {
	MostReferencedEntities(ctx context.Context, limit int) ([]PopularEntity, error)
}

// EmbeddingSource generates an embedding for code/text. Warmup accepts
// one but does not call it.
type EmbeddingSource interface {
	GenerateCodeEmbedding(ctx context.Context, code string) ([]float32, error)
}

// NeighborhoodSource looks up the top-k semantic neighborhood for an
// entity so it can be primed into the cache.
type NeighborhoodSource interface {
	TopKNeighborhood(ctx context.Context, entityID string, k int) ([]SemanticHit, error)
}

// DefaultWarmupCount is spec.md §4.4's "N most-referenced entities".
const DefaultWarmupCount = 20

// Warmup primes cache with the top-k neighborhoods of the N
// most-referenced entities in the Graph Store. The embeddings argument
// is not used: no embedding is generated here, so an entity without a
// stored vector is primed with whatever its neighborhood lookup
// returns. Entities whose neighborhood lookup fails are skipped;
// Warmup fails only when the popular-entity query itself fails.
func Warmup(ctx context.Context, cache *Cache, graph GraphSource, embeddings EmbeddingSource, neighborhoods NeighborhoodSource, count, topK int) (primed int, err error) {
	if count <= 0 {
		count = DefaultWarmupCount
	}
	if topK <= 0 {
		topK = 10
	}

	popular, err := graph.MostReferencedEntities(ctx, count)
	if err != nil {
		return 0, fmt.Errorf("semantic: warmup fetching popular entities: %w", err)
	}

	for _, e := range popular {
		hits, err := neighborhoods.TopKNeighborhood(ctx, e.ID, topK)
		if err != nil {
			continue
		}
		ranked := RerankSemanticHits(hits, nil)
		key := Key(e.Name, map[string]string{"entityId": e.ID})
		cache.Put(key, ranked)
		primed++
	}
	return primed, nil
}
