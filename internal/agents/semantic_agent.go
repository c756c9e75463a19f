package agents

import (
	"context"
	"fmt"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/semantic"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
	"github.com/codegraphrag/codegraphrag-mcp/pkg/embedder"
)

// Semantic Agent task kinds (spec.md §4.7).
const (
	TaskEmbed               = "embed"
	TaskSearch              = "search"
	TaskAnalyze             = "analyze"
	TaskCloneDetect         = "clone_detect"
	TaskRefactor            = "refactor"
	TaskCrossLanguageSearch = "cross_language_search"
)

// EmbedPayload is the Payload shape for TaskEmbed.
type EmbedPayload struct {
	EntityID string
	Code     string
	Metadata vectorstore.Metadata
}

// SearchPayload is the Payload shape for TaskSearch and
// TaskCrossLanguageSearch: the query text, the raw vector search's
// limit/filter, and the structural file set for rerankSemanticHits's
// boost.
type SearchPayload struct {
	Query           string
	Limit           int
	Filter          *vectorstore.Filter
	StructuralFiles map[string]bool
	CacheFilters    map[string]string
}

// AnalyzePayload is the Payload shape for TaskAnalyze, TaskCloneDetect,
// and TaskRefactor: find entities semantically similar to a reference
// entity's own embedding. MinScore/MaxScore band the three tools apart
// (0 means unbounded): find_similar_code leaves both unset,
// detect_code_clones sets MinScore to the configured clone threshold,
// suggest_refactoring bands between the refactor floor and that same
// threshold so it surfaces near-misses without duplicating
// detect_code_clones's hits.
type AnalyzePayload struct {
	EntityID string
	Limit    int
	Filter   *vectorstore.Filter
	MinScore float64
	MaxScore float64
}

// NewSemanticAgent wraps an embedder.Generator, vectorstore.Store, and
// semantic.Cache as the Semantic Agent: it backfills embeddings and
// serves hybrid searches (spec.md §4.7).
func NewSemanticAgent(id string, gen *embedder.Generator, vectors *vectorstore.Store, cache *semantic.Cache, b *bus.Bus, caps Capabilities) *BaseAgent {
	canHandle := func(t Task) bool {
		switch t.Kind {
		case TaskEmbed, TaskSearch, TaskAnalyze, TaskCloneDetect, TaskRefactor, TaskCrossLanguageSearch:
			return true
		default:
			return false
		}
	}

	handle := func(ctx context.Context, t Task) (Result, error) {
		switch t.Kind {
		case TaskEmbed:
			p, ok := t.Payload.(EmbedPayload)
			if !ok {
				return Result{}, fmt.Errorf("semantic agent: unexpected payload for embed")
			}
			return handleEmbed(ctx, gen, vectors, b, p)

		case TaskSearch, TaskCrossLanguageSearch:
			p, ok := t.Payload.(SearchPayload)
			if !ok {
				return Result{}, fmt.Errorf("semantic agent: unexpected payload for %s", t.Kind)
			}
			return handleSearch(ctx, gen, vectors, cache, p)

		case TaskAnalyze, TaskCloneDetect:
			p, ok := t.Payload.(AnalyzePayload)
			if !ok {
				return Result{}, fmt.Errorf("semantic agent: unexpected payload for %s", t.Kind)
			}
			return handleAnalyze(ctx, vectors, p)

		case TaskRefactor:
			p, ok := t.Payload.(AnalyzePayload)
			if !ok {
				return Result{}, fmt.Errorf("semantic agent: unexpected payload for refactor")
			}
			return handleAnalyze(ctx, vectors, p)

		default:
			return Result{}, fmt.Errorf("semantic agent: unsupported task kind %q", t.Kind)
		}
	}

	return NewBaseAgent(id, "semantic", caps, canHandle, handle)
}

func handleEmbed(ctx context.Context, gen *embedder.Generator, vectors *vectorstore.Store, b *bus.Bus, p EmbedPayload) (Result, error) {
	vec, err := gen.GenerateCodeEmbedding(ctx, p.Code)
	if err != nil {
		if b != nil {
			b.Publish(bus.Entry{Topic: "embedding:retry", Data: map[string]any{"entityId": p.EntityID, "error": err.Error()}})
		}
		return Result{}, fmt.Errorf("semantic agent: embedding_unavailable: %w", err)
	}
	if err := vectors.Update(ctx, p.EntityID, vec, p.Metadata); err != nil {
		return Result{}, err
	}
	return Result{Data: vec}, nil
}

func handleSearch(ctx context.Context, gen *embedder.Generator, vectors *vectorstore.Store, cache *semantic.Cache, p SearchPayload) (Result, error) {
	var key string
	if cache != nil {
		key = semantic.Key(p.Query, p.CacheFilters)
		if hits, ok := cache.Get(key); ok {
			return Result{Data: hits}, nil
		}
	}

	queryVec, err := gen.GenerateCodeEmbedding(ctx, p.Query)
	if err != nil {
		return Result{}, fmt.Errorf("semantic agent: embedding_unavailable: %w", err)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	rawHits, err := vectors.Search(ctx, queryVec, limit, p.Filter)
	if err != nil {
		return Result{}, err
	}

	semHits := make([]semantic.SemanticHit, len(rawHits))
	for i, h := range rawHits {
		semHits[i] = semantic.SemanticHit{
			EntityID: h.EntityID,
			Path:     h.Metadata.Path,
			Score:    h.Score,
			Metadata: map[string]string{
				"type":     h.Metadata.Type,
				"name":     h.Metadata.Name,
				"language": h.Metadata.Language,
			},
		}
	}
	ranked := semantic.RerankSemanticHits(semHits, p.StructuralFiles)

	if cache != nil {
		cache.Put(key, ranked)
	}
	return Result{Data: ranked}, nil
}

// handleAnalyze serves analyze/clone_detect/refactor: it looks up the
// reference entity's own stored vector and searches for its nearest
// neighbors, filtering the entity itself out of the result set.
func handleAnalyze(ctx context.Context, vectors *vectorstore.Store, p AnalyzePayload) (Result, error) {
	vec, _, found, err := vectors.GetVector(ctx, p.EntityID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, fmt.Errorf("semantic agent: entity %q has no stored embedding", p.EntityID)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	hits, err := vectors.Search(ctx, vec, limit+1, p.Filter)
	if err != nil {
		return Result{}, err
	}

	filtered := make([]vectorstore.Hit, 0, len(hits))
	for _, h := range hits {
		if h.EntityID == p.EntityID {
			continue
		}
		if p.MinScore > 0 && h.Score < p.MinScore {
			continue
		}
		if p.MaxScore > 0 && h.Score >= p.MaxScore {
			continue
		}
		filtered = append(filtered, h)
		if len(filtered) >= limit {
			break
		}
	}
	return Result{Data: filtered}, nil
}
