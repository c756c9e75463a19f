package dispatcher

import (
	"context"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/internal/semantic"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
)

func (d *Dispatcher) registerSemanticTools(reg registerFunc) error {
	if err := reg("semantic_search", semanticSearchTool(), d.semanticSearchHandler); err != nil {
		return err
	}
	if err := reg("find_similar_code", findSimilarCodeTool(), d.findSimilarCodeHandler); err != nil {
		return err
	}
	if err := reg("analyze_code_impact", analyzeCodeImpactTool(), d.analyzeCodeImpactHandler); err != nil {
		return err
	}
	if err := reg("detect_code_clones", detectCodeClonesTool(), d.detectCodeClonesHandler); err != nil {
		return err
	}
	if err := reg("suggest_refactoring", suggestRefactoringTool(), d.suggestRefactoringHandler); err != nil {
		return err
	}
	if err := reg("cross_language_search", crossLanguageSearchTool(), d.crossLanguageSearchHandler); err != nil {
		return err
	}
	if err := reg("analyze_hotspots", analyzeHotspotsTool(), d.analyzeHotspotsHandler); err != nil {
		return err
	}
	if err := reg("find_related_concepts", findRelatedConceptsTool(), d.findRelatedConceptsHandler); err != nil {
		return err
	}
	return nil
}

// SemanticSearchInput is the input shape for semantic_search and
// cross_language_search.
type SemanticSearchInput struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Path     string `json:"path,omitempty"`
	Type     string `json:"type,omitempty"`
	Language string `json:"language,omitempty"`
}

// EntitySimilarityInput is the input shape for find_similar_code,
// detect_code_clones, and suggest_refactoring.
type EntitySimilarityInput struct {
	EntityID string `json:"entityId"`
	Limit    int    `json:"limit,omitempty"`
}

// AnalyzeCodeImpactInput is the input shape for analyze_code_impact.
type AnalyzeCodeImpactInput struct {
	EntityID string `json:"entityId"`
	Depth    int    `json:"depth,omitempty"`
}

// AnalyzeHotspotsInput is the input shape for analyze_hotspots.
type AnalyzeHotspotsInput struct {
	Limit int `json:"limit,omitempty"`
}

// FindRelatedConceptsInput is the input shape for
// find_related_concepts.
type FindRelatedConceptsInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

func semanticSearchTool() *protocol.Tool {
	tool, _ := protocol.NewTool("semantic_search", `Search the Vector Store by conceptual similarity.

Explanation: Embeds the query and returns the closest entities by semantic score; no structural boost is applied (the query tool combines structural and semantic results).

When to call: Use when the answer may not share exact wording with the query (e.g. "retry with backoff" finding a function named differently).

Example arguments/values:
	query: "retry with exponential backoff"
	limit: 10
`, SemanticSearchInput{})
	return tool
}

func findSimilarCodeTool() *protocol.Tool {
	tool, _ := protocol.NewTool("find_similar_code", `Find entities whose embedding is closest to a given entity's own.

Explanation: Looks up the reference entity's stored vector and searches its nearest neighbors, excluding itself.

When to call: Use when you have a specific entity and want similar implementations elsewhere.

Example arguments/values:
	entityId: "internal/graphstore/store.go:function:Open"
	limit: 5
`, EntitySimilarityInput{})
	return tool
}

func analyzeCodeImpactTool() *protocol.Tool {
	tool, _ := protocol.NewTool("analyze_code_impact", `Compute direct and transitive dependents plus outbound dependencies of an entity.

Explanation: Wraps the Graph Store's Impact traversal (BFS with a visited set to prevent cycles).

When to call: Use before changing an entity, to see what would be affected.

Example arguments/values:
	entityId: "internal/graphstore/store.go:function:Open"
	depth: 2
`, AnalyzeCodeImpactInput{})
	return tool
}

func detectCodeClonesTool() *protocol.Tool {
	tool, _ := protocol.NewTool("detect_code_clones", `Find near-duplicate implementations of an entity by embedding similarity.

Explanation: Same nearest-neighbor search as find_similar_code, but only hits scoring at or above the configured clone threshold (config.CloneThreshold, default 0.7) survive — everything less similar is dropped rather than left for the caller to filter.

When to call: Use when hunting for copy-pasted or duplicated logic.

Example arguments/values:
	entityId: "internal/graphstore/store.go:function:Open"
	limit: 10
`, EntitySimilarityInput{})
	return tool
}

func suggestRefactoringTool() *protocol.Tool {
	tool, _ := protocol.NewTool("suggest_refactoring", `Surface entities semantically close to a given one as refactoring candidates.

Explanation: Same nearest-neighbor mechanism as find_similar_code, but banded below the clone threshold: similar enough to be worth consolidating into a shared abstraction, not so similar that detect_code_clones would already have flagged it as a near-duplicate.

When to call: Use when considering whether to extract a shared helper from related-but-not-identical code.

Example arguments/values:
	entityId: "internal/graphstore/store.go:function:Open"
	limit: 10
`, EntitySimilarityInput{})
	return tool
}

func crossLanguageSearchTool() *protocol.Tool {
	tool, _ := protocol.NewTool("cross_language_search", `Semantic search unconstrained by source language.

Explanation: Same ranking as semantic_search; the embedding space is language-agnostic so results may span multiple languages in a polyglot workspace.

When to call: Use in a multi-language codebase when you want matches regardless of implementation language.

Example arguments/values:
	query: "parse a JSON config file"
	limit: 10
`, SemanticSearchInput{})
	return tool
}

func analyzeHotspotsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("analyze_hotspots", `List the most-referenced entities in the Graph Store.

Explanation: Ranks entities by inbound relationship count; the same ranking the Semantic Cache's warmup pass uses to decide which neighborhoods to prime.

When to call: Use to find the highest-leverage (and highest-risk) code in the workspace.

Example arguments/values:
	limit: 20
`, AnalyzeHotspotsInput{})
	return tool
}

func findRelatedConceptsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("find_related_concepts", `Combine semantic search with a structural neighborhood expansion of its top hit.

Explanation: Runs semantic_search, then traverses the Graph Store neighborhood of the best-scoring hit so structurally adjacent entities are surfaced alongside conceptually similar ones.

When to call: Use for open-ended exploration ("what else is involved in X") rather than a precise lookup.

Example arguments/values:
	query: "authentication middleware"
	limit: 10
	depth: 1
`, FindRelatedConceptsInput{})
	return tool
}

func (d *Dispatcher) semanticSearchHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in SemanticSearchInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "semantic_search", agents.Task{
		Kind:    agents.TaskSearch,
		Payload: searchPayloadFrom(in),
	})
}

func (d *Dispatcher) crossLanguageSearchHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in SemanticSearchInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "cross_language_search", agents.Task{
		Kind:    agents.TaskCrossLanguageSearch,
		Payload: searchPayloadFrom(in),
	})
}

func searchPayloadFrom(in SemanticSearchInput) agents.SearchPayload {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	var filter *vectorstore.Filter
	if in.Path != "" || in.Type != "" || in.Language != "" {
		filter = &vectorstore.Filter{Path: in.Path, Type: in.Type, Language: in.Language}
	}
	return agents.SearchPayload{
		Query:        in.Query,
		Limit:        limit,
		Filter:       filter,
		CacheFilters: map[string]string{"path": in.Path, "type": in.Type, "language": in.Language},
	}
}

func (d *Dispatcher) findSimilarCodeHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in EntitySimilarityInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "find_similar_code", agents.Task{
		Kind:    agents.TaskAnalyze,
		Payload: agents.AnalyzePayload{EntityID: in.EntityID, Limit: in.Limit},
	})
}

func (d *Dispatcher) detectCodeClonesHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in EntitySimilarityInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "detect_code_clones", agents.Task{
		Kind:    agents.TaskCloneDetect,
		Payload: agents.AnalyzePayload{EntityID: in.EntityID, Limit: in.Limit, MinScore: d.cloneThreshold},
	})
}

func (d *Dispatcher) suggestRefactoringHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in EntitySimilarityInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "suggest_refactoring", agents.Task{
		Kind:    agents.TaskRefactor,
		Payload: agents.AnalyzePayload{EntityID: in.EntityID, Limit: in.Limit, MinScore: refactorFloor, MaxScore: d.cloneThreshold},
	})
}

func (d *Dispatcher) analyzeCodeImpactHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in AnalyzeCodeImpactInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	depth := in.Depth
	if depth <= 0 {
		depth = 1
	}
	return d.dispatchTask(ctx, "analyze_code_impact", agents.Task{
		Kind:    agents.TaskQueryImpact,
		Payload: agents.ImpactPayload{Root: in.EntityID, Depth: depth},
	})
}

func (d *Dispatcher) analyzeHotspotsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in AnalyzeHotspotsInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	return d.dispatchTask(ctx, "analyze_hotspots", agents.Task{
		Kind:    agents.TaskQueryHotspots,
		Payload: agents.HotspotsPayload{Limit: in.Limit},
	})
}

func (d *Dispatcher) findRelatedConceptsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in FindRelatedConceptsInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	depth := in.Depth
	if depth <= 0 {
		depth = 1
	}

	searchRes, err := d.conductor.Dispatch(ctx, "find_related_concepts", agents.Task{
		Kind:    agents.TaskSearch,
		Payload: agents.SearchPayload{Query: in.Query, Limit: limit},
	})
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	hits, _ := searchRes.Data.([]semantic.RankedHit)

	result := map[string]any{"semanticHits": searchRes.Data}
	if len(hits) > 0 {
		neighborhoodRes, err := d.conductor.Dispatch(ctx, "find_related_concepts", agents.Task{
			Kind:    agents.TaskQueryNeighborhood,
			Payload: agents.NeighborhoodPayload{Root: hits[0].EntityID, Depth: depth},
		})
		if err == nil {
			result["neighborhood"] = neighborhoodRes.Data
		}
	}
	return writeEnvelope(Success(result, nil))
}
