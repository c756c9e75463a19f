package agents

import (
	"context"
	"fmt"

	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// Query Agent task kinds (spec.md §4.7: "accepts structural tools").
const (
	TaskQueryExecute                = "query:execute"
	TaskQueryNeighborhood           = "query:neighborhood"
	TaskQueryImpact                 = "query:impact"
	TaskQueryResolve                = "query:resolve"
	TaskQueryRelationshipsForEntity = "query:relationships_for_entity"
	TaskQueryMetrics                = "query:metrics"
	TaskQueryGetEntity              = "query:get_entity"
	TaskQueryHotspots               = "query:hotspots"
)

// HotspotsPayload is the Payload shape for TaskQueryHotspots.
type HotspotsPayload struct {
	Limit int
}

// NeighborhoodPayload is the Payload shape for TaskQueryNeighborhood.
type NeighborhoodPayload struct {
	Root     string
	Depth    int
	RelTypes []parserengine.RelationshipType
}

// ImpactPayload is the Payload shape for TaskQueryImpact.
type ImpactPayload struct {
	Root  string
	Depth int
}

// ResolvePayload is the Payload shape for TaskQueryResolve.
type ResolvePayload struct {
	Name         string
	FilePathHint string
	TopK         int
}

// RelationshipsForEntityPayload is the Payload shape for
// TaskQueryRelationshipsForEntity and TaskQueryGetEntity.
type RelationshipsForEntityPayload struct {
	EntityID string
}

// NewQueryAgent wraps a graphstore.Store as the Query Agent: it
// orchestrates Graph Store queries and traversals (spec.md §4.7).
func NewQueryAgent(id string, graph *graphstore.Store, caps Capabilities) *BaseAgent {
	canHandle := func(t Task) bool {
		switch t.Kind {
		case TaskQueryExecute, TaskQueryNeighborhood, TaskQueryImpact, TaskQueryResolve,
			TaskQueryRelationshipsForEntity, TaskQueryMetrics, TaskQueryGetEntity, TaskQueryHotspots:
			return true
		default:
			return false
		}
	}

	handle := func(ctx context.Context, t Task) (Result, error) {
		switch t.Kind {
		case TaskQueryExecute:
			q, ok := t.Payload.(graphstore.Query)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:execute")
			}
			res, err := graph.ExecuteQuery(ctx, q)
			return asResult(res, err)

		case TaskQueryNeighborhood:
			p, ok := t.Payload.(NeighborhoodPayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:neighborhood")
			}
			res, err := graph.Neighborhood(ctx, p.Root, p.Depth, p.RelTypes)
			return asResult(res, err)

		case TaskQueryImpact:
			p, ok := t.Payload.(ImpactPayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:impact")
			}
			res, err := graph.Impact(ctx, p.Root, p.Depth)
			return asResult(res, err)

		case TaskQueryResolve:
			p, ok := t.Payload.(ResolvePayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:resolve")
			}
			res, err := graph.Resolve(ctx, p.Name, p.FilePathHint, p.TopK)
			return asResult(res, err)

		case TaskQueryRelationshipsForEntity:
			p, ok := t.Payload.(RelationshipsForEntityPayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:relationships_for_entity")
			}
			res, err := graph.GetRelationshipsForEntity(ctx, p.EntityID)
			return asResult(res, err)

		case TaskQueryMetrics:
			res, err := graph.GetMetrics(ctx)
			return asResult(res, err)

		case TaskQueryGetEntity:
			p, ok := t.Payload.(RelationshipsForEntityPayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:get_entity")
			}
			entity, found, err := graph.GetEntity(ctx, p.EntityID)
			if err != nil {
				return Result{}, err
			}
			if !found {
				return Result{}, fmt.Errorf("query agent: entity %q not found", p.EntityID)
			}
			return Result{Data: entity}, nil

		case TaskQueryHotspots:
			p, ok := t.Payload.(HotspotsPayload)
			if !ok {
				return Result{}, fmt.Errorf("query agent: unexpected payload for query:hotspots")
			}
			limit := p.Limit
			if limit <= 0 {
				limit = 20
			}
			res, err := graph.MostReferencedEntities(ctx, limit)
			return asResult(res, err)

		default:
			return Result{}, fmt.Errorf("query agent: unsupported task kind %q", t.Kind)
		}
	}

	return NewBaseAgent(id, "query", caps, canHandle, handle)
}

func asResult(data any, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	return Result{Data: data}, nil
}
