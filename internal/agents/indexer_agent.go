package agents

import (
	"context"
	"fmt"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
)

// TaskIndex is the Indexer/Dev Agent's task kind (spec.md §4.7).
const TaskIndex = "index"

// IndexPayload is the Payload shape for TaskIndex.
type IndexPayload struct {
	RootPath string
}

// IndexStats is the Indexer Agent's report shape:
// {filesProcessed, entitiesIndexed, relationshipsCreated}.
type IndexStats struct {
	FilesProcessed       int
	EntitiesIndexed      int
	RelationshipsCreated int
	Errors               []string

	// EmbedTargets accumulates one entry per entity upserted from a
	// created/modified file, the "new/changed entity ids" spec.md §4.3
	// requires the Semantic Agent to re-embed on index:complete. Excluded
	// from the index tool's JSON response (json:"-") since it carries
	// full entity source text, meant for the bus subscriber that queues
	// embed tasks, not for the caller.
	EmbedTargets []EmbedTarget `json:"-"`
}

// EmbedTarget is one entity queued for re-embedding after an index
// pass, carrying the source text and vector-store metadata handleEmbed
// needs without re-reading the file from disk.
type EmbedTarget struct {
	EntityID string
	Code     string
	Metadata vectorstore.Metadata
}

// NewIndexerAgent wraps a Scanner + parserengine.Engine + graphstore.Store
// as the Indexer/Dev Agent: it walks the workspace applying exclusion
// patterns, parses each discovered file, and upserts the resulting
// entities/relationships (spec.md §4.7).
func NewIndexerAgent(id string, scanner *parserengine.Scanner, engine *parserengine.Engine, graph *graphstore.Store, b *bus.Bus, caps Capabilities) *BaseAgent {
	canHandle := func(t Task) bool { return t.Kind == TaskIndex }

	handle := func(ctx context.Context, t Task) (Result, error) {
		p, ok := t.Payload.(IndexPayload)
		if !ok {
			return Result{}, fmt.Errorf("indexer agent: unexpected payload for index")
		}

		scanResult, err := scanner.Scan(p.RootPath)
		if err != nil {
			return Result{}, fmt.Errorf("indexer agent: scanning %s: %w", p.RootPath, err)
		}

		stats := IndexStats{}
		for _, change := range scanResult.Changes {
			select {
			case <-ctx.Done():
				return Result{Data: stats}, ctx.Err()
			default:
			}
			ApplyChange(ctx, engine, graph, change, &stats)
		}

		if b != nil {
			b.Publish(bus.Entry{Topic: "index:complete", Data: stats})
		}
		return Result{Data: stats}, nil
	}

	return NewBaseAgent(id, "indexer", caps, canHandle, handle)
}

// ApplyChange parses a single FileChange and upserts its entities and
// relationships into graph, accumulating onto stats. A deleted file has
// its entities (and their relationships) removed from graph. Shared by the
// Indexer Agent's bulk TaskIndex pass and the file watcher's
// one-change-at-a-time path in cmd/codegraphrag.
func ApplyChange(ctx context.Context, engine *parserengine.Engine, graph *graphstore.Store, change parserengine.FileChange, stats *IndexStats) {
	parseResult, err := engine.ApplyFileChange(ctx, change)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", change.FilePath, err))
		return
	}

	if change.Kind == parserengine.FileDeleted {
		if _, err := graph.DeleteByFile(ctx, change.FilePath); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: delete entities: %v", change.FilePath, err))
			return
		}
	}

	if len(parseResult.Entities) > 0 {
		upserted, err := graph.UpsertEntities(ctx, parseResult.Entities)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: upsert entities: %v", change.FilePath, err))
			return
		}
		stats.EntitiesIndexed += upserted.Inserted + upserted.Updated

		for _, e := range parseResult.Entities {
			if e.Type == "file" || e.Type == "import" {
				continue
			}
			code := parserengine.EntitySource(change.Content, e)
			if code == "" {
				continue
			}
			stats.EmbedTargets = append(stats.EmbedTargets, EmbedTarget{
				EntityID: e.ID,
				Code:     code,
				Metadata: vectorstore.Metadata{
					Path:     e.FilePath,
					Type:     e.Type,
					Name:     e.Name,
					Language: entityLanguage(e),
				},
			})
		}
	}
	if len(parseResult.Relationships) > 0 {
		if err := graph.UpsertRelationships(ctx, parseResult.Relationships); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: upsert relationships: %v", change.FilePath, err))
			return
		}
		stats.RelationshipsCreated += len(parseResult.Relationships)
	}
	stats.FilesProcessed++
}

// entityLanguage reads the "language" metadata toEntity attaches to
// every parsed entity (parserengine/engine.go's toEntity).
func entityLanguage(e parserengine.Entity) string {
	if lang, ok := e.Metadata["language"].(string); ok {
		return lang
	}
	return ""
}
