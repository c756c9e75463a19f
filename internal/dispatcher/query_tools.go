package dispatcher

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// decodeCursorOrWarn decodes token, treating a malformed cursor as
// start-of-stream rather than a hard failure (spec.md §4.2: "query
// cursors that fail to decode are treated as start-of-stream with a
// warning"). The returned warning is empty when token decoded cleanly.
func decodeCursorOrWarn(token string) (Cursor, string) {
	cur, err := DecodeCursor(token)
	if err != nil {
		return Cursor{}, fmt.Sprintf("invalid cursor, restarting from offset 0: %v", err)
	}
	return cur, ""
}

func (d *Dispatcher) registerQueryTools(reg registerFunc) error {
	if err := reg("list_file_entities", listFileEntitiesTool(), d.listFileEntitiesHandler); err != nil {
		return err
	}
	if err := reg("list_entity_relationships", listEntityRelationshipsTool(), d.listEntityRelationshipsHandler); err != nil {
		return err
	}
	if err := reg("resolve_entity", resolveEntityTool(), d.resolveEntityHandler); err != nil {
		return err
	}
	if err := reg("get_entity_source", getEntitySourceTool(), d.getEntitySourceHandler); err != nil {
		return err
	}
	if err := reg("query", queryTool(), d.queryHandler); err != nil {
		return err
	}
	if err := reg("get_graph", getGraphTool(), d.getGraphHandler); err != nil {
		return err
	}
	return nil
}

// ListFileEntitiesInput is the input shape for list_file_entities.
type ListFileEntitiesInput struct {
	FilePath string `json:"filePath"`
	PageSize int    `json:"pageSize,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
}

// ListEntityRelationshipsInput is the input shape for
// list_entity_relationships.
type ListEntityRelationshipsInput struct {
	Root     string   `json:"root"`
	Depth    int      `json:"depth,omitempty"`
	RelTypes []string `json:"relTypes,omitempty"`
}

// ResolveEntityInput is the input shape for resolve_entity.
type ResolveEntityInput struct {
	Name         string `json:"name"`
	FilePathHint string `json:"filePathHint,omitempty"`
	TopK         int    `json:"topK,omitempty"`
}

// GetEntitySourceInput is the input shape for get_entity_source.
type GetEntitySourceInput struct {
	EntityID string `json:"entityId"`
}

// QueryInput is the input shape for the merged query tool.
type QueryInput struct {
	Text     string   `json:"text"`
	FilePath string   `json:"filePath,omitempty"`
	PageSize int      `json:"pageSize,omitempty"`
	Cursor   string   `json:"cursor,omitempty"`
	Filter   []string `json:"entityTypes,omitempty"`
}

// GetGraphInput is the input shape for get_graph.
type GetGraphInput struct {
	PageSize int    `json:"pageSize,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
}

func listFileEntitiesTool() *protocol.Tool {
	tool, _ := protocol.NewTool("list_file_entities", `List every entity the Graph Store holds for a file.

Explanation: Cursor-paginated; returns entities ordered (filePath asc, location.start.line asc).

When to call: Use when you need the structural outline of a single file.

Example arguments/values:
	filePath: "internal/graphstore/store.go"
	pageSize: 50
`, ListFileEntitiesInput{})
	return tool
}

func listEntityRelationshipsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("list_entity_relationships", `Traverse relationships from a root entity (BFS, bounded depth).

Explanation: Wraps the Graph Store's Neighborhood traversal; deduplicates edges and returns the visited node set alongside them.

When to call: Use to explore what an entity calls, imports, or is referenced by.

Example arguments/values:
	root: "internal/graphstore/store.go:function:Open"
	depth: 2
	relTypes: ["calls", "references"]
`, ListEntityRelationshipsInput{})
	return tool
}

func resolveEntityTool() *protocol.Tool {
	tool, _ := protocol.NewTool("resolve_entity", `Resolve a name to its best-matching entity candidates.

Explanation: Scoring ranker combining exact/substring name match, file-path hint, and same-directory boosts.

When to call: Use when you have a symbol name (possibly ambiguous) and need its entity id(s).

Example arguments/values:
	name: "Open"
	filePathHint: "internal/graphstore"
	topK: 5
`, ResolveEntityInput{})
	return tool
}

func getEntitySourceTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_entity_source", `Fetch the source text an entity was extracted from.

Explanation: Reads the entity's file on disk and returns the byte range spanned by its location.

When to call: Use when you need the literal code body for an entity, not just its metadata.

Example arguments/values:
	entityId: "internal/graphstore/store.go:function:Open"
`, GetEntitySourceInput{})
	return tool
}

func queryTool() *protocol.Tool {
	tool, _ := protocol.NewTool("query", `Run a merged structural + semantic search.

Explanation: Returns {semantic:{items}, structural:{items,nextCursor,stats}}; only the structural half is paginated, and items carry no matchType annotation.

When to call: Use as the default broad search when you don't know whether the answer lives in exact names or in conceptual similarity.

Example arguments/values:
	text: "parse content hash cache"
	pageSize: 20
`, QueryInput{})
	return tool
}

func getGraphTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_graph", `Dump a page of the Graph Store's raw entity/relationship tables.

Explanation: Cursor-paginated whole-graph export, ordered (filePath asc, location.start.line asc).

When to call: Use for bulk export/visualization, not for targeted lookups (prefer query or resolve_entity for those).

Example arguments/values:
	pageSize: 200
`, GetGraphInput{})
	return tool
}

func (d *Dispatcher) listFileEntitiesHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ListFileEntitiesInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	cur, cursorWarning := decodeCursorOrWarn(in.Cursor)
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	q := graphstore.Query{
		Type:    graphstore.QueryTypeEntity,
		Filters: graphstore.Filters{FilePaths: []string{in.FilePath}},
		Limit:   pageSize,
		Offset:  cur.Offset,
	}
	res, err := d.conductor.Dispatch(ctx, "list_file_entities", agents.Task{Kind: agents.TaskQueryExecute, Payload: q})
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	qr := res.Data.(graphstore.QueryResult)

	var next string
	if cur.Offset+len(qr.Entities) < qr.Stats.Matched {
		next, _ = EncodeCursor(Cursor{Offset: cur.Offset + len(qr.Entities)})
	}
	var warnings []string
	if cursorWarning != "" {
		warnings = append(warnings, cursorWarning)
	}
	return writeEnvelope(Success(map[string]any{"items": qr.Entities, "nextCursor": next, "stats": qr.Stats}, nil, warnings...))
}

func (d *Dispatcher) listEntityRelationshipsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ListEntityRelationshipsInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	depth := in.Depth
	if depth <= 0 {
		depth = 1
	}
	relTypes := make([]parserengine.RelationshipType, len(in.RelTypes))
	for i, t := range in.RelTypes {
		relTypes[i] = parserengine.RelationshipType(t)
	}

	return d.dispatchTask(ctx, "list_entity_relationships", agents.Task{
		Kind: agents.TaskQueryNeighborhood,
		Payload: agents.NeighborhoodPayload{
			Root:     in.Root,
			Depth:    depth,
			RelTypes: relTypes,
		},
	})
}

func (d *Dispatcher) resolveEntityHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ResolveEntityInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	topK := in.TopK
	if topK <= 0 {
		topK = 10
	}
	return d.dispatchTask(ctx, "resolve_entity", agents.Task{
		Kind: agents.TaskQueryResolve,
		Payload: agents.ResolvePayload{
			Name:         in.Name,
			FilePathHint: in.FilePathHint,
			TopK:         topK,
		},
	})
}

func (d *Dispatcher) getEntitySourceHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in GetEntitySourceInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}

	res, err := d.conductor.Dispatch(ctx, "get_entity_source", agents.Task{
		Kind:    agents.TaskQueryGetEntity,
		Payload: agents.RelationshipsForEntityPayload{EntityID: in.EntityID},
	})
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	entity := res.Data.(parserengine.Entity)

	source, err := readEntitySource(entity)
	if err != nil {
		return writeEnvelope(Failure(NewToolError(ErrNotFound, "could not read entity source", err, nil)))
	}
	return writeEnvelope(Success(map[string]any{"entity": entity, "source": source}, nil))
}

func readEntitySource(entity parserengine.Entity) (string, error) {
	content, err := os.ReadFile(entity.FilePath)
	if err != nil {
		return "", err
	}
	return parserengine.EntitySource(content, entity), nil
}

func (d *Dispatcher) queryHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in QueryInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	cur, cursorWarning := decodeCursorOrWarn(in.Cursor)
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	namePattern, _ := regexp.Compile("(?i)" + regexp.QuoteMeta(in.Text))
	structuralRes, structErr := d.conductor.Dispatch(ctx, "query", agents.Task{
		Kind: agents.TaskQueryExecute,
		Payload: graphstore.Query{
			Type:    graphstore.QueryTypeEntity,
			Filters: graphstore.Filters{NamePattern: namePattern, EntityTypes: in.Filter},
			Limit:   pageSize,
			Offset:  cur.Offset,
		},
	})

	var structural map[string]any
	structuralFiles := map[string]bool{}
	if structErr == nil {
		qr := structuralRes.Data.(graphstore.QueryResult)
		for _, e := range qr.Entities {
			structuralFiles[e.FilePath] = true
		}
		var next string
		if cur.Offset+len(qr.Entities) < qr.Stats.Matched {
			next, _ = EncodeCursor(Cursor{Offset: cur.Offset + len(qr.Entities), Query: in.Text})
		}
		structural = map[string]any{"items": qr.Entities, "nextCursor": next, "stats": qr.Stats}
	} else {
		structural = map[string]any{"items": []any{}, "stats": graphstore.QueryStats{}}
	}

	semanticRes, semErr := d.conductor.Dispatch(ctx, "query", agents.Task{
		Kind: agents.TaskSearch,
		Payload: agents.SearchPayload{
			Query:           in.Text,
			Limit:           pageSize,
			StructuralFiles: structuralFiles,
			CacheFilters:    map[string]string{"filePath": in.FilePath},
		},
	})
	var semanticResult map[string]any
	if semErr == nil {
		semanticResult = map[string]any{"items": semanticRes.Data}
	} else {
		semanticResult = map[string]any{"items": []any{}}
	}

	warnings := []string{}
	if cursorWarning != "" {
		warnings = append(warnings, cursorWarning)
	}
	if structErr != nil {
		warnings = append(warnings, "structural query failed: "+structErr.Error())
	}
	if semErr != nil {
		warnings = append(warnings, "semantic query failed: "+semErr.Error())
	}

	return writeEnvelope(Success(map[string]any{
		"semantic":   semanticResult,
		"structural": structural,
	}, nil, warnings...))
}

func (d *Dispatcher) getGraphHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in GetGraphInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	cur, cursorWarning := decodeCursorOrWarn(in.Cursor)
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	res, err := d.conductor.Dispatch(ctx, "get_graph", agents.Task{
		Kind:    agents.TaskQueryExecute,
		Payload: graphstore.Query{Type: graphstore.QueryTypeEntity, Limit: pageSize, Offset: cur.Offset},
	})
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	qr := res.Data.(graphstore.QueryResult)

	var next string
	if cur.Offset+len(qr.Entities) < qr.Stats.Matched {
		next, _ = EncodeCursor(Cursor{Offset: cur.Offset + len(qr.Entities)})
	}
	var warnings []string
	if cursorWarning != "" {
		warnings = append(warnings, cursorWarning)
	}
	return writeEnvelope(Success(map[string]any{"items": qr.Entities, "nextCursor": next, "stats": qr.Stats}, nil, warnings...))
}
