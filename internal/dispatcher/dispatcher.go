package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	mcpserver "github.com/ThinkInAIXYZ/go-mcp/server"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/governor"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
	"github.com/codegraphrag/codegraphrag-mcp/internal/semantic"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
)

// registerFunc matches the teacher's reg(name, tool, handler) closure
// shape (pkg/mcp_tools.ToolManager.RegisterTools), threaded through
// every registerXxxTools group.
type registerFunc func(name string, tool *protocol.Tool, handler toolHandler) error

type toolHandler func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)

// Dispatcher is the Tool Dispatcher: it owns every process-lifetime
// singleton the 24 tools need and registers them with the MCP server.
type Dispatcher struct {
	conductor *agents.Conductor
	graph     *graphstore.Store
	vectors   *vectorstore.Store
	cache     *semantic.Cache
	bus       *bus.Bus
	governor  *governor.Governor
	engine    *parserengine.Engine
	scanner   *parserengine.Scanner

	// cloneThreshold is the minimum similarity score detect_code_clones
	// requires (spec.md §9 Open Question; config.CloneThreshold, default
	// 0.7). suggest_refactoring uses the band [refactorFloor,
	// cloneThreshold) so the two tools surface disjoint result sets.
	cloneThreshold float64

	workspaceRoot string
	startedAt     time.Time
}

// refactorFloor is suggest_refactoring's lower similarity bound: below
// it, two entities aren't similar enough to be worth consolidating.
const refactorFloor = 0.5

// New builds a Dispatcher over the given singletons. cloneThreshold <=
// 0 falls back to config's documented default of 0.7.
func New(conductor *agents.Conductor, graph *graphstore.Store, vectors *vectorstore.Store, cache *semantic.Cache, b *bus.Bus, gov *governor.Governor, engine *parserengine.Engine, scanner *parserengine.Scanner, workspaceRoot string, cloneThreshold float64) *Dispatcher {
	if cloneThreshold <= 0 {
		cloneThreshold = 0.7
	}
	return &Dispatcher{
		conductor:      conductor,
		graph:          graph,
		vectors:        vectors,
		cache:          cache,
		bus:            b,
		governor:       gov,
		engine:         engine,
		scanner:        scanner,
		cloneThreshold: cloneThreshold,
		workspaceRoot:  workspaceRoot,
		startedAt:      time.Now(),
	}
}

// RegisterTools registers all 24 tools with the MCP server, grouped
// Core/Query/Info/Semantic/Ops per spec.md §6 (mirrors the teacher's
// RegisterTools delegating to smaller registerXxxTools groups).
func (d *Dispatcher) RegisterTools(srv *mcpserver.Server) error {
	reg := func(name string, tool *protocol.Tool, handler toolHandler) error {
		if tool == nil {
			return fmt.Errorf("tool %s creation returned nil", name)
		}
		srv.RegisterTool(tool, handler)
		return nil
	}

	if err := d.registerCoreTools(reg); err != nil {
		return err
	}
	if err := d.registerQueryTools(reg); err != nil {
		return err
	}
	if err := d.registerInfoTools(reg); err != nil {
		return err
	}
	if err := d.registerSemanticTools(reg); err != nil {
		return err
	}
	if err := d.registerOpsTools(reg); err != nil {
		return err
	}

	slog.Info("dispatcher: registered all 24 tools")
	return nil
}

// decodeInput unmarshals request.RawArguments into *v, wrapped as a
// validation_error ToolError on failure.
func decodeInput(request *protocol.CallToolRequest, v any) error {
	if err := json.Unmarshal(request.RawArguments, v); err != nil {
		return NewToolError(ErrValidation, "failed to parse arguments", err, nil)
	}
	return nil
}

// writeEnvelope marshals env as the tool's JSON text content. Business
// failures surface inside the envelope (success:false) rather than as
// a transport-level error, per spec.md §9's "recoverable failures
// surface as ToolEnvelope.failure".
func writeEnvelope(env ToolEnvelope) (*protocol.CallToolResult, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: marshaling envelope: %w", err)
	}
	return protocol.NewCallToolResult([]protocol.Content{
		&protocol.TextContent{Type: "text", Text: string(body)},
	}, false), nil
}

// dispatchTask routes a Task through the Conductor and converts its
// outcome to a CallToolResult wrapping a ToolEnvelope.
func (d *Dispatcher) dispatchTask(ctx context.Context, toolName string, task agents.Task) (*protocol.CallToolResult, error) {
	result, err := d.conductor.Dispatch(ctx, toolName, task)
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	return writeEnvelope(Success(result.Data, nil))
}
