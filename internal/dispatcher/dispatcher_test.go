//go:build cgo

package dispatcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/governor"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
	"github.com/codegraphrag/codegraphrag-mcp/internal/vectorstore"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	graph, err := graphstore.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("graphstore.Open() error = %v", err)
	}
	t.Cleanup(func() { graph.Close() })

	vectors, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"), 8)
	if err != nil {
		t.Fatalf("vectorstore.Open() error = %v", err)
	}
	t.Cleanup(func() { vectors.Close() })

	b := bus.New(bus.DefaultRingBufferSize, bus.DefaultDirectQueueSize)
	t.Cleanup(b.Stop)

	gov := governor.New(governor.Bounds{MaxConcurrentAgents: 4}, b)
	engine := parserengine.NewEngine(0)
	scanner := parserengine.NewScanner(nil, 0)

	queryAgent := agents.NewQueryAgent("query-1", graph, agents.Capabilities{MaxConcurrency: 4})
	indexerAgent := agents.NewIndexerAgent("indexer-1", scanner, engine, graph, b, agents.Capabilities{MaxConcurrency: 2})
	conductor := agents.NewConductor(queryAgent, indexerAgent)

	return New(conductor, graph, vectors, nil, b, gov, engine, scanner, t.TempDir(), 0)
}

func callTool(ctx context.Context, handler toolHandler, in any) (ToolEnvelope, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return ToolEnvelope{}, err
	}
	result, err := handler(ctx, &protocol.CallToolRequest{RawArguments: raw})
	if err != nil {
		return ToolEnvelope{}, err
	}
	text := result.Content[0].(*protocol.TextContent).Text
	var env ToolEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return ToolEnvelope{}, err
	}
	return env, nil
}

func TestResetGraphRequiresApprovalToken(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.resetGraphHandler, ResetGraphInput{})
	if err != nil {
		t.Fatalf("resetGraphHandler() error = %v", err)
	}
	if env.Success {
		t.Fatal("reset_graph without an approval token should fail")
	}
	if env.ErrorType != string(ErrApprovalRequired) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrApprovalRequired)
	}
}

func TestResetGraphSucceedsWithApprovalToken(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.resetGraphHandler, ResetGraphInput{ApprovalToken: "ok"})
	if err != nil {
		t.Fatalf("resetGraphHandler() error = %v", err)
	}
	if !env.Success {
		t.Fatalf("reset_graph with an approval token should succeed, got error %q", env.Error)
	}
}

func TestGetGraphStatsReportsZeroOnEmptyGraph(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.getGraphStatsHandler, EmptyInput{})
	if err != nil {
		t.Fatalf("getGraphStatsHandler() error = %v", err)
	}
	if !env.Success {
		t.Fatalf("get_graph_stats should succeed, got error %q", env.Error)
	}
	data, _ := env.Data.(map[string]any)
	if data["totalEntities"] != float64(0) {
		t.Fatalf("totalEntities = %v, want 0 on an empty graph", data["totalEntities"])
	}
}

func TestGetVersionReportsBuildInfo(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.getVersionHandler, EmptyInput{})
	if err != nil {
		t.Fatalf("getVersionHandler() error = %v", err)
	}
	if !env.Success {
		t.Fatalf("get_version should always succeed, got error %q", env.Error)
	}
}

func TestClearBusTopicRejectsEmptyTopic(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.clearBusTopicHandler, ClearBusTopicInput{})
	if err != nil {
		t.Fatalf("clearBusTopicHandler() error = %v", err)
	}
	if env.Success {
		t.Fatal("clear_bus_topic with an empty topic should fail validation")
	}
	if env.ErrorType != string(ErrValidation) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrValidation)
	}
}

func TestGetBusStatsReportsPublishedTopic(t *testing.T) {
	d := newTestDispatcher(t)
	d.bus.Publish(bus.Entry{Topic: "parse:complete", Data: "ok"})

	env, err := callTool(context.Background(), d.getBusStatsHandler, EmptyInput{})
	if err != nil {
		t.Fatalf("getBusStatsHandler() error = %v", err)
	}
	if !env.Success {
		t.Fatalf("get_bus_stats should succeed, got error %q", env.Error)
	}
}

func TestGetEntitySourceReturnsNotFoundForUnknownEntity(t *testing.T) {
	d := newTestDispatcher(t)
	env, err := callTool(context.Background(), d.getEntitySourceHandler, GetEntitySourceInput{EntityID: "nope"})
	if err != nil {
		t.Fatalf("getEntitySourceHandler() error = %v", err)
	}
	if env.Success {
		t.Fatal("get_entity_source for an unknown entity should fail")
	}
}
