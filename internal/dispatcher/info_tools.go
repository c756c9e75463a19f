package dispatcher

import (
	"context"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/codegraphrag/codegraphrag-mcp/internal/governor"
	"github.com/codegraphrag/codegraphrag-mcp/pkg/version"
)

func (d *Dispatcher) registerInfoTools(reg registerFunc) error {
	if err := reg("get_graph_stats", getGraphStatsTool(), d.getGraphStatsHandler); err != nil {
		return err
	}
	if err := reg("get_graph_health", getGraphHealthTool(), d.getGraphHealthHandler); err != nil {
		return err
	}
	if err := reg("get_metrics", getMetricsTool(), d.getMetricsHandler); err != nil {
		return err
	}
	if err := reg("get_version", getVersionTool(), d.getVersionHandler); err != nil {
		return err
	}
	return nil
}

// EmptyInput is the shared input shape for parameterless info tools.
type EmptyInput struct{}

func getGraphStatsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_graph_stats", `Report Graph Store aggregate counts.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use for a quick sanity check of how much has been indexed.
`, EmptyInput{})
	return tool
}

func getGraphHealthTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_graph_health", `Report whether the Graph Store and Vector Store are reachable and the Resource Governor's current throttle state.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use for a liveness/readiness check.
`, EmptyInput{})
	return tool
}

func getMetricsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_metrics", `Report the Conductor's aggregate task metrics and the Resource Governor's latest resource sample.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use for monitoring dashboards or debugging throughput.
`, EmptyInput{})
	return tool
}

func getVersionTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_version", `Report the server's build version.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use to confirm which build is running.
`, EmptyInput{})
	return tool
}

func (d *Dispatcher) getGraphStatsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	metrics, err := d.graph.GetMetrics(ctx)
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	vectorCount, err := d.vectors.Count(ctx)
	if err != nil {
		return writeEnvelope(Failure(err))
	}
	return writeEnvelope(Success(map[string]any{
		"totalEntities":      metrics.TotalEntities,
		"totalRelationships": metrics.TotalRelationships,
		"totalFiles":         metrics.TotalFiles,
		"totalVectors":       vectorCount,
	}, nil))
}

func (d *Dispatcher) getGraphHealthHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	graphOK := true
	if _, err := d.graph.GetMetrics(healthCtx); err != nil {
		graphOK = false
	}
	vectorOK := true
	if _, err := d.vectors.Count(healthCtx); err != nil {
		vectorOK = false
	}

	return writeEnvelope(Success(map[string]any{
		"graphStoreReachable":  graphOK,
		"vectorStoreReachable": vectorOK,
		"throttled":            d.governor.Throttled(),
		"uptimeSeconds":        time.Since(d.startedAt).Seconds(),
	}, nil))
}

func (d *Dispatcher) getMetricsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	m := d.conductor.Metrics()
	history := d.governor.History()
	var latest governor.Sample
	if len(history) > 0 {
		latest = history[len(history)-1]
	}
	return writeEnvelope(Success(map[string]any{
		"conductor":      m,
		"latestResource": latest,
		"throttled":      d.governor.Throttled(),
	}, nil))
}

func (d *Dispatcher) getVersionHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return writeEnvelope(Success(map[string]any{
		"version": version.Version,
		"commit":  version.CommitHash,
		"full":    version.Describe(),
	}, nil))
}
