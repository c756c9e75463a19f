package dispatcher

import (
	"context"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
)

func (d *Dispatcher) registerOpsTools(reg registerFunc) error {
	if err := reg("get_agent_metrics", getAgentMetricsTool(), d.getAgentMetricsHandler); err != nil {
		return err
	}
	if err := reg("get_bus_stats", getBusStatsTool(), d.getBusStatsHandler); err != nil {
		return err
	}
	if err := reg("clear_bus_topic", clearBusTopicTool(), d.clearBusTopicHandler); err != nil {
		return err
	}
	return nil
}

// ClearBusTopicInput is the input shape for clear_bus_topic.
type ClearBusTopicInput struct {
	Topic string `json:"topic"`
}

func getAgentMetricsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_agent_metrics", `Report every registered agent's id, type, status, and concurrency capabilities.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use to see which agents are idle/busy, or to confirm an agent's max concurrency before tuning workload.
`, EmptyInput{})
	return tool
}

func getBusStatsTool() *protocol.Tool {
	tool, _ := protocol.NewTool("get_bus_stats", `Report per-topic live entry counts and the direct-message queue depth on the Knowledge Bus.

Explanation: Trivial read; bypasses agent orchestration.

When to call: Use to check whether a topic's ring buffer is backing up or a subscriber has stopped draining the direct queue.
`, EmptyInput{})
	return tool
}

func clearBusTopicTool() *protocol.Tool {
	tool, _ := protocol.NewTool("clear_bus_topic", `Discard every buffered entry for a Knowledge Bus topic.

Explanation: Only empties the topic's replay buffer; subscribers stay registered and keep receiving new publishes.

When to call: Use to drop stale entries (e.g. after a burst of retried "embedding:retry" events no longer worth replaying).

Example arguments/values:
	topic: "embedding:retry"
`, ClearBusTopicInput{})
	return tool
}

func (d *Dispatcher) getAgentMetricsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return writeEnvelope(Success(map[string]any{
		"agents": d.conductor.AgentSnapshots(),
	}, nil))
}

func (d *Dispatcher) getBusStatsHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	topics, directDepth := d.bus.Stats()
	return writeEnvelope(Success(map[string]any{
		"topics":           topics,
		"directQueueDepth": directDepth,
	}, nil))
}

func (d *Dispatcher) clearBusTopicHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ClearBusTopicInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	if in.Topic == "" {
		return writeEnvelope(Failure(NewToolError(ErrValidation, "topic is required", nil, nil)))
	}
	d.bus.ClearTopic(in.Topic)
	return writeEnvelope(Success(map[string]any{"cleared": in.Topic}, nil))
}
