package agents

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// trivialTools are spec.md §4.7's tools that "bypass orchestration":
// version, stats, health. internal/dispatcher's info_tools.go and
// ops_tools.go handlers for these never call Dispatch at all, so this
// map is consulted only by callers reasoning about orchestration
// policy in the abstract (e.g. tests), not by the dispatch path itself.
var trivialTools = map[string]bool{
	"get_version":      true,
	"get_graph_stats":  true,
	"get_graph_health": true,
	"get_metrics":      true,
}

// highImpactTools require an explicit approval token before the
// Conductor will route them (spec.md §4.7's complexity gate:
// "multi-file writes, destructive operations").
var highImpactTools = map[string]bool{
	"reset_graph": true,
	"clean_index": true,
}

// ErrApprovalRequired is returned when a high-impact tool call arrives
// without an approval token.
var ErrApprovalRequired = fmt.Errorf("approval_required")

// Metrics is the Conductor's aggregate metrics (spec.md §4.7).
type Metrics struct {
	TotalTasks        int64
	AvgProcessingTime time.Duration
	OverheadReduction float64
	CacheHitRate      float64
	PendingTasks      int64
	ApprovalsPending  int64
}

// Conductor classifies tool invocations, routes them to the matching
// Agent, enforces the approval-token complexity gate, and aggregates
// processing metrics. Grounded on the teacher's
// pkg/mcp_tools.ToolManager.RegisterTools per-group registration
// dispatch, generalized from "register with MCP server" to "route to
// agent" (SPEC_FULL.md §4.7).
type Conductor struct {
	mu     sync.RWMutex
	agents []Agent

	totalTasks       int64
	totalDurationNs  int64
	pendingTasks     int64
	approvalsPending int64
	cacheHits        int64
	cacheMisses      int64
}

// NewConductor builds a Conductor routing across the given agents.
func NewConductor(agentList ...Agent) *Conductor {
	return &Conductor{agents: agentList}
}

// RegisterAgent adds an agent to the routing table.
func (c *Conductor) RegisterAgent(a Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = append(c.agents, a)
}

// IsTrivial reports whether toolName bypasses agent orchestration.
func IsTrivial(toolName string) bool { return trivialTools[toolName] }

// RequiresApproval reports whether toolName's complexity gate demands
// an approval token.
func RequiresApproval(toolName string) bool { return highImpactTools[toolName] }

// Dispatch routes a tool invocation to the first capable agent. Trivial
// tools (version/stats/health) should be answered by the caller
// without ever reaching Dispatch. High-impact tools without an
// approval token are rejected with ErrApprovalRequired.
func (c *Conductor) Dispatch(ctx context.Context, toolName string, task Task) (Result, error) {
	if RequiresApproval(toolName) && task.ApprovalToken == "" {
		atomic.AddInt64(&c.approvalsPending, 1)
		return Result{}, ErrApprovalRequired
	}

	c.mu.RLock()
	var target Agent
	for _, a := range c.agents {
		if a.CanHandle(task) {
			target = a
			break
		}
	}
	c.mu.RUnlock()

	if target == nil {
		return Result{}, fmt.Errorf("conductor: no agent can handle task kind %q", task.Kind)
	}

	atomic.AddInt64(&c.pendingTasks, 1)
	defer atomic.AddInt64(&c.pendingTasks, -1)

	start := time.Now()
	result, err := target.Process(ctx, task)
	elapsed := time.Since(start)

	atomic.AddInt64(&c.totalTasks, 1)
	atomic.AddInt64(&c.totalDurationNs, elapsed.Nanoseconds())

	return result, err
}

// RecordCacheOutcome feeds the Semantic Cache's hit/miss outcome into
// the Conductor's aggregate cacheHitRate metric.
func (c *Conductor) RecordCacheOutcome(hit bool) {
	if hit {
		atomic.AddInt64(&c.cacheHits, 1)
	} else {
		atomic.AddInt64(&c.cacheMisses, 1)
	}
}

// resizable is satisfied by any agent whose concurrency bound can be
// adjusted at runtime; BaseAgent (and so every concrete agent built on
// it) implements it.
type resizable interface {
	Resize(maxConcurrency int)
}

// ResizeAll rebounds every registered agent that supports it to
// maxConcurrency, used by the resources:adjusted Knowledge Bus
// subscriber (spec.md §4.6) when the Resource Governor's effective
// agent limit changes.
func (c *Conductor) ResizeAll(maxConcurrency int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.agents {
		if r, ok := a.(resizable); ok {
			r.Resize(maxConcurrency)
		}
	}
}

// AgentSnapshot is one agent's point-in-time state, used by the
// get_agent_metrics tool.
type AgentSnapshot struct {
	ID           string
	Type         string
	Status       Status
	Capabilities Capabilities
}

// AgentSnapshots reports every registered agent's current state.
func (c *Conductor) AgentSnapshots() []AgentSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AgentSnapshot, len(c.agents))
	for i, a := range c.agents {
		out[i] = AgentSnapshot{ID: a.ID(), Type: a.Type(), Status: a.Status(), Capabilities: a.Capabilities()}
	}
	return out
}

// Metrics returns a snapshot of the Conductor's aggregate metrics.
func (c *Conductor) Metrics() Metrics {
	total := atomic.LoadInt64(&c.totalTasks)
	var avg time.Duration
	if total > 0 {
		avg = time.Duration(atomic.LoadInt64(&c.totalDurationNs) / total)
	}

	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return Metrics{
		TotalTasks:        total,
		AvgProcessingTime: avg,
		CacheHitRate:      hitRate,
		PendingTasks:      atomic.LoadInt64(&c.pendingTasks),
		ApprovalsPending:  atomic.LoadInt64(&c.approvalsPending),
	}
}
