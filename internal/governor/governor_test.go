package governor

import (
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
)

func newTestGovernor(bounds Bounds, b *bus.Bus) *Governor {
	return &Governor{
		bounds:         bounds,
		bus:            b,
		allocations:    make(map[string]Allocation),
		publishLimiter: rate.NewLimiter(rate.Every(time.Millisecond), 10),
	}
}

func TestRequestGrantsWithinBounds(t *testing.T) {
	g := newTestGovernor(Bounds{MaxMemoryMB: 1000, MaxCPUPercent: 100, MaxConcurrentAgents: 5}, nil)

	granted, denial := g.Request(Allocation{AgentID: "a", MemoryMB: 200, CPUPercent: 10})
	if !granted {
		t.Fatalf("Request() denied = %+v, want granted", denial)
	}
}

func TestRequestDeniesOverMemoryBound(t *testing.T) {
	g := newTestGovernor(Bounds{MaxMemoryMB: 100}, nil)

	granted, denial := g.Request(Allocation{AgentID: "a", MemoryMB: 200})
	if granted {
		t.Fatal("Request() should deny an allocation exceeding maxMemoryMB")
	}
	if denial.Reason == "" {
		t.Fatal("Request() denial should carry a reason")
	}
}

func TestRequestDeniesOverConcurrentAgentBound(t *testing.T) {
	g := newTestGovernor(Bounds{MaxMemoryMB: 10000, MaxCPUPercent: 1000, MaxConcurrentAgents: 1}, nil)

	if granted, _ := g.Request(Allocation{AgentID: "a", MemoryMB: 1}); !granted {
		t.Fatal("first agent's request should be granted")
	}
	if granted, _ := g.Request(Allocation{AgentID: "b", MemoryMB: 1}); granted {
		t.Fatal("second agent's request should be denied once maxConcurrentAgents is reached")
	}
}

func TestRequestAllowsReRequestFromSameAgent(t *testing.T) {
	g := newTestGovernor(Bounds{MaxMemoryMB: 10000, MaxCPUPercent: 1000, MaxConcurrentAgents: 1}, nil)

	g.Request(Allocation{AgentID: "a", MemoryMB: 1})
	granted, denial := g.Request(Allocation{AgentID: "a", MemoryMB: 2})
	if !granted {
		t.Fatalf("re-request from the same agent should be granted, got denial %+v", denial)
	}
}

func TestReleaseFreesAllocation(t *testing.T) {
	g := newTestGovernor(Bounds{MaxMemoryMB: 10000, MaxCPUPercent: 1000, MaxConcurrentAgents: 1}, nil)

	g.Request(Allocation{AgentID: "a", MemoryMB: 1})
	g.Release("a")
	granted, denial := g.Request(Allocation{AgentID: "b", MemoryMB: 1})
	if !granted {
		t.Fatalf("Request() after Release() should be granted, got denial %+v", denial)
	}
}

func TestRecordEntersThrottledStateAbove80Percent(t *testing.T) {
	b := bus.New(10, 10)
	defer b.Stop()
	g := newTestGovernor(Bounds{}, b)

	events := make(chan bus.Entry, 1)
	b.Subscribe("throttle:enabled", func(e bus.Entry) { events <- e })

	g.record(Sample{MemoryPercent: 90, CPUPercent: 10})

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("expected throttle:enabled to be published")
	}
	if !g.Throttled() {
		t.Fatal("Throttled() should be true after a sample above 80%")
	}
}

func TestRecordHysteresisRequiresDropBelow70Percent(t *testing.T) {
	g := newTestGovernor(Bounds{}, nil)

	g.record(Sample{MemoryPercent: 90, CPUPercent: 10})
	if !g.Throttled() {
		t.Fatal("should be throttled after 90% sample")
	}

	g.record(Sample{MemoryPercent: 75, CPUPercent: 10})
	if !g.Throttled() {
		t.Fatal("should remain throttled between 70% and 80% (hysteresis band)")
	}

	g.record(Sample{MemoryPercent: 65, CPUPercent: 10})
	if g.Throttled() {
		t.Fatal("should leave throttled state once usage drops below 70%")
	}
}

func TestHistoryRetainsAtMost60Samples(t *testing.T) {
	g := newTestGovernor(Bounds{}, nil)
	for i := 0; i < 100; i++ {
		g.record(Sample{MemoryPercent: 10})
	}
	if len(g.History()) != historySize {
		t.Fatalf("History() len = %d, want %d", len(g.History()), historySize)
	}
}

func TestAdjustForWorkspaceSizePublishesAndClampsAgentLimit(t *testing.T) {
	b := bus.New(10, 10)
	defer b.Stop()
	g := newTestGovernor(Bounds{}, b)

	events := make(chan bus.Entry, 1)
	b.Subscribe("resources:adjusted", func(e bus.Entry) { events <- e })

	g.AdjustForWorkspaceSize(512, 0)

	select {
	case e := <-events:
		payload := e.Data.(map[string]any)
		if payload["newAgentLimit"].(int) != 1 {
			t.Fatalf("newAgentLimit = %v, want clamped to 1", payload["newAgentLimit"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected resources:adjusted to be published")
	}
}
