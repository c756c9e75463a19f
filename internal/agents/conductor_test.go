package agents

import (
	"context"
	"errors"
	"testing"
)

func echoAgent(id, typ string, kinds ...string) *BaseAgent {
	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	return NewBaseAgent(id, typ, Capabilities{MaxConcurrency: 4},
		func(t Task) bool { return kindSet[t.Kind] },
		func(ctx context.Context, t Task) (Result, error) {
			return Result{Data: id}, nil
		})
}

func TestIsTrivialAndRequiresApprovalClassification(t *testing.T) {
	for _, name := range []string{"get_version", "get_graph_stats", "get_graph_health", "get_metrics"} {
		if !IsTrivial(name) {
			t.Errorf("IsTrivial(%q) = false, want true", name)
		}
		if RequiresApproval(name) {
			t.Errorf("RequiresApproval(%q) = true, want false", name)
		}
	}
	for _, name := range []string{"reset_graph", "clean_index"} {
		if IsTrivial(name) {
			t.Errorf("IsTrivial(%q) = true, want false", name)
		}
		if !RequiresApproval(name) {
			t.Errorf("RequiresApproval(%q) = false, want true", name)
		}
	}
	if IsTrivial("search_code") || RequiresApproval("search_code") {
		t.Error("search_code should be neither trivial nor high-impact")
	}
}

func TestDispatchRejectsHighImpactToolWithoutApproval(t *testing.T) {
	c := NewConductor(echoAgent("a1", "indexer", "clean_index"))
	_, err := c.Dispatch(context.Background(), "clean_index", Task{Kind: "clean_index"})
	if !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("Dispatch() err = %v, want ErrApprovalRequired", err)
	}
	if c.Metrics().ApprovalsPending != 1 {
		t.Fatalf("ApprovalsPending = %d, want 1", c.Metrics().ApprovalsPending)
	}
}

func TestDispatchAllowsHighImpactToolWithApprovalToken(t *testing.T) {
	c := NewConductor(echoAgent("a1", "indexer", "clean_index"))
	res, err := c.Dispatch(context.Background(), "clean_index", Task{Kind: "clean_index", ApprovalToken: "tok-1"})
	if err != nil {
		t.Fatalf("Dispatch() err = %v, want nil", err)
	}
	if res.Data != "a1" {
		t.Fatalf("Dispatch() result = %v, want a1", res.Data)
	}
}

func TestDispatchRoutesToFirstCapableAgent(t *testing.T) {
	c := NewConductor(
		echoAgent("parser-1", "parser", "parse_file"),
		echoAgent("query-1", "query", "query:execute"),
	)
	res, err := c.Dispatch(context.Background(), "query_code", Task{Kind: "query:execute"})
	if err != nil {
		t.Fatalf("Dispatch() err = %v, want nil", err)
	}
	if res.Data != "query-1" {
		t.Fatalf("Dispatch() routed to %v, want query-1", res.Data)
	}
}

func TestDispatchReturnsErrorWhenNoAgentCanHandle(t *testing.T) {
	c := NewConductor(echoAgent("a1", "indexer", "index"))
	_, err := c.Dispatch(context.Background(), "search_code", Task{Kind: "search"})
	if err == nil {
		t.Fatal("Dispatch() should error when no agent can handle the task kind")
	}
}

func TestMetricsAggregatesAcrossDispatches(t *testing.T) {
	c := NewConductor(echoAgent("a1", "query", "query:execute"))
	for i := 0; i < 3; i++ {
		if _, err := c.Dispatch(context.Background(), "query_code", Task{Kind: "query:execute"}); err != nil {
			t.Fatalf("Dispatch() err = %v", err)
		}
	}
	c.RecordCacheOutcome(true)
	c.RecordCacheOutcome(true)
	c.RecordCacheOutcome(false)

	m := c.Metrics()
	if m.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3", m.TotalTasks)
	}
	if m.PendingTasks != 0 {
		t.Errorf("PendingTasks = %d, want 0 once all dispatches completed", m.PendingTasks)
	}
	wantHitRate := 2.0 / 3.0
	if m.CacheHitRate != wantHitRate {
		t.Errorf("CacheHitRate = %v, want %v", m.CacheHitRate, wantHitRate)
	}
}

func TestRegisterAgentAddsToRoutingTable(t *testing.T) {
	c := NewConductor()
	c.RegisterAgent(echoAgent("late-1", "query", "query:execute"))
	res, err := c.Dispatch(context.Background(), "query_code", Task{Kind: "query:execute"})
	if err != nil {
		t.Fatalf("Dispatch() err = %v, want nil", err)
	}
	if res.Data != "late-1" {
		t.Fatalf("Dispatch() result = %v, want late-1", res.Data)
	}
}
