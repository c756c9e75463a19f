package agents

import (
	"context"
	"sync"
	"testing"
	"time"
)

func blockingHandler(release <-chan struct{}) Handler {
	return func(ctx context.Context, t Task) (Result, error) {
		<-release
		return Result{Data: "done"}, nil
	}
}

func TestBaseAgentEnforcesMaxConcurrency(t *testing.T) {
	release := make(chan struct{})
	a := NewBaseAgent("a1", "test", Capabilities{MaxConcurrency: 1}, func(Task) bool { return true }, blockingHandler(release))

	started := make(chan struct{})
	go func() {
		close(started)
		a.Process(context.Background(), Task{Kind: "x"})
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let the goroutine acquire the slot

	_, err := a.Process(context.Background(), Task{Kind: "x"})
	if err == nil {
		t.Fatal("Process() should fail fast with AgentBusyError when at maxConcurrency")
	}
	busyErr, ok := err.(*AgentBusyError)
	if !ok {
		t.Fatalf("err = %T, want *AgentBusyError", err)
	}
	if busyErr.AgentID != "a1" {
		t.Fatalf("AgentBusyError.AgentID = %q, want a1", busyErr.AgentID)
	}
	close(release)
}

func TestBaseAgentStatusReflectsInFlight(t *testing.T) {
	release := make(chan struct{})
	a := NewBaseAgent("a1", "test", Capabilities{MaxConcurrency: 1}, func(Task) bool { return true }, blockingHandler(release))

	if a.Status() != StatusIdle {
		t.Fatalf("Status() = %v, want idle before any task", a.Status())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		a.Process(context.Background(), Task{Kind: "x"})
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	if a.Status() != StatusBusy {
		t.Fatalf("Status() = %v, want busy while a task is in flight", a.Status())
	}
	close(release)
	wg.Wait()

	if a.Status() != StatusIdle {
		t.Fatalf("Status() = %v, want idle after the task completes", a.Status())
	}
}

func TestBaseAgentShutdownRejectsNewTasks(t *testing.T) {
	a := NewBaseAgent("a1", "test", Capabilities{MaxConcurrency: 2}, func(Task) bool { return true }, func(ctx context.Context, t Task) (Result, error) {
		return Result{}, nil
	})
	a.Shutdown()

	if a.CanHandle(Task{Kind: "x"}) {
		t.Fatal("CanHandle() should be false once shut down")
	}
	if _, err := a.Process(context.Background(), Task{Kind: "x"}); err == nil {
		t.Fatal("Process() should error once shut down")
	}
	if a.Status() != StatusShutdown {
		t.Fatalf("Status() = %v, want shutdown", a.Status())
	}
}

func TestBaseAgentAllowsConcurrentTasksUpToBound(t *testing.T) {
	release := make(chan struct{})
	a := NewBaseAgent("a1", "test", Capabilities{MaxConcurrency: 2}, func(Task) bool { return true }, blockingHandler(release))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := a.Process(context.Background(), Task{Kind: "x"})
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := a.Process(context.Background(), Task{Kind: "x"}); err == nil {
		t.Fatal("a third concurrent Process() should be rejected at maxConcurrency=2")
	}

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Process() error = %v, want nil for the two in-bound tasks", err)
		}
	}
}
