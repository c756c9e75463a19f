// Package agents is the Agents & Conductor layer (spec.md §4.7): task
// execution units with a per-agent concurrency bound, plus the
// Conductor that routes tool calls to them. Each Agent's bounded
// work queue + semaphore is grounded on the teacher's
// internal/indexer.Indexer worker-goroutine + channel +
// sync.WaitGroup concurrency pattern (SPEC_FULL.md §4.7).
package agents

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Status is an agent's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusBusy     Status = "busy"
	StatusShutdown Status = "shutdown"
)

// Capabilities describes an agent's resource envelope.
type Capabilities struct {
	MaxConcurrency int
	MemoryLimitMB  int
	Priority       int
}

// Task is a unit of work routed to an agent.
type Task struct {
	Kind          string
	Payload       any
	ApprovalToken string
}

// Result is an agent's response to a Task.
type Result struct {
	Data any
}

// AgentBusyError is returned by Process when an agent is already at
// its maxConcurrency (spec.md §4.7).
type AgentBusyError struct {
	AgentID      string
	QueueLength  int
	RetryAfterMs int64
}

func (e *AgentBusyError) Error() string {
	return fmt.Sprintf("agent %s is busy (queue length %d)", e.AgentID, e.QueueLength)
}

// Agent is the common interface every task-execution unit satisfies.
type Agent interface {
	ID() string
	Type() string
	Status() Status
	Capabilities() Capabilities
	CanHandle(task Task) bool
	Process(ctx context.Context, task Task) (Result, error)
}

// Handler performs the actual work for a Task that CanHandle accepted.
type Handler func(ctx context.Context, task Task) (Result, error)

// BaseAgent implements the concurrency-bound Process/Status machinery
// shared by every concrete agent; concrete agents embed it and supply
// CanHandle + a Handler.
type BaseAgent struct {
	id       string
	typ      string
	inFlight int32
	shutdown int32

	capsMu sync.Mutex
	caps   Capabilities
	sem    chan struct{}

	canHandle func(Task) bool
	handle    Handler
}

// NewBaseAgent builds a BaseAgent bounded to caps.MaxConcurrency
// concurrent Process calls (a MaxConcurrency <= 0 defaults to 1).
func NewBaseAgent(id, typ string, caps Capabilities, canHandle func(Task) bool, handle Handler) *BaseAgent {
	if caps.MaxConcurrency <= 0 {
		caps.MaxConcurrency = 1
	}
	return &BaseAgent{
		id:        id,
		typ:       typ,
		caps:      caps,
		sem:       make(chan struct{}, caps.MaxConcurrency),
		canHandle: canHandle,
		handle:    handle,
	}
}

func (a *BaseAgent) ID() string   { return a.id }
func (a *BaseAgent) Type() string { return a.typ }

func (a *BaseAgent) Capabilities() Capabilities {
	a.capsMu.Lock()
	defer a.capsMu.Unlock()
	return a.caps
}

// Resize rebounds the agent's concurrency to maxConcurrency (<=0
// defaults to 1), used by the resources:adjusted Knowledge Bus
// subscriber (spec.md §4.6) to shrink or grow every agent's semaphore
// as the Resource Governor's effective agent limit changes.
// In-flight tasks holding the old semaphore drain naturally; the new
// bound applies to tasks admitted after the resize.
func (a *BaseAgent) Resize(maxConcurrency int) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	a.capsMu.Lock()
	defer a.capsMu.Unlock()
	a.caps.MaxConcurrency = maxConcurrency
	a.sem = make(chan struct{}, maxConcurrency)
}

func (a *BaseAgent) Status() Status {
	if atomic.LoadInt32(&a.shutdown) == 1 {
		return StatusShutdown
	}
	if atomic.LoadInt32(&a.inFlight) > 0 {
		return StatusBusy
	}
	return StatusIdle
}

func (a *BaseAgent) CanHandle(task Task) bool {
	if atomic.LoadInt32(&a.shutdown) == 1 {
		return false
	}
	return a.canHandle(task)
}

// Process enforces per-agent concurrency: when inFlight >=
// maxConcurrency it fails fast with AgentBusyError instead of
// blocking (spec.md §4.7).
func (a *BaseAgent) Process(ctx context.Context, task Task) (Result, error) {
	if atomic.LoadInt32(&a.shutdown) == 1 {
		return Result{}, fmt.Errorf("agent %s is shut down", a.id)
	}

	a.capsMu.Lock()
	sem := a.sem
	a.capsMu.Unlock()

	select {
	case sem <- struct{}{}:
	default:
		return Result{}, &AgentBusyError{
			AgentID:      a.id,
			QueueLength:  len(sem),
			RetryAfterMs: 250,
		}
	}
	atomic.AddInt32(&a.inFlight, 1)
	defer func() {
		atomic.AddInt32(&a.inFlight, -1)
		<-sem
	}()

	return a.handle(ctx, task)
}

// Shutdown marks the agent as no longer accepting new tasks.
func (a *BaseAgent) Shutdown() {
	atomic.StoreInt32(&a.shutdown, 1)
}
