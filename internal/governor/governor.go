// Package governor is the Resource Governor (spec.md §4.6): it
// samples process memory, system free memory, and load average once a
// second, retains a 60-second history, grants or denies per-agent
// resource allocation requests against configured bounds, and enters a
// hysteresis-gated throttled state as soon as one sample exceeds the
// upper threshold. Sampling
// is grounded on github.com/shirou/gopsutil/v3 (mem.VirtualMemory,
// cpu.Percent, load.Avg) — the pack's only real-world system-stats
// library and the Governor's sole viable grounding source
// (SPEC_FULL.md §4.6).
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
)

const (
	sampleInterval = time.Second
	historySize    = 60

	// throttleOnPercent/throttleOffPercent are spec.md §4.6's
	// hysteresis thresholds: enter throttled state above 80% usage,
	// leave it below 70%.
	throttleOnPercent  = 0.80
	throttleOffPercent = 0.70
)

// Sample is one second's worth of resource readings.
type Sample struct {
	Timestamp     time.Time
	MemoryUsedMB  float64
	MemoryPercent float64
	CPUPercent    float64
	LoadAvg1      float64
	SystemFreeMB  float64
}

// Bounds is spec.md §4.6's configured resource ceiling.
type Bounds struct {
	MaxMemoryMB         float64
	MaxCPUPercent       float64
	MaxConcurrentAgents int
	MaxTaskQueueSize    int
}

// Allocation is spec.md §3's ResourceAllocation.
type Allocation struct {
	AgentID    string
	MemoryMB   float64
	CPUPercent float64
	Priority   int
}

// Denial explains why a request was refused.
type Denial struct {
	Reason string
}

// Governor samples system resources and arbitrates allocation
// requests against Bounds.
type Governor struct {
	bounds Bounds
	bus    *bus.Bus

	mu          sync.Mutex
	history     []Sample
	allocations map[string]Allocation
	throttled   bool

	publishLimiter *rate.Limiter

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Governor. If b is non-nil, throttle/adjustment events
// are published on it.
func New(bounds Bounds, b *bus.Bus) *Governor {
	return &Governor{
		bounds:         bounds,
		bus:            b,
		allocations:    make(map[string]Allocation),
		publishLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		done:           make(chan struct{}),
	}
}

// Start begins the once-a-second sampling loop. Call Stop to end it.
func (g *Governor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	go g.sampleLoop(ctx)
}

// Stop ends the sampling loop.
func (g *Governor) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *Governor) sampleLoop(ctx context.Context) {
	defer close(g.done)
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := g.takeSample()
			if err != nil {
				continue
			}
			g.record(s)
		}
	}
}

func (g *Governor) takeSample() (Sample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, fmt.Errorf("governor: sampling memory: %w", err)
	}
	cpuPercents, err := cpu.Percent(0, false)
	if err != nil {
		return Sample{}, fmt.Errorf("governor: sampling cpu: %w", err)
	}
	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}
	loadStat, err := load.Avg()
	if err != nil {
		return Sample{}, fmt.Errorf("governor: sampling load: %w", err)
	}

	return Sample{
		Timestamp:     time.Now(),
		MemoryUsedMB:  float64(vm.Used) / (1024 * 1024),
		MemoryPercent: vm.UsedPercent,
		CPUPercent:    cpuPct,
		LoadAvg1:      loadStat.Load1,
		SystemFreeMB:  float64(vm.Free) / (1024 * 1024),
	}, nil
}

// record appends s to the 60-sample ring history and evaluates the
// throttle hysteresis.
func (g *Governor) record(s Sample) {
	g.mu.Lock()
	g.history = append(g.history, s)
	if len(g.history) > historySize {
		g.history = g.history[len(g.history)-historySize:]
	}
	wasThrottled := g.throttled
	memFrac := s.MemoryPercent / 100
	cpuFrac := s.CPUPercent / 100
	switch {
	case !wasThrottled && (memFrac > throttleOnPercent || cpuFrac > throttleOnPercent):
		g.throttled = true
	case wasThrottled && memFrac < throttleOffPercent && cpuFrac < throttleOffPercent:
		g.throttled = false
	}
	nowThrottled := g.throttled
	g.mu.Unlock()

	if nowThrottled != wasThrottled && g.bus != nil && g.publishLimiter.Allow() {
		if nowThrottled {
			g.bus.Publish(bus.Entry{Topic: "throttle:enabled", Data: s})
		} else {
			g.bus.Publish(bus.Entry{Topic: "throttle:disabled", Data: s})
		}
	}
}

// History returns up to the last 60 samples, oldest first.
func (g *Governor) History() []Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Sample, len(g.history))
	copy(out, g.history)
	return out
}

// Throttled reports whether the governor is currently in throttled
// state.
func (g *Governor) Throttled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.throttled
}

// Request is spec.md §4.6's allocation contract:
// request(agentId, mem, cpu, priority) → granted|denied{reason}.
// Denies when cumulative allocation would exceed configured bounds.
func (g *Governor) Request(alloc Allocation) (granted bool, denial Denial) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var totalMem, totalCPU float64
	for id, a := range g.allocations {
		if id == alloc.AgentID {
			continue
		}
		totalMem += a.MemoryMB
		totalCPU += a.CPUPercent
	}
	totalMem += alloc.MemoryMB
	totalCPU += alloc.CPUPercent

	if g.bounds.MaxMemoryMB > 0 && totalMem > g.bounds.MaxMemoryMB {
		return false, Denial{Reason: "exceeds maxMemoryMB"}
	}
	if g.bounds.MaxCPUPercent > 0 && totalCPU > g.bounds.MaxCPUPercent {
		return false, Denial{Reason: "exceeds maxCpuPercent"}
	}
	if g.bounds.MaxConcurrentAgents > 0 {
		_, already := g.allocations[alloc.AgentID]
		if !already && len(g.allocations) >= g.bounds.MaxConcurrentAgents {
			return false, Denial{Reason: "exceeds maxConcurrentAgents"}
		}
	}

	g.allocations[alloc.AgentID] = alloc
	return true, Denial{}
}

// Release frees a prior allocation.
func (g *Governor) Release(agentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.allocations, agentID)
}

// AdjustForWorkspaceSize publishes resources:adjusted{newMemoryLimit,
// newAgentLimit} when workspace size changes alter the effective
// bounds, and updates them (spec.md §4.6). Limits are clamped to ≥1
// agent.
func (g *Governor) AdjustForWorkspaceSize(newMemoryLimitMB float64, newAgentLimit int) {
	if newAgentLimit < 1 {
		newAgentLimit = 1
	}
	g.mu.Lock()
	g.bounds.MaxMemoryMB = newMemoryLimitMB
	g.bounds.MaxConcurrentAgents = newAgentLimit
	g.mu.Unlock()

	if g.bus != nil {
		g.bus.Publish(bus.Entry{
			Topic: "resources:adjusted",
			Data: map[string]any{
				"newMemoryLimit": newMemoryLimitMB,
				"newAgentLimit":  newAgentLimit,
			},
		})
	}
}
