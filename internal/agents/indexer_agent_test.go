//go:build cgo

package agents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/graphstore"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

const indexerSampleGoSource = `package sample

func add(a, b int) int {
	return helper(a, b)
}

func helper(a, b int) int {
	return a + b
}
`

func TestIndexerAgentIndexesWorkspaceIntoGraphStore(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "sample.go"), []byte(indexerSampleGoSource), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	scanner := parserengine.NewScanner(nil, 0)
	engine := parserengine.NewEngine(0)
	defer engine.Close()

	graph, err := graphstore.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("graphstore.Open() error = %v", err)
	}
	defer graph.Close()

	b := bus.New(bus.DefaultRingBufferSize, bus.DefaultDirectQueueSize)
	defer b.Stop()
	events := make(chan bus.Entry, 1)
	b.Subscribe("index:complete", func(e bus.Entry) { events <- e })

	a := NewIndexerAgent("indexer-1", scanner, engine, graph, b, Capabilities{MaxConcurrency: 1})

	res, err := a.Process(context.Background(), Task{Kind: TaskIndex, Payload: IndexPayload{RootPath: root}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	stats, ok := res.Data.(IndexStats)
	if !ok {
		t.Fatalf("Process() result = %#v, want IndexStats", res.Data)
	}
	if stats.FilesProcessed != 1 {
		t.Fatalf("FilesProcessed = %d, want 1", stats.FilesProcessed)
	}
	if stats.EntitiesIndexed == 0 {
		t.Fatal("expected entities to be indexed")
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}

	select {
	case <-events:
	default:
		t.Fatal("expected an index:complete event to be published")
	}
}
