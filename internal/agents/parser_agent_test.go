package agents

import (
	"context"
	"testing"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

const agentSampleGoSource = `package sample

func add(a, b int) int {
	return helper(a, b)
}

func helper(a, b int) int {
	return a + b
}
`

func TestParserAgentParseFilePublishesCompleteEvent(t *testing.T) {
	engine := parserengine.NewEngine(0)
	defer engine.Close()
	b := bus.New(bus.DefaultRingBufferSize, bus.DefaultDirectQueueSize)
	defer b.Stop()

	events := make(chan bus.Entry, 1)
	b.Subscribe("parse:complete", func(e bus.Entry) { events <- e })

	a := NewParserAgent("parser-1", engine, b, Capabilities{MaxConcurrency: 1})
	if !a.CanHandle(Task{Kind: TaskParseFile}) {
		t.Fatal("CanHandle(parse:file) = false, want true")
	}

	res, err := a.Process(context.Background(), Task{
		Kind: TaskParseFile,
		Payload: ParseFilePayload{
			FilePath: "sample.go",
			Content:  []byte(agentSampleGoSource),
		},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	results, ok := res.Data.([]*parserengine.ParseResult)
	if !ok || len(results) != 1 {
		t.Fatalf("Process() result = %#v, want one ParseResult", res.Data)
	}
	if len(results[0].Entities) == 0 {
		t.Fatal("expected entities to be extracted from a valid Go file")
	}

	select {
	case e := <-events:
		if e.Topic != "parse:complete" {
			t.Fatalf("event topic = %q, want parse:complete", e.Topic)
		}
	default:
		t.Fatal("expected a parse:complete event to be published")
	}
}

func TestParserAgentRejectsUnknownTaskKind(t *testing.T) {
	engine := parserengine.NewEngine(0)
	defer engine.Close()

	a := NewParserAgent("parser-1", engine, nil, Capabilities{MaxConcurrency: 1})
	if a.CanHandle(Task{Kind: "not:a:parser:task"}) {
		t.Fatal("CanHandle() should reject unknown task kinds")
	}
}
