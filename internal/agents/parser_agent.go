package agents

import (
	"context"
	"fmt"

	"github.com/codegraphrag/codegraphrag-mcp/internal/bus"
	"github.com/codegraphrag/codegraphrag-mcp/internal/parserengine"
)

// Parser task kinds (spec.md §4.7).
const (
	TaskParseFile        = "parse:file"
	TaskParseBatch       = "parse:batch"
	TaskParseIncremental = "parse:incremental"
)

// ParseFilePayload is the Payload shape for TaskParseFile.
type ParseFilePayload struct {
	FilePath    string
	Content     []byte
	ContentHash string
}

// ParseBatchPayload is the Payload shape for TaskParseBatch.
type ParseBatchPayload struct {
	Files []ParseFilePayload
}

// ParseIncrementalPayload is the Payload shape for TaskParseIncremental.
type ParseIncrementalPayload struct {
	Change parserengine.FileChange
}

// NewParserAgent wraps a parserengine.Engine as an Agent, publishing
// parse:complete/parse:failed on bus once work finishes (spec.md
// §4.7).
func NewParserAgent(id string, engine *parserengine.Engine, b *bus.Bus, caps Capabilities) *BaseAgent {
	canHandle := func(t Task) bool {
		switch t.Kind {
		case TaskParseFile, TaskParseBatch, TaskParseIncremental:
			return true
		default:
			return false
		}
	}

	handle := func(ctx context.Context, t Task) (Result, error) {
		switch t.Kind {
		case TaskParseFile:
			p, ok := t.Payload.(ParseFilePayload)
			if !ok {
				return Result{}, fmt.Errorf("parser agent: unexpected payload for parse:file")
			}
			result, err := engine.Parse(ctx, p.FilePath, p.Content, p.ContentHash)
			return publishParseOutcome(b, []*parserengine.ParseResult{result}, err)

		case TaskParseBatch:
			p, ok := t.Payload.(ParseBatchPayload)
			if !ok {
				return Result{}, fmt.Errorf("parser agent: unexpected payload for parse:batch")
			}
			var results []*parserengine.ParseResult
			for _, f := range p.Files {
				r, err := engine.Parse(ctx, f.FilePath, f.Content, f.ContentHash)
				if err != nil {
					return publishParseOutcome(b, results, err)
				}
				results = append(results, r)
			}
			return publishParseOutcome(b, results, nil)

		case TaskParseIncremental:
			p, ok := t.Payload.(ParseIncrementalPayload)
			if !ok {
				return Result{}, fmt.Errorf("parser agent: unexpected payload for parse:incremental")
			}
			result, err := engine.ApplyFileChange(ctx, p.Change)
			return publishParseOutcome(b, []*parserengine.ParseResult{result}, err)

		default:
			return Result{}, fmt.Errorf("parser agent: unsupported task kind %q", t.Kind)
		}
	}

	return NewBaseAgent(id, "parser", caps, canHandle, handle)
}

func publishParseOutcome(b *bus.Bus, results []*parserengine.ParseResult, err error) (Result, error) {
	if err != nil {
		if b != nil {
			b.Publish(bus.Entry{Topic: "parse:failed", Data: map[string]any{"error": err.Error()}})
		}
		return Result{}, err
	}
	if b != nil {
		b.Publish(bus.Entry{Topic: "parse:complete", Data: map[string]any{
			"results": results,
			"stats":   map[string]any{"fileCount": len(results)},
		}})
	}
	return Result{Data: results}, nil
}
