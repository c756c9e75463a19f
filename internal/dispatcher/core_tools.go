package dispatcher

import (
	"context"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
)

func (d *Dispatcher) registerCoreTools(reg registerFunc) error {
	if err := reg("index", indexTool(), d.indexHandler); err != nil {
		return err
	}
	if err := reg("reset_graph", resetGraphTool(), d.resetGraphHandler); err != nil {
		return err
	}
	if err := reg("clean_index", cleanIndexTool(), d.cleanIndexHandler); err != nil {
		return err
	}
	return nil
}

// IndexInput is the input shape for the index tool.
type IndexInput struct {
	RootPath string `json:"rootPath,omitempty"`
}

// ResetGraphInput is the input shape for the reset_graph tool.
type ResetGraphInput struct {
	ApprovalToken string `json:"approvalToken,omitempty"`
}

// CleanIndexInput is the input shape for the clean_index tool.
type CleanIndexInput struct {
	ApprovalToken string `json:"approvalToken,omitempty"`
	RootPath      string `json:"rootPath,omitempty"`
}

func indexTool() *protocol.Tool {
	tool, _ := protocol.NewTool("index", `Index (or re-index) the workspace.

Explanation: Walks the workspace applying exclusion patterns, parses each discovered file, and upserts the resulting entities/relationships into the Graph Store.

When to call: Use on first startup against a new workspace, or after a bulk change the file watcher may have missed.

Example arguments/values:
	rootPath: "."
`, IndexInput{})
	return tool
}

func resetGraphTool() *protocol.Tool {
	tool, _ := protocol.NewTool("reset_graph", `Drop every entity and relationship from the Graph Store.

Explanation: A destructive, high-impact operation; requires an approval token obtained out-of-band.

When to call: Use when the graph has become inconsistent and a clean rebuild (followed by index) is the only fix.

Example arguments/values:
	approvalToken: "approved-by-operator"
`, ResetGraphInput{})
	return tool
}

func cleanIndexTool() *protocol.Tool {
	tool, _ := protocol.NewTool("clean_index", `Clear the Graph Store, Vector Store, and parse cache, then re-index from scratch.

Explanation: A destructive, high-impact operation combining reset_graph with a Vector Store wipe and a fresh full index pass; requires an approval token.

When to call: Use when stale cached parses or embeddings are suspected of corrupting query results.

Example arguments/values:
	approvalToken: "approved-by-operator"
	rootPath: "."
`, CleanIndexInput{})
	return tool
}

func (d *Dispatcher) indexHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in IndexInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	root := in.RootPath
	if root == "" {
		root = d.workspaceRoot
	}
	return d.dispatchTask(ctx, "index", agents.Task{Kind: agents.TaskIndex, Payload: agents.IndexPayload{RootPath: root}})
}

func (d *Dispatcher) resetGraphHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in ResetGraphInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	if in.ApprovalToken == "" {
		return writeEnvelope(Failure(NewToolError(ErrApprovalRequired, "reset_graph requires an approval token", nil, nil)))
	}
	if err := d.graph.Reset(ctx); err != nil {
		return writeEnvelope(Failure(err))
	}
	return writeEnvelope(Success(map[string]any{"reset": true}, nil))
}

func (d *Dispatcher) cleanIndexHandler(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in CleanIndexInput
	if err := decodeInput(request, &in); err != nil {
		return writeEnvelope(Failure(err))
	}
	if in.ApprovalToken == "" {
		return writeEnvelope(Failure(NewToolError(ErrApprovalRequired, "clean_index requires an approval token", nil, nil)))
	}
	if err := d.graph.Reset(ctx); err != nil {
		return writeEnvelope(Failure(err))
	}
	if err := d.vectors.Reset(ctx); err != nil {
		return writeEnvelope(Failure(err))
	}
	d.engine.ClearCache()

	root := in.RootPath
	if root == "" {
		root = d.workspaceRoot
	}
	return d.dispatchTask(ctx, "index", agents.Task{Kind: agents.TaskIndex, Payload: agents.IndexPayload{RootPath: root}, ApprovalToken: in.ApprovalToken})
}
