// Package dispatcher is the Tool Dispatcher (spec.md §6): the 24-tool
// MCP surface, wrapped in ToolEnvelope success/failure responses with
// cursor-paginated families. Registration is grounded on the teacher's
// pkg/mcp_tools.ToolManager.RegisterTools (reg(name, tool, handler)
// closure, typed XxxInput structs, protocol.NewCallToolResult response
// wrapping), generalized so every handler's return passes through
// ToolEnvelope before marshaling (SPEC_FULL.md §4.8).
package dispatcher

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ToolEnvelope is every tool response's outer shape (spec.md §4.7/§6).
type ToolEnvelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	ErrorType string         `json:"errorType,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Success builds a success envelope.
func Success(data any, meta map[string]any, warnings ...string) ToolEnvelope {
	return ToolEnvelope{Success: true, Data: data, Meta: meta, Warnings: warnings}
}

// Failure builds a failure envelope from a ToolError (or a plain
// error, classified by AsToolError; unrecognized errors become
// "tool_error").
func Failure(err error) ToolEnvelope {
	te := AsToolError(err)
	return ToolEnvelope{
		Success:   false,
		ErrorType: string(te.Type),
		Error:     te.Message,
		Details:   te.Details,
	}
}

// Cursor is the opaque pagination token: base64url(JSON
// {o:number, q?:string, f?:{...}}), per spec.md §3.
type Cursor struct {
	Offset  int               `json:"o"`
	Query   string            `json:"q,omitempty"`
	Filters map[string]string `json:"f,omitempty"`
}

// EncodeCursor serializes a Cursor to its opaque wire form.
func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("dispatcher: encoding cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a cursor token produced by EncodeCursor. An
// empty token decodes to the zero Cursor (offset 0, no query/filters)
// so callers can omit it on the first page.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("dispatcher: decoding cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("dispatcher: unmarshaling cursor: %w", err)
	}
	return c, nil
}

// Page is the paginated-tool response shape: {items[], nextCursor?}.
type Page struct {
	Items      []any  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}
