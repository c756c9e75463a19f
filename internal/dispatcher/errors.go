package dispatcher

import (
	"context"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
	"github.com/codegraphrag/codegraphrag-mcp/pkg/embedder"
)

// ErrorType is spec.md §7's errorType enum.
type ErrorType string

const (
	ErrValidation           ErrorType = "validation_error"
	ErrNotFound             ErrorType = "not_found"
	ErrAgentBusy            ErrorType = "agent_busy"
	ErrTimeout              ErrorType = "timeout"
	ErrApprovalRequired     ErrorType = "approval_required"
	ErrStorageConflict      ErrorType = "storage_conflict"
	ErrEmbeddingUnavailable ErrorType = "embedding_unavailable"
	ErrProvider             ErrorType = "provider_error"
	ErrCancelled            ErrorType = "cancelled"
	ErrResourceExhausted    ErrorType = "resource_exhausted"
	ErrGeneric              ErrorType = "tool_error"
)

// ToolError is the typed error every dispatcher handler returns on
// failure; Failure(err) reads it back out to build a ToolEnvelope.
type ToolError struct {
	Type    ErrorType
	Message string
	Details map[string]any
	cause   error
}

func (e *ToolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *ToolError) Unwrap() error { return e.cause }

// NewToolError builds a ToolError wrapping cause (may be nil).
func NewToolError(t ErrorType, message string, cause error, details map[string]any) *ToolError {
	return &ToolError{Type: t, Message: message, Details: details, cause: cause}
}

// AsToolError classifies err into the spec's taxonomy. Known conditions
// (approval required, agent busy, context cancellation and deadline,
// embedding provider unavailable, SQLite constraint violation) are
// recognized by type; everything else falls back to tool_error.
func AsToolError(err error) *ToolError {
	if err == nil {
		return &ToolError{Type: ErrGeneric, Message: "unknown error"}
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	if errors.Is(err, agents.ErrApprovalRequired) {
		return NewToolError(ErrApprovalRequired, "approval required", err, nil)
	}

	var busy *agents.AgentBusyError
	if errors.As(err, &busy) {
		return NewToolError(ErrAgentBusy, busy.Error(), err, map[string]any{
			"retryAfterMs": busy.RetryAfterMs,
			"queueLength":  busy.QueueLength,
		})
	}

	if errors.Is(err, context.Canceled) {
		return NewToolError(ErrCancelled, "request cancelled", err, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewToolError(ErrTimeout, "request timed out", err, nil)
	}
	if errors.Is(err, embedder.ErrEmbeddingUnavailable) {
		return NewToolError(ErrEmbeddingUnavailable, "embedding provider unavailable", err, nil)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return NewToolError(ErrStorageConflict, "storage constraint violation", err, nil)
	}

	return NewToolError(ErrGeneric, err.Error(), err, nil)
}
