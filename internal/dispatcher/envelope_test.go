package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/codegraphrag/codegraphrag-mcp/internal/agents"
)

func TestCursorRoundTrips(t *testing.T) {
	cases := []Cursor{
		{},
		{Offset: 42},
		{Offset: 7, Query: "parse cache", Filters: map[string]string{"path": "internal/"}},
	}
	for _, c := range cases {
		token, err := EncodeCursor(c)
		if err != nil {
			t.Fatalf("EncodeCursor(%+v) error: %v", c, err)
		}
		got, err := DecodeCursor(token)
		if err != nil {
			t.Fatalf("DecodeCursor(%q) error: %v", token, err)
		}
		if got.Offset != c.Offset || got.Query != c.Query {
			t.Fatalf("DecodeCursor(EncodeCursor(%+v)) = %+v, want equivalent", c, got)
		}
	}
}

func TestDecodeCursorEmptyTokenIsZeroValue(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor(\"\") error: %v", err)
	}
	if c != (Cursor{}) {
		t.Fatalf("DecodeCursor(\"\") = %+v, want zero value", c)
	}
}

func TestDecodeCursorRejectsGarbageToken(t *testing.T) {
	if _, err := DecodeCursor("not-valid-base64url-json!!"); err == nil {
		t.Fatal("DecodeCursor(garbage) should have errored")
	}
}

func TestSuccessEnvelopeCarriesData(t *testing.T) {
	env := Success(map[string]any{"ok": true}, nil, "a warning")
	if !env.Success {
		t.Fatal("Success envelope should have Success=true")
	}
	if env.ErrorType != "" || env.Error != "" {
		t.Fatal("Success envelope should carry no error fields")
	}
	if len(env.Warnings) != 1 || env.Warnings[0] != "a warning" {
		t.Fatalf("Warnings = %v, want [\"a warning\"]", env.Warnings)
	}
}

func TestFailureEnvelopeClassifiesApprovalRequired(t *testing.T) {
	env := Failure(agents.ErrApprovalRequired)
	if env.Success {
		t.Fatal("Failure envelope should have Success=false")
	}
	if env.ErrorType != string(ErrApprovalRequired) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrApprovalRequired)
	}
}

func TestFailureEnvelopeClassifiesAgentBusy(t *testing.T) {
	err := &agents.AgentBusyError{AgentID: "parser-1", QueueLength: 2, RetryAfterMs: 250}
	env := Failure(err)
	if env.ErrorType != string(ErrAgentBusy) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrAgentBusy)
	}
	if env.Details["retryAfterMs"] != int64(250) {
		t.Fatalf("Details[retryAfterMs] = %v, want 250", env.Details["retryAfterMs"])
	}
}

func TestFailureEnvelopeClassifiesContextCancelled(t *testing.T) {
	env := Failure(context.Canceled)
	if env.ErrorType != string(ErrCancelled) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrCancelled)
	}
}

func TestFailureEnvelopeClassifiesContextDeadlineExceeded(t *testing.T) {
	env := Failure(context.DeadlineExceeded)
	if env.ErrorType != string(ErrTimeout) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrTimeout)
	}
}

func TestFailureEnvelopeFallsBackToGenericToolError(t *testing.T) {
	env := Failure(errors.New("something unexpected"))
	if env.ErrorType != string(ErrGeneric) {
		t.Fatalf("ErrorType = %q, want %q", env.ErrorType, ErrGeneric)
	}
}

func TestAsToolErrorPreservesAlreadyTypedError(t *testing.T) {
	original := NewToolError(ErrNotFound, "entity missing", nil, map[string]any{"id": "x"})
	got := AsToolError(original)
	if got != original {
		t.Fatalf("AsToolError should return the same *ToolError instance when already typed")
	}
}
