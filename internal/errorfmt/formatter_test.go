package errorfmt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/soddy-dev/claude-code-acp/internal/jsonrpc"
)

func TestCodeForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, jsonrpc.InternalError},
		{errors.New("sessionId is required"), jsonrpc.InvalidParams},
		{errors.New("invalid mode: yolo"), jsonrpc.InvalidParams},
		{errors.New("cwd must be an absolute path"), jsonrpc.InvalidParams},
		{errors.New("unknown method: session/x"), jsonrpc.MethodNotFound},
		{errors.New("backend exploded"), jsonrpc.InternalError},
		{fmt.Errorf("%w: s1", ErrSessionNotFound), jsonrpc.InvalidParams},
		{fmt.Errorf("%w: log in first", ErrAuthRequired), jsonrpc.AuthRequired},
		{errors.New("user is not authenticated"), jsonrpc.AuthRequired},
	}
	for _, tc := range cases {
		if got := CodeForError(tc.err); got != tc.want {
			t.Errorf("CodeForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFormatFallsBackWhenErrorIsNil(t *testing.T) {
	formatted := Format(nil, "", nil)
	if formatted.Message != "internal error" || formatted.Code != jsonrpc.InternalError {
		t.Fatalf("unexpected fallback: %+v", formatted)
	}
}

func TestFormatUsesErrorMessage(t *testing.T) {
	formatted := Format(errors.New("boom"), "fallback", map[string]any{"name": "x"})
	if formatted.Message != "boom" {
		t.Fatalf("expected error message, got %q", formatted.Message)
	}
	if formatted.Data["name"] != "x" {
		t.Fatalf("expected data passthrough, got %v", formatted.Data)
	}
}
