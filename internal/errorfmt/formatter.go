package errorfmt

import (
	"errors"
	"strings"

	"github.com/soddy-dev/claude-code-acp/internal/jsonrpc"
)

// Sentinel error kinds mapped onto dedicated JSON-RPC codes.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAuthRequired    = errors.New("authentication required")
)

type Formatted struct {
	Code    int
	Message string
	Data    map[string]any
}

func Format(err error, fallbackMessage string, data map[string]any) Formatted {
	msg := fallbackMessage
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "internal error"
	}
	return Formatted{
		Code:    CodeForError(err),
		Message: msg,
		Data:    data,
	}
}

func CodeForError(err error) int {
	if err == nil {
		return jsonrpc.InternalError
	}
	if errors.Is(err, ErrSessionNotFound) {
		return jsonrpc.InvalidParams
	}
	if errors.Is(err, ErrAuthRequired) {
		return jsonrpc.AuthRequired
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"), strings.Contains(msg, "params"):
		return jsonrpc.InvalidParams
	case strings.Contains(msg, "unknown method"), strings.Contains(msg, "not found"):
		return jsonrpc.MethodNotFound
	case strings.Contains(msg, "not authenticated"), strings.Contains(msg, "log in"):
		return jsonrpc.AuthRequired
	default:
		return jsonrpc.InternalError
	}
}
