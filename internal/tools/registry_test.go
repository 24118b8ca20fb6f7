package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soddy-dev/claude-code-acp/internal/config"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/permissions"
	"github.com/soddy-dev/claude-code-acp/internal/terminal"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	cwd := t.TempDir()
	logger := logging.New("error")
	procs := terminal.NewManager(terminal.ManagerConfig{}, logger)
	t.Cleanup(procs.Cleanup)
	r := NewRegistry(Context{
		SessionID: "s1",
		Cwd:       cwd,
		Checker:   permissions.NewChecker(config.Settings{}, cwd),
		Processes: procs,
	}, logger)
	t.Cleanup(r.Close)
	return r, cwd
}

func handle(t *testing.T, r *Registry, message string) map[string]any {
	t.Helper()
	raw, err := r.HandleMessage(context.Background(), json.RawMessage(message))
	if err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("response undecodable: %v", err)
	}
	return out
}

func TestHandleInitialize(t *testing.T) {
	r, _ := newTestRegistry(t)
	out := handle(t, r, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	result, ok := out["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result, got %v", out)
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != ServerName {
		t.Fatalf("unexpected server info: %v", info)
	}
}

func TestHandleToolsListAdvertisesCatalog(t *testing.T) {
	r, _ := newTestRegistry(t)
	out := handle(t, r, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}`)
	result, _ := out["result"].(map[string]any)
	toolsList, _ := result["tools"].([]any)

	names := map[string]bool{}
	for _, entry := range toolsList {
		m, _ := entry.(map[string]any)
		names[m["name"].(string)] = true
	}
	for _, want := range []string{"Read", "Write", "Edit", "Bash", "BashOutput", "KillShell"} {
		if !names[want] {
			t.Errorf("catalog missing %s (have %v)", want, names)
		}
	}
}

func TestHandleToolsCallRead(t *testing.T) {
	r, cwd := newTestRegistry(t)
	if err := os.WriteFile(filepath.Join(cwd, "hello.txt"), []byte("contents here"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out := handle(t, r, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"Read","arguments":{"file_path":"hello.txt"}}}`)
	result, _ := out["result"].(map[string]any)
	if result == nil {
		t.Fatalf("expected result, got %v", out)
	}
	if isError, _ := result["isError"].(bool); isError {
		t.Fatalf("expected success, got %v", result)
	}
	if !strings.Contains(toText(t, result), "contents here") {
		t.Fatalf("expected file contents in result, got %v", result)
	}
}

func TestHandleToolsCallMissingFileIsToolError(t *testing.T) {
	r, _ := newTestRegistry(t)
	out := handle(t, r, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"Read","arguments":{"file_path":"missing.txt"}}}`)
	result, _ := out["result"].(map[string]any)
	if result == nil {
		t.Fatalf("expected a tool-level error result, got %v", out)
	}
	if isError, _ := result["isError"].(bool); !isError {
		t.Fatalf("expected isError, got %v", result)
	}
}

func TestHandleUnknownMethodIsJSONRPCError(t *testing.T) {
	r, _ := newTestRegistry(t)
	out := handle(t, r, `{"jsonrpc":"2.0","id":5,"method":"resources/list","params":{}}`)
	if _, ok := out["error"].(map[string]any); !ok {
		t.Fatalf("expected JSON-RPC error, got %v", out)
	}
}

func toText(t *testing.T, result map[string]any) string {
	t.Helper()
	blocks, _ := result["content"].([]any)
	var sb strings.Builder
	for _, block := range blocks {
		m, _ := block.(map[string]any)
		if text, ok := m["text"].(string); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}
