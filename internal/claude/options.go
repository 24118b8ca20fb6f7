package claude

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
)

// CanUseToolFunc is invoked for every tool invocation the CLI wants to make.
// It runs on its own goroutine, never on the ingress loop, so implementations
// may block on a client round-trip.
type CanUseToolFunc func(ctx context.Context, toolName string, input json.RawMessage, toolUseID string) PermissionResult

// ToolServer handles MCP JSON-RPC messages for an in-process tool server
// announced to the CLI.
type ToolServer interface {
	Name() string
	HandleMessage(ctx context.Context, message json.RawMessage) (json.RawMessage, error)
}

// Options configures one CLI subprocess.
type Options struct {
	// Bin is the CLI executable; defaults to "claude".
	Bin string
	Cwd string

	// Resume restores a prior CLI conversation by its opaque session id.
	Resume string

	SystemPromptAppend  string
	SystemPromptReplace string

	Model             string
	SmallFastModel    string
	MaxThinkingTokens int

	PermissionMode string

	CanUseTool CanUseToolFunc
	ToolServer ToolServer

	// ExtraEnv is appended to the subprocess environment.
	ExtraEnv []string
}

// EnvOptions reads the model-related environment variables and folds them
// into a fresh Options value. Unset variables leave the CLI's defaults alone.
func EnvOptions() Options {
	opts := Options{Bin: "claude"}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		opts.Model = v
	}
	if v := os.Getenv("ANTHROPIC_SMALL_FAST_MODEL"); v != "" {
		opts.SmallFastModel = v
	}
	if v := os.Getenv("MAX_THINKING_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxThinkingTokens = n
		}
	}
	for _, key := range []string{"ANTHROPIC_BASE_URL", "ANTHROPIC_AUTH_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			opts.ExtraEnv = append(opts.ExtraEnv, key+"="+v)
		}
	}
	return opts
}

func (o Options) cliArgs() []string {
	args := []string{
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--include-partial-messages",
		"--verbose",
	}
	if o.Resume != "" {
		args = append(args, "--resume", o.Resume)
	}
	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.PermissionMode != "" {
		args = append(args, "--permission-mode", o.PermissionMode)
	}
	if o.SystemPromptReplace != "" {
		args = append(args, "--system-prompt", o.SystemPromptReplace)
	} else if o.SystemPromptAppend != "" {
		args = append(args, "--append-system-prompt", o.SystemPromptAppend)
	}
	if o.ToolServer != nil {
		cfg, _ := json.Marshal(map[string]any{
			"mcpServers": map[string]any{
				o.ToolServer.Name(): map[string]any{"type": "sdk", "name": o.ToolServer.Name()},
			},
		})
		args = append(args, "--mcp-config", string(cfg))
		args = append(args, "--permission-prompt-tool", "stdio")
	}
	return args
}

func (o Options) env() []string {
	env := os.Environ()
	if o.SmallFastModel != "" {
		env = append(env, "ANTHROPIC_SMALL_FAST_MODEL="+o.SmallFastModel)
	}
	if o.MaxThinkingTokens > 0 {
		env = append(env, "MAX_THINKING_TOKENS="+strconv.Itoa(o.MaxThinkingTokens))
	}
	return append(env, o.ExtraEnv...)
}
