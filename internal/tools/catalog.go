package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/soddy-dev/claude-code-acp/internal/terminal"
)

// registerCatalog installs the built-in tools on the server. Input schemas
// are inferred from the typed argument structs.
func registerCatalog(server *mcp.Server, tctx Context) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "Read",
		Description: "Read a text file from the workspace, optionally a line range.",
	}, readTool(tctx))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "Write",
		Description: "Create or overwrite a text file in the workspace.",
	}, writeTool(tctx))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "Edit",
		Description: "Replace an exact string in a file.",
	}, editTool(tctx))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "Bash",
		Description: "Run a shell command, in the foreground or as a tracked background process.",
	}, bashTool(tctx))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "BashOutput",
		Description: "Fetch new output from a background shell started by Bash.",
	}, bashOutputTool(tctx))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "KillShell",
		Description: "Terminate a background shell started by Bash.",
	}, killShellTool(tctx))
}

type readInput struct {
	FilePath string `json:"file_path"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type writeInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type editInput struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

type bashInput struct {
	Command         string `json:"command"`
	Description     string `json:"description,omitempty"`
	TimeoutMs       int    `json:"timeout,omitempty"`
	RunInBackground bool   `json:"run_in_background,omitempty"`
}

type bashOutputInput struct {
	BashID string `json:"bash_id"`
}

type killShellInput struct {
	ShellID string `json:"shell_id"`
}

type toolHandler[In any] = mcp.ToolHandlerFor[In, any]

func textResult(text string) (*mcp.CallToolResultFor[any], error) {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func errorResult(format string, args ...any) (*mcp.CallToolResultFor[any], error) {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}, nil
}

// resolvePath anchors relative paths at the session cwd.
func resolvePath(tctx Context, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(tctx.Cwd, path)
}

func readTool(tctx Context) toolHandler[readInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[readInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		if in.FilePath == "" {
			return errorResult("file_path is required")
		}
		buf, err := os.ReadFile(resolvePath(tctx, in.FilePath))
		if err != nil {
			return errorResult("read %s: %v", in.FilePath, err)
		}

		text := string(buf)
		if in.Offset > 0 || in.Limit > 0 {
			lines := strings.Split(text, "\n")
			start := in.Offset
			if start > len(lines) {
				start = len(lines)
			}
			end := len(lines)
			if in.Limit > 0 && start+in.Limit < end {
				end = start + in.Limit
			}
			text = strings.Join(lines[start:end], "\n")
		}
		return textResult(text)
	}
}

func writeTool(tctx Context) toolHandler[writeInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[writeInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		if in.FilePath == "" {
			return errorResult("file_path is required")
		}
		path := resolvePath(tctx, in.FilePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errorResult("write %s: %v", in.FilePath, err)
		}
		if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
			return errorResult("write %s: %v", in.FilePath, err)
		}
		return textResult(fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.FilePath))
	}
}

func editTool(tctx Context) toolHandler[editInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[editInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		if in.FilePath == "" {
			return errorResult("file_path is required")
		}
		if in.OldString == in.NewString {
			return errorResult("old_string and new_string are identical")
		}
		path := resolvePath(tctx, in.FilePath)
		buf, err := os.ReadFile(path)
		if err != nil {
			return errorResult("edit %s: %v", in.FilePath, err)
		}
		text := string(buf)

		count := strings.Count(text, in.OldString)
		if count == 0 {
			return errorResult("old_string not found in %s", in.FilePath)
		}
		if count > 1 && !in.ReplaceAll {
			return errorResult("old_string occurs %d times in %s; pass replace_all or disambiguate", count, in.FilePath)
		}

		replacements := 1
		if in.ReplaceAll {
			replacements = count
		}
		text = strings.Replace(text, in.OldString, in.NewString, replacements)
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return errorResult("edit %s: %v", in.FilePath, err)
		}
		return textResult(fmt.Sprintf("Applied %d replacement(s) to %s", replacements, in.FilePath))
	}
}

const defaultBashTimeout = 2 * time.Minute

func bashTool(tctx Context) toolHandler[bashInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[bashInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		if strings.TrimSpace(in.Command) == "" {
			return errorResult("command is required")
		}

		timeout := defaultBashTimeout
		if in.TimeoutMs > 0 {
			timeout = time.Duration(in.TimeoutMs) * time.Millisecond
		}

		if in.RunInBackground {
			id, err := tctx.Processes.Start(tctx.SessionID, tctx.Cwd, in.Command, timeout)
			if err != nil {
				return errorResult("background command: %v", err)
			}
			return textResult(fmt.Sprintf("Command running in background with ID: %s", id))
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
		cmd.Dir = tctx.Cwd
		out, err := cmd.CombinedOutput()
		if runCtx.Err() == context.DeadlineExceeded {
			return errorResult("command timed out after %s\n%s", timeout, out)
		}
		if err != nil {
			return errorResult("command failed: %v\n%s", err, out)
		}
		return textResult(string(out))
	}
}

func bashOutputTool(tctx Context) toolHandler[bashOutputInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[bashOutputInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		output, status, exitCode, err := tctx.Processes.Output(in.BashID)
		if err != nil {
			return errorResult("%v", err)
		}
		header := fmt.Sprintf("status: %s", status)
		if status != terminal.StatusRunning {
			header = fmt.Sprintf("status: %s (exit code %d)", status, exitCode)
		}
		if output == "" {
			return textResult(header + "\n(no new output)")
		}
		return textResult(header + "\n" + output)
	}
}

func killShellTool(tctx Context) toolHandler[killShellInput] {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[killShellInput]) (*mcp.CallToolResultFor[any], error) {
		in := params.Arguments
		if err := tctx.Processes.Kill(in.ShellID); err != nil {
			return errorResult("%v", err)
		}
		return textResult(fmt.Sprintf("Killed %s", in.ShellID))
	}
}
