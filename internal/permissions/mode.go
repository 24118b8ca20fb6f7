package permissions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode is the coarse policy knob governing default allow/deny/ask behavior
// for tool invocations.
type Mode string

const (
	ModeDefault     Mode = "default"
	ModeAcceptEdits Mode = "acceptEdits"
	ModePlan        Mode = "plan"
	ModeDontAsk     Mode = "dontAsk"
	ModeBypass      Mode = "bypassPermissions"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeDefault, ModeAcceptEdits, ModePlan, ModeDontAsk, ModeBypass:
		return Mode(s), true
	default:
		return "", false
	}
}

func AllModes() []Mode {
	return []Mode{ModeDefault, ModeAcceptEdits, ModePlan, ModeDontAsk, ModeBypass}
}

var readOnlyTools = map[string]bool{
	"Read":         true,
	"Glob":         true,
	"Grep":         true,
	"LS":           true,
	"NotebookRead": true,
}

var writeClassTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"Bash":         true,
	"NotebookEdit": true,
}

// Tools that drive the conversation itself rather than touch the host; they
// bypass mode gating entirely.
var interactionTools = map[string]bool{
	"AskUserQuestion": true,
	"Task":            true,
	"TodoWrite":       true,
	"SlashCommand":    true,
}

// AutoApproves reports whether the mode approves the tool without consulting
// rules or the user.
func (m Mode) AutoApproves(toolName string, input map[string]any) bool {
	switch m {
	case ModeAcceptEdits, ModeBypass:
		return true
	case ModePlan:
		return readOnlyTools[toolName]
	case ModeDefault:
		if readOnlyTools[toolName] {
			return true
		}
		if toolName == "Bash" {
			if cmd, ok := input["command"].(string); ok {
				return IsKnownSafeCommand(cmd)
			}
		}
		return false
	default:
		return false
	}
}

// Blocks reports a human-readable reason when the mode forbids the tool
// outright. Plan mode blocks write-class tools except writes under the plans
// directory.
func (m Mode) Blocks(toolName string, input map[string]any) (string, bool) {
	if m != ModePlan || !writeClassTools[toolName] {
		return "", false
	}

	if toolName != "Bash" {
		if path := inputFilePath(input); path != "" && isPlansDirectoryPath(path) {
			return "", false
		}
	}
	return fmt.Sprintf(
		"Tool %s is not allowed in plan mode (only read operations and writing to ~/.claude/plans/ are allowed)",
		toolName,
	), true
}

func inputFilePath(input map[string]any) string {
	for _, key := range []string{"file_path", "path", "notebook_path"} {
		if v, ok := input[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// isPlansDirectoryPath reports whether path points under ~/.claude/plans/.
func isPlansDirectoryPath(path string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	plansDir := filepath.Join(home, ".claude", "plans")

	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	if !filepath.IsAbs(path) {
		return false
	}

	cleaned := filepath.Clean(path)
	rel, err := filepath.Rel(plansDir, cleaned)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
