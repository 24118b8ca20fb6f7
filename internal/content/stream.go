package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/toolcall"
)

// ConvertMessage translates one backend stream message into zero or more
// session/update payloads. Tool-use blocks are recorded in the cache as a
// side effect so the matching tool-result — possibly messages or turns later
// — can be attributed.
func ConvertMessage(msg claude.Message, cache *toolcall.Cache) []acp.SessionUpdate {
	switch msg.Type {
	case claude.MessageTypeAssistant, claude.MessageTypeUser:
		if msg.Message == nil {
			return nil
		}
		updates := make([]acp.SessionUpdate, 0, len(msg.Message.Content))
		for _, block := range msg.Message.Content {
			if update, ok := convertBlock(msg.Type, block, cache); ok {
				updates = append(updates, update)
			}
		}
		return updates
	case claude.MessageTypeStreamEvent:
		if update, ok := convertStreamEvent(msg.Event); ok {
			return []acp.SessionUpdate{update}
		}
		return nil
	default:
		// System chatter is suppressed; the result message terminates the
		// turn and is consumed by the session loop, not translated.
		return nil
	}
}

func convertBlock(msgType string, block claude.ContentBlock, cache *toolcall.Cache) (acp.SessionUpdate, bool) {
	switch block.Type {
	case "text":
		if block.Text == "" {
			return acp.SessionUpdate{}, false
		}
		content := acp.TextBlock(block.Text)
		variant := "agent_message_chunk"
		if msgType == claude.MessageTypeUser {
			variant = "user_message_chunk"
		}
		return acp.SessionUpdate{SessionUpdate: variant, Content: &content}, true
	case "thinking":
		if block.Thinking == "" {
			return acp.SessionUpdate{}, false
		}
		content := acp.TextBlock(block.Thinking)
		return acp.SessionUpdate{SessionUpdate: "agent_thought_chunk", Content: &content}, true
	case "tool_use":
		if strings.TrimPrefix(block.Name, "mcp__acp__") == "TodoWrite" {
			if entries := planEntries(block.Input); entries != nil {
				cache.Record(block.ID, block.Name, "other", block.Input)
				return acp.SessionUpdate{SessionUpdate: "plan", Entries: entries}, true
			}
		}
		info := DescribeToolUse(block.Name, block.Input)
		cache.Record(block.ID, block.Name, info.Kind, block.Input)
		return acp.SessionUpdate{
			SessionUpdate: "tool_call",
			ToolCallID:    block.ID,
			Title:         info.Title,
			Kind:          info.Kind,
			Status:        acp.ToolStatusInProgress,
			RawInput:      json.RawMessage(block.Input),
			Locations:     info.Locations,
		}, true
	case "tool_result":
		status := acp.ToolStatusCompleted
		if block.IsError != nil && *block.IsError {
			status = acp.ToolStatusFailed
		}
		update := acp.SessionUpdate{
			SessionUpdate: "tool_call_update",
			ToolCallID:    block.ToolUseID,
			Status:        status,
		}
		if entry, known := cache.Lookup(block.ToolUseID); known &&
			strings.TrimPrefix(entry.Name, "mcp__acp__") == "TodoWrite" {
			// Todo updates surfaced as plan entries; their results carry
			// nothing the client renders.
			return acp.SessionUpdate{}, false
		}
		if _, known := cache.Lookup(block.ToolUseID); !known {
			// Nothing announced this id; stale results are still forwarded
			// so the client can reconcile, but without invented metadata.
			return update, true
		}
		if content, ok := toolResultContent(block.Content); ok {
			update.ToolOutput = content
		}
		if len(block.Content) > 0 {
			update.RawOutput = json.RawMessage(block.Content)
		}
		return update, true
	default:
		return acp.SessionUpdate{}, false
	}
}

func convertStreamEvent(event *claude.StreamEvent) (acp.SessionUpdate, bool) {
	if event == nil || event.Type != "content_block_delta" || event.Delta == nil {
		return acp.SessionUpdate{}, false
	}
	switch event.Delta.Type {
	case "text_delta":
		content := acp.TextBlock(event.Delta.Text)
		return acp.SessionUpdate{SessionUpdate: "agent_message_chunk", Content: &content}, true
	case "thinking_delta":
		content := acp.TextBlock(event.Delta.Thinking)
		return acp.SessionUpdate{SessionUpdate: "agent_thought_chunk", Content: &content}, true
	default:
		return acp.SessionUpdate{}, false
	}
}

// toolResultContent renders a tool result body as ACP tool-call content.
// The SDK sends either a bare string or a list of typed blocks.
func toolResultContent(raw json.RawMessage) ([]acp.ToolCallContent, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		block := acp.TextBlock(text)
		return []acp.ToolCallContent{{Type: "content", Content: &block}}, true
	}

	var blocks []claude.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, false
	}
	out := make([]acp.ToolCallContent, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			block := acp.TextBlock(b.Text)
			out = append(out, acp.ToolCallContent{Type: "content", Content: &block})
		}
	}
	return out, len(out) > 0
}

// planEntries maps a TodoWrite input onto ACP plan entries.
func planEntries(rawInput json.RawMessage) []acp.PlanEntry {
	var input struct {
		Todos []struct {
			Content string `json:"content"`
			Status  string `json:"status"`
		} `json:"todos"`
	}
	if err := json.Unmarshal(rawInput, &input); err != nil || len(input.Todos) == 0 {
		return nil
	}
	entries := make([]acp.PlanEntry, 0, len(input.Todos))
	for _, todo := range input.Todos {
		entries = append(entries, acp.PlanEntry{
			Content:  todo.Content,
			Priority: "medium",
			Status:   todo.Status,
		})
	}
	return entries
}

// ToolInfo is the human-facing description attached to tool_call updates.
type ToolInfo struct {
	Title     string
	Kind      string
	Locations []acp.ToolCallLocation
}

// DescribeToolUse infers a coarse kind plus a title and affected paths from
// the tool name and raw input. Names arrive with the embedded server prefix.
func DescribeToolUse(toolName string, rawInput json.RawMessage) ToolInfo {
	name := strings.TrimPrefix(toolName, "mcp__acp__")

	var input map[string]any
	_ = json.Unmarshal(rawInput, &input)

	info := ToolInfo{Title: name, Kind: toolKind(name)}
	switch name {
	case "Read":
		if path, ok := input["file_path"].(string); ok {
			info.Title = "Read " + path
			info.Locations = []acp.ToolCallLocation{{Path: path}}
		}
	case "Write", "Edit", "NotebookEdit":
		if path := firstString(input, "file_path", "path", "notebook_path"); path != "" {
			info.Title = name + " " + path
			info.Locations = []acp.ToolCallLocation{{Path: path}}
		}
	case "Bash":
		if desc, ok := input["description"].(string); ok && desc != "" {
			info.Title = desc
		} else if cmd, ok := input["command"].(string); ok && cmd != "" {
			info.Title = truncate(cmd, 80)
		}
	case "Grep":
		if pattern, ok := input["pattern"].(string); ok && pattern != "" {
			info.Title = fmt.Sprintf("grep %q", pattern)
		}
	case "Glob":
		if pattern, ok := input["pattern"].(string); ok && pattern != "" {
			info.Title = "glob " + pattern
		}
	case "WebFetch":
		if url, ok := input["url"].(string); ok && url != "" {
			info.Title = "Fetch " + url
		}
	}
	return info
}

func toolKind(name string) string {
	switch name {
	case "Read", "NotebookRead", "LS", "BashOutput":
		return "read"
	case "Write", "Edit", "NotebookEdit":
		return "edit"
	case "Bash", "KillShell":
		return "execute"
	case "Grep", "Glob":
		return "search"
	case "WebFetch", "WebSearch":
		return "fetch"
	default:
		return "other"
	}
}

func firstString(input map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
