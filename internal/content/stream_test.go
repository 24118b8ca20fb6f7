package content

import (
	"encoding/json"
	"testing"

	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/toolcall"
)

func assistantMessage(blocks ...claude.ContentBlock) claude.Message {
	return claude.Message{
		Type:    claude.MessageTypeAssistant,
		Message: &claude.APIMessage{Role: "assistant", Content: blocks},
	}
}

func TestConvertAssistantText(t *testing.T) {
	cache := toolcall.NewCache()
	updates := ConvertMessage(assistantMessage(claude.ContentBlock{Type: "text", Text: "hello"}), cache)
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].SessionUpdate != "agent_message_chunk" || updates[0].Content.Text != "hello" {
		t.Fatalf("unexpected update: %+v", updates[0])
	}
}

func TestConvertAssistantThinking(t *testing.T) {
	cache := toolcall.NewCache()
	updates := ConvertMessage(assistantMessage(claude.ContentBlock{Type: "thinking", Thinking: "hmm"}), cache)
	if len(updates) != 1 || updates[0].SessionUpdate != "agent_thought_chunk" {
		t.Fatalf("unexpected updates: %+v", updates)
	}
}

func TestConvertToolUsePopulatesCache(t *testing.T) {
	cache := toolcall.NewCache()
	input := json.RawMessage(`{"file_path":"/tmp/a.txt"}`)
	updates := ConvertMessage(assistantMessage(claude.ContentBlock{
		Type:  "tool_use",
		ID:    "toolu_01",
		Name:  "mcp__acp__Read",
		Input: input,
	}), cache)

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	update := updates[0]
	if update.SessionUpdate != "tool_call" || update.ToolCallID != "toolu_01" {
		t.Fatalf("unexpected update: %+v", update)
	}
	if update.Kind != "read" {
		t.Fatalf("expected kind read, got %s", update.Kind)
	}
	if update.Title != "Read /tmp/a.txt" {
		t.Fatalf("unexpected title: %s", update.Title)
	}
	if len(update.Locations) != 1 || update.Locations[0].Path != "/tmp/a.txt" {
		t.Fatalf("unexpected locations: %+v", update.Locations)
	}

	entry, ok := cache.Lookup("toolu_01")
	if !ok {
		t.Fatal("tool-use cache entry missing at the moment of emission")
	}
	if entry.Name != "mcp__acp__Read" || entry.Kind != "read" {
		t.Fatalf("unexpected cache entry: %+v", entry)
	}
}

func TestConvertToolResultUsesCache(t *testing.T) {
	cache := toolcall.NewCache()
	ConvertMessage(assistantMessage(claude.ContentBlock{
		Type:  "tool_use",
		ID:    "toolu_02",
		Name:  "mcp__acp__Bash",
		Input: json.RawMessage(`{"command":"ls"}`),
	}), cache)

	isError := false
	updates := ConvertMessage(claude.Message{
		Type: claude.MessageTypeUser,
		Message: &claude.APIMessage{Role: "user", Content: []claude.ContentBlock{{
			Type:      "tool_result",
			ToolUseID: "toolu_02",
			Content:   json.RawMessage(`"file1\nfile2"`),
			IsError:   &isError,
		}}},
	}, cache)

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	update := updates[0]
	if update.SessionUpdate != "tool_call_update" || update.ToolCallID != "toolu_02" {
		t.Fatalf("unexpected update: %+v", update)
	}
	if update.Status != "completed" {
		t.Fatalf("expected completed status, got %s", update.Status)
	}
	if len(update.ToolOutput) != 1 || update.ToolOutput[0].Content.Text != "file1\nfile2" {
		t.Fatalf("unexpected tool output: %+v", update.ToolOutput)
	}
}

func TestConvertToolResultErrorFlag(t *testing.T) {
	cache := toolcall.NewCache()
	cache.Record("toolu_03", "mcp__acp__Bash", "execute", nil)

	isError := true
	updates := ConvertMessage(claude.Message{
		Type: claude.MessageTypeUser,
		Message: &claude.APIMessage{Role: "user", Content: []claude.ContentBlock{{
			Type:      "tool_result",
			ToolUseID: "toolu_03",
			Content:   json.RawMessage(`"boom"`),
			IsError:   &isError,
		}}},
	}, cache)

	if updates[0].Status != "error" {
		t.Fatalf("expected error status, got %s", updates[0].Status)
	}
}

func TestConvertStreamDeltas(t *testing.T) {
	cache := toolcall.NewCache()

	text := ConvertMessage(claude.Message{
		Type:  claude.MessageTypeStreamEvent,
		Event: &claude.StreamEvent{Type: "content_block_delta", Delta: &claude.EventDelta{Type: "text_delta", Text: "par"}},
	}, cache)
	if len(text) != 1 || text[0].SessionUpdate != "agent_message_chunk" || text[0].Content.Text != "par" {
		t.Fatalf("unexpected text delta conversion: %+v", text)
	}

	thinking := ConvertMessage(claude.Message{
		Type:  claude.MessageTypeStreamEvent,
		Event: &claude.StreamEvent{Type: "content_block_delta", Delta: &claude.EventDelta{Type: "thinking_delta", Thinking: "mull"}},
	}, cache)
	if len(thinking) != 1 || thinking[0].SessionUpdate != "agent_thought_chunk" {
		t.Fatalf("unexpected thinking delta conversion: %+v", thinking)
	}
}

func TestSystemMessagesSuppressed(t *testing.T) {
	cache := toolcall.NewCache()
	if updates := ConvertMessage(claude.Message{Type: claude.MessageTypeSystem, Subtype: "init"}, cache); len(updates) != 0 {
		t.Fatalf("system message produced %d updates", len(updates))
	}
}

func TestResultMessagesNotTranslated(t *testing.T) {
	cache := toolcall.NewCache()
	msg := claude.Message{Type: claude.MessageTypeResult, Subtype: claude.ResultSuccess}
	if updates := ConvertMessage(msg, cache); len(updates) != 0 {
		t.Fatalf("result message produced %d updates", len(updates))
	}
}

func TestTodoWriteBecomesPlanUpdate(t *testing.T) {
	cache := toolcall.NewCache()
	updates := ConvertMessage(assistantMessage(claude.ContentBlock{
		Type:  "tool_use",
		ID:    "toolu_plan",
		Name:  "TodoWrite",
		Input: json.RawMessage(`{"todos":[{"content":"write tests","status":"pending"},{"content":"ship","status":"in_progress"}]}`),
	}), cache)

	if len(updates) != 1 || updates[0].SessionUpdate != "plan" {
		t.Fatalf("expected a plan update, got %+v", updates)
	}
	if len(updates[0].Entries) != 2 || updates[0].Entries[0].Content != "write tests" {
		t.Fatalf("unexpected plan entries: %+v", updates[0].Entries)
	}
	if _, ok := cache.Lookup("toolu_plan"); !ok {
		t.Fatal("expected the todo tool-use to be cached for its result")
	}
}

func TestDescribeToolUseKinds(t *testing.T) {
	cases := []struct {
		tool string
		kind string
	}{
		{"Read", "read"},
		{"Write", "edit"},
		{"Edit", "edit"},
		{"Bash", "execute"},
		{"Grep", "search"},
		{"Glob", "search"},
		{"WebFetch", "fetch"},
		{"mcp__acp__Bash", "execute"},
		{"SomethingElse", "other"},
	}
	for _, tc := range cases {
		if info := DescribeToolUse(tc.tool, nil); info.Kind != tc.kind {
			t.Errorf("DescribeToolUse(%s) kind = %s, want %s", tc.tool, info.Kind, tc.kind)
		}
	}
}

func TestDescribeBashUsesCommandAsTitle(t *testing.T) {
	info := DescribeToolUse("Bash", json.RawMessage(`{"command":"ls -la"}`))
	if info.Title != "ls -la" {
		t.Fatalf("unexpected title: %s", info.Title)
	}
}
