package acp

import (
	"encoding/json"
	"testing"
)

func marshalUpdate(t *testing.T, u SessionUpdate) map[string]any {
	t.Helper()
	buf, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf, &out); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	return out
}

func TestMessageChunkMarshalsContentObject(t *testing.T) {
	content := TextBlock("hello")
	out := marshalUpdate(t, SessionUpdate{SessionUpdate: "agent_message_chunk", Content: &content})

	if out["sessionUpdate"] != "agent_message_chunk" {
		t.Fatalf("unexpected discriminator: %v", out["sessionUpdate"])
	}
	body, ok := out["content"].(map[string]any)
	if !ok || body["text"] != "hello" {
		t.Fatalf("unexpected content: %v", out["content"])
	}
}

func TestToolCallMarshalsContentList(t *testing.T) {
	block := TextBlock("result text")
	out := marshalUpdate(t, SessionUpdate{
		SessionUpdate: "tool_call_update",
		ToolCallID:    "toolu_1",
		Status:        ToolStatusCompleted,
		ToolOutput:    []ToolCallContent{{Type: "content", Content: &block}},
	})

	if out["toolCallId"] != "toolu_1" || out["status"] != "completed" {
		t.Fatalf("unexpected fields: %v", out)
	}
	list, ok := out["content"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected content list, got %v", out["content"])
	}
}

func TestToolCallOmitsEmptyFields(t *testing.T) {
	out := marshalUpdate(t, SessionUpdate{SessionUpdate: "tool_call", ToolCallID: "toolu_2"})
	for _, key := range []string{"title", "kind", "status", "rawInput", "rawOutput", "content", "locations"} {
		if _, present := out[key]; present {
			t.Errorf("expected %s to be omitted when empty", key)
		}
	}
}

func TestCurrentModeUpdateMarshals(t *testing.T) {
	out := marshalUpdate(t, SessionUpdate{SessionUpdate: "current_mode_update", CurrentModeID: "plan"})
	if out["currentModeId"] != "plan" {
		t.Fatalf("unexpected payload: %v", out)
	}
}
