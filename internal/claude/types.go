package claude

import "encoding/json"

// Stream message types emitted by the Claude CLI in stream-json mode.
const (
	MessageTypeAssistant       = "assistant"
	MessageTypeUser            = "user"
	MessageTypeSystem          = "system"
	MessageTypeStreamEvent     = "stream_event"
	MessageTypeResult          = "result"
	MessageTypeControlRequest  = "control_request"
	MessageTypeControlResponse = "control_response"
)

// Result subtypes.
const (
	ResultSuccess              = "success"
	ResultErrorDuringExecution = "error_during_execution"
	ResultErrorMaxTurns        = "error_max_turns"
)

// Message is one decoded line of the CLI's output stream.
type Message struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// assistant / user
	Message *APIMessage `json:"message,omitempty"`

	// stream_event
	Event *StreamEvent `json:"event,omitempty"`

	// result
	IsError      bool    `json:"is_error,omitempty"`
	Result       string  `json:"result,omitempty"`
	SessionID    string  `json:"session_id,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
}

// APIMessage mirrors the Anthropic API message shape carried inside
// assistant and user stream messages.
type APIMessage struct {
	Role    string         `json:"role"`
	Model   string         `json:"model,omitempty"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is the SDK-side content union.
type ContentBlock struct {
	Type string `json:"type"`

	// text, thinking
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type StreamEvent struct {
	Type  string      `json:"type"`
	Index int         `json:"index,omitempty"`
	Delta *EventDelta `json:"delta,omitempty"`
}

type EventDelta struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// Control protocol envelopes exchanged with the CLI on the same stream.

type controlRequest struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id"`
	Request   controlRequestBody `json:"request"`
}

type controlRequestBody struct {
	Subtype string `json:"subtype"`

	// can_use_tool
	ToolName  string          `json:"tool_name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`

	// mcp_message
	ServerName string          `json:"server_name,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`

	// initialize / set_permission_mode / set_model
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Model        string   `json:"model,omitempty"`
	SDKMCP       []string `json:"sdkMcpServers,omitempty"`
}

type controlResponse struct {
	Type     string              `json:"type"`
	Response controlResponseBody `json:"response"`
}

type controlResponseBody struct {
	Subtype   string `json:"subtype"`
	RequestID string `json:"request_id"`
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PermissionResult is the outcome of a can_use_tool callback.
type PermissionResult struct {
	Allowed bool
	// UpdatedInput echoes (or rewrites) the tool input on allow.
	UpdatedInput json.RawMessage
	// Message explains a deny to the model.
	Message string
	// Interrupt asks the CLI to stop the turn alongside a deny.
	Interrupt bool
}

func Allow(input json.RawMessage) PermissionResult {
	return PermissionResult{Allowed: true, UpdatedInput: input}
}

func Deny(message string) PermissionResult {
	return PermissionResult{Message: message}
}

func DenyInterrupt(message string) PermissionResult {
	return PermissionResult{Message: message, Interrupt: true}
}

func (r PermissionResult) wireFormat() map[string]any {
	if r.Allowed {
		updated := r.UpdatedInput
		if len(updated) == 0 {
			updated = json.RawMessage(`{}`)
		}
		return map[string]any{"behavior": "allow", "updatedInput": updated}
	}
	out := map[string]any{"behavior": "deny", "message": r.Message}
	if r.Interrupt {
		out["interrupt"] = true
	}
	return out
}
