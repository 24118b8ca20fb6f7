package acp

import "encoding/json"

// Wire types for the Agent Client Protocol surface the bridge speaks.
// Field names follow the ACP schema (camelCase over JSON-RPC).

type Implementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version"`
}

type FileSystemCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

type ClientCapabilities struct {
	FS       *FileSystemCapability `json:"fs,omitempty"`
	Terminal bool                  `json:"terminal,omitempty"`
}

type InitializeRequest struct {
	ProtocolVersion    int                `json:"protocolVersion"`
	ClientInfo         *Implementation    `json:"clientInfo,omitempty"`
	ClientCapabilities ClientCapabilities `json:"clientCapabilities,omitempty"`
}

type PromptCapabilities struct {
	Image           bool `json:"image"`
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
}

type AgentCapabilities struct {
	LoadSession        bool               `json:"loadSession"`
	PromptCapabilities PromptCapabilities `json:"promptCapabilities"`
}

type InitializeResponse struct {
	ProtocolVersion   int               `json:"protocolVersion"`
	AgentCapabilities AgentCapabilities `json:"agentCapabilities"`
	AgentInfo         Implementation    `json:"agentInfo"`
	AuthMethods       []AuthMethod      `json:"authMethods"`
}

type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionMeta carries the recognized `_meta` keys on session/new and
// session/load.
type SessionMeta struct {
	SystemPrompt *SystemPromptMeta `json:"systemPrompt,omitempty"`
	ClaudeCode   *ClaudeCodeMeta   `json:"claudeCode,omitempty"`
	DisableTools bool              `json:"disableBuiltInTools,omitempty"`
}

type SystemPromptMeta struct {
	Append  string `json:"append,omitempty"`
	Replace string `json:"replace,omitempty"`
}

type ClaudeCodeMeta struct {
	Options *ClaudeCodeOptions `json:"options,omitempty"`
}

type ClaudeCodeOptions struct {
	Resume string `json:"resume,omitempty"`
}

type NewSessionRequest struct {
	Cwd        string           `json:"cwd"`
	McpServers []map[string]any `json:"mcpServers"`
	Meta       *SessionMeta     `json:"_meta,omitempty"`
}

type NewSessionResponse struct {
	SessionID string             `json:"sessionId"`
	Modes     *SessionModeState  `json:"modes,omitempty"`
	Models    *SessionModelState `json:"models,omitempty"`
}

type LoadSessionRequest struct {
	SessionID  string           `json:"sessionId"`
	Cwd        string           `json:"cwd"`
	McpServers []map[string]any `json:"mcpServers"`
	Meta       *SessionMeta     `json:"_meta,omitempty"`
}

type LoadSessionResponse struct {
	Modes  *SessionModeState  `json:"modes,omitempty"`
	Models *SessionModelState `json:"models,omitempty"`
}

type SetSessionModeRequest struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

type SetSessionModeResponse struct {
	ModeID string `json:"modeId"`
}

type SetSessionModelRequest struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

type SetSessionModelResponse struct {
	ModelID string `json:"modelId"`
}

type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

type PromptResponse struct {
	StopReason string `json:"stopReason"`
}

// Stop reasons for a turn.
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopRefusal   = "refusal"
	StopCancelled = "cancelled"
)

type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

type ReadTextFileRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Line      int    `json:"line,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type ReadTextFileResponse struct {
	Content string `json:"content"`
}

type WriteTextFileRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

type WriteTextFileResponse struct{}

// ContentBlock is the ACP content union: text, image, audio, resource,
// resource_link.
type ContentBlock struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	Data        string            `json:"data,omitempty"`
	MimeType    string            `json:"mimeType,omitempty"`
	URI         string            `json:"uri,omitempty"`
	Name        string            `json:"name,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Resource    *EmbeddedResource `json:"resource,omitempty"`
	Annotations map[string]any    `json:"annotations,omitempty"`
}

type EmbeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// SessionUpdate is the inner payload of a session/update notification.
// SessionUpdate discriminates the variant; only the fields for that variant
// are populated. The "content" key is shared on the wire between the chunk
// variants (a single block) and the tool-call variants (a list), so
// marshalling is done by hand.
type SessionUpdate struct {
	SessionUpdate string

	// agent_message_chunk, agent_thought_chunk, user_message_chunk
	Content *ContentBlock

	// tool_call, tool_call_update
	ToolCallID string
	Title      string
	Kind       string
	Status     string
	RawInput   any
	RawOutput  any
	ToolOutput []ToolCallContent
	Locations  []ToolCallLocation

	// current_mode_update
	CurrentModeID string

	// available_commands_update
	AvailableCommands []AvailableCommand

	// plan
	Entries []PlanEntry
}

func (u SessionUpdate) MarshalJSON() ([]byte, error) {
	out := map[string]any{"sessionUpdate": u.SessionUpdate}
	switch u.SessionUpdate {
	case "agent_message_chunk", "agent_thought_chunk", "user_message_chunk":
		out["content"] = u.Content
	case "tool_call", "tool_call_update":
		out["toolCallId"] = u.ToolCallID
		if u.Title != "" {
			out["title"] = u.Title
		}
		if u.Kind != "" {
			out["kind"] = u.Kind
		}
		if u.Status != "" {
			out["status"] = u.Status
		}
		if u.RawInput != nil {
			out["rawInput"] = u.RawInput
		}
		if u.RawOutput != nil {
			out["rawOutput"] = u.RawOutput
		}
		if len(u.ToolOutput) > 0 {
			out["content"] = u.ToolOutput
		}
		if len(u.Locations) > 0 {
			out["locations"] = u.Locations
		}
	case "current_mode_update":
		out["currentModeId"] = u.CurrentModeID
	case "available_commands_update":
		out["availableCommands"] = u.AvailableCommands
	case "plan":
		out["entries"] = u.Entries
	}
	return json.Marshal(out)
}

type SessionNotification struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

type ToolCallContent struct {
	Type    string        `json:"type"`
	Content *ContentBlock `json:"content,omitempty"`
}

type ToolCallLocation struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// Tool call statuses.
const (
	ToolStatusPending    = "pending"
	ToolStatusInProgress = "in_progress"
	ToolStatusCompleted  = "completed"
	ToolStatusFailed     = "error"
)

type PlanEntry struct {
	Content  string `json:"content"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

type AvailableCommand struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Input       *AvailableCommandInput `json:"input,omitempty"`
}

type AvailableCommandInput struct {
	Hint string `json:"hint,omitempty"`
}

type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type SessionModeState struct {
	CurrentModeID  string        `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
}

type ModelInfo struct {
	ModelID string `json:"modelId"`
	Name    string `json:"name"`
}

type SessionModelState struct {
	CurrentModelID  string      `json:"currentModelId"`
	AvailableModels []ModelInfo `json:"availableModels"`
}

// Permission request round-trip.

type PermissionOption struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
}

// Permission option kinds.
const (
	OptionAllowOnce    = "allow_once"
	OptionAllowAlways  = "allow_always"
	OptionRejectOnce   = "reject_once"
	OptionRejectAlways = "reject_always"
)

type RequestPermissionRequest struct {
	SessionID string             `json:"sessionId"`
	ToolCall  SessionUpdate      `json:"toolCall"`
	Options   []PermissionOption `json:"options"`
}

type PermissionOutcome struct {
	Outcome  string `json:"outcome"`
	OptionID string `json:"optionId,omitempty"`
}

type RequestPermissionResponse struct {
	Outcome PermissionOutcome `json:"outcome"`
}
