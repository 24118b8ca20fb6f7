// Package session owns per-editor-session state and the turn loop that
// drains the backend message stream.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/content"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/permissions"
	"github.com/soddy-dev/claude-code-acp/internal/toolcall"
)

var ErrBackendClosed = errors.New("session: backend stream ended without a result")

// Sink receives outbound notifications; the transport satisfies this.
type Sink interface {
	SendNotification(method string, params any)
}

// Usage accumulates token counters and cost across a session's turns.
type Usage struct {
	InputTokens              int64   `json:"inputTokens"`
	OutputTokens             int64   `json:"outputTokens"`
	CacheReadInputTokens     int64   `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int64   `json:"cacheCreationInputTokens"`
	TotalCostUSD             float64 `json:"totalCostUsd"`
}

// Session mediates all traffic between the client and one backend handle.
// The backend handle is exclusively owned; nothing touches it after
// Disconnect returns.
type Session struct {
	ID  string
	Cwd string

	logger  *logging.Logger
	sink    Sink
	backend *claude.Client
	checker *permissions.Checker
	cache   *toolcall.Cache

	cancelled atomic.Bool

	modeMu sync.RWMutex
	mode   permissions.Mode

	// notifications emitted during the current turn; reset at turn start.
	notifications atomic.Int64

	usageMu sync.Mutex
	usage   Usage

	disconnectOnce sync.Once
}

func New(id, cwd string, backend *claude.Client, checker *permissions.Checker, sink Sink, logger *logging.Logger) *Session {
	return &Session{
		ID:      id,
		Cwd:     cwd,
		logger:  logger,
		sink:    sink,
		backend: backend,
		checker: checker,
		cache:   toolcall.NewCache(),
		mode:    permissions.ModeDefault,
	}
}

// Prompt runs one turn: it clears the cancel flag, resets the notification
// counter, forwards the content to the backend, and drains the stream,
// enqueueing one notification per converted update. It returns the ACP stop
// reason once the terminal result arrives or cancellation is observed.
func (s *Session) Prompt(ctx context.Context, blocks []claude.ContentBlock) (string, error) {
	s.cancelled.Store(false)
	s.notifications.Store(0)

	stream, err := s.backend.Prompt(ctx, blocks)
	if err != nil {
		return "", err
	}

	gotResult := false
	stopReason := acp.StopEndTurn
	for msg := range stream {
		if s.cancelled.Load() {
			// Stop consuming; in-flight backend output for this turn is
			// dropped. The tool-use cache keeps its entries so results
			// surfacing next turn still correlate.
			break
		}

		if msg.Type == claude.MessageTypeResult {
			gotResult = true
			s.recordUsage(msg)
			stopReason = stopReasonFor(msg.Subtype, s.logger)
			continue
		}

		for _, update := range content.ConvertMessage(msg, s.cache) {
			s.Notify(update)
		}
	}

	if s.cancelled.Load() {
		return acp.StopCancelled, nil
	}
	if !gotResult {
		return "", ErrBackendClosed
	}
	return stopReason, nil
}

// Interrupt sets the cancel flag and asks the backend to stop; idempotent.
func (s *Session) Interrupt(ctx context.Context) {
	if s.cancelled.Swap(true) {
		return
	}
	if err := s.backend.Interrupt(ctx); err != nil {
		s.logger.Warn("backend interrupt failed", map[string]any{"sessionId": s.ID, "error": err.Error()})
	}
}

func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Mode returns the permission mode as most recently written.
func (s *Session) Mode() permissions.Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// SetMode writes the mode, forwards it to the backend, and tells the client.
func (s *Session) SetMode(ctx context.Context, mode permissions.Mode) error {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()

	if err := s.backend.SetPermissionMode(ctx, string(mode)); err != nil {
		return fmt.Errorf("set permission mode: %w", err)
	}
	s.Notify(acp.SessionUpdate{SessionUpdate: "current_mode_update", CurrentModeID: string(mode)})
	return nil
}

// SetModel forwards a model switch to the backend; idempotent.
func (s *Session) SetModel(ctx context.Context, model string) error {
	return s.backend.SetModel(ctx, model)
}

// Disconnect tears down the backend handle. The session is unusable after.
func (s *Session) Disconnect() {
	s.disconnectOnce.Do(func() {
		if err := s.backend.Close(); err != nil {
			s.logger.Debug("backend close", map[string]any{"sessionId": s.ID, "error": err.Error()})
		}
	})
}

// Notify enqueues one session/update notification and bumps the per-turn
// counter.
func (s *Session) Notify(update acp.SessionUpdate) {
	s.sink.SendNotification("session/update", acp.SessionNotification{SessionID: s.ID, Update: update})
	s.notifications.Add(1)
}

// NotificationCount reports the notifications enqueued during the current
// turn.
func (s *Session) NotificationCount() int64 {
	return s.notifications.Load()
}

func (s *Session) Usage() Usage {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	return s.usage
}

func (s *Session) Cache() *toolcall.Cache { return s.cache }

func (s *Session) Checker() *permissions.Checker { return s.checker }

// CanUseTool is the backend permission callback. It runs on a spawned task
// inside the backend client, never on its ingress loop.
func (s *Session) CanUseTool(coordinator *permissions.Coordinator) claude.CanUseToolFunc {
	return func(ctx context.Context, toolName string, input json.RawMessage, toolUseID string) claude.PermissionResult {
		if s.cancelled.Load() {
			return claude.DenyInterrupt("Turn cancelled")
		}

		var parsed map[string]any
		_ = json.Unmarshal(input, &parsed)

		info := content.DescribeToolUse(toolName, input)
		toolCall := acp.SessionUpdate{
			SessionUpdate: "tool_call_update",
			ToolCallID:    toolUseID,
			Title:         info.Title,
			Kind:          info.Kind,
			RawInput:      json.RawMessage(input),
			Locations:     info.Locations,
		}

		return coordinator.CanUseTool(ctx, permissions.ToolRequest{
			SessionID: s.ID,
			Mode:      s.Mode(),
			Checker:   s.checker,
			ToolName:  toolName,
			RawInput:  input,
			Input:     parsed,
			ToolCall:  toolCall,
			OnModeChange: func(mode permissions.Mode) {
				s.modeMu.Lock()
				s.mode = mode
				s.modeMu.Unlock()
				s.Notify(acp.SessionUpdate{SessionUpdate: "current_mode_update", CurrentModeID: string(mode)})
			},
		})
	}
}

func (s *Session) recordUsage(msg claude.Message) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	if msg.Usage != nil {
		s.usage.InputTokens += msg.Usage.InputTokens
		s.usage.OutputTokens += msg.Usage.OutputTokens
		s.usage.CacheReadInputTokens += msg.Usage.CacheReadInputTokens
		s.usage.CacheCreationInputTokens += msg.Usage.CacheCreationInputTokens
	}
	s.usage.TotalCostUSD += msg.TotalCostUSD
}

// stopReasonFor maps the terminal result subtype onto the ACP stop reason.
// Anything other than success maps to refusal: reporting end_turn for an
// aborted turn makes the client accept a new prompt while backend state is
// still settling.
func stopReasonFor(subtype string, logger *logging.Logger) string {
	switch subtype {
	case claude.ResultSuccess:
		return acp.StopEndTurn
	case claude.ResultErrorDuringExecution, claude.ResultErrorMaxTurns:
		return acp.StopRefusal
	default:
		logger.Warn("unknown result subtype", map[string]any{"subtype": subtype})
		return acp.StopRefusal
	}
}
