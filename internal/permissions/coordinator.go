package permissions

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
)

// Caller issues a bridge-to-client request and blocks for the reply. The
// transport satisfies this.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// ToolRequest is one can_use_tool evaluation. The callback that builds it
// runs off the backend ingress loop, so the coordinator is free to block on
// the client round-trip.
type ToolRequest struct {
	SessionID string
	Mode      Mode
	Checker   *Checker
	ToolName  string
	RawInput  json.RawMessage
	Input     map[string]any
	// ToolCall is the display form shown to the user in the permission
	// prompt (title, kind, locations).
	ToolCall acp.SessionUpdate
	// OnModeChange applies a mode switch approved through ExitPlanMode.
	OnModeChange func(Mode)
}

type pendingRequest struct {
	sessionID string
	resolve   func(acp.PermissionOutcome)
}

// Coordinator bridges the backend's asynchronous can_use_tool callback to an
// ACP session/request_permission round-trip. Every outstanding request has a
// single-shot slot; a slot resolves exactly once, via the client's reply,
// session cancellation, or context expiry.
type Coordinator struct {
	logger *logging.Logger
	caller Caller

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func NewCoordinator(caller Caller, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		logger:  logger,
		caller:  caller,
		pending: map[string]*pendingRequest{},
	}
}

// CanUseTool evaluates one tool invocation: mode shortcuts first, then the
// configured rule set, then — only when the result is "ask" — the client
// round-trip.
func (c *Coordinator) CanUseTool(ctx context.Context, req ToolRequest) claude.PermissionResult {
	name := StripToolPrefix(req.ToolName)

	if name == "ExitPlanMode" {
		return c.exitPlanMode(ctx, req)
	}

	if req.Checker != nil {
		switch result := req.Checker.Check(name, req.Input); result.Decision {
		case DecisionDeny:
			return claude.Deny("Denied by rule: " + result.Rule)
		case DecisionAllow:
			return claude.Allow(req.RawInput)
		}
	}

	if reason, blocked := req.Mode.Blocks(name, req.Input); blocked {
		return claude.Deny(reason)
	}
	if req.Mode.AutoApproves(name, req.Input) {
		return claude.Allow(req.RawInput)
	}
	if interactionTools[name] {
		return claude.Allow(req.RawInput)
	}
	if req.Mode == ModeDontAsk {
		return claude.Deny("Tool not pre-approved by settings rules in dontAsk mode")
	}

	outcome := c.ask(ctx, req.SessionID, req.ToolCall, defaultOptions())
	switch {
	case outcome.OptionID == acp.OptionAllowAlways:
		if req.Checker != nil {
			req.Checker.AddAllowRuleForToolCall(name, req.Input)
		}
		return claude.Allow(req.RawInput)
	case outcome.OptionID == acp.OptionAllowOnce:
		return claude.Allow(req.RawInput)
	case outcome.Outcome == "cancelled":
		return claude.DenyInterrupt("Permission request cancelled")
	default:
		return claude.Deny("User denied permission")
	}
}

// exitPlanMode shows the "Ready to code?" prompt regardless of the current
// mode; approval switches the session out of plan mode.
func (c *Coordinator) exitPlanMode(ctx context.Context, req ToolRequest) claude.PermissionResult {
	toolCall := req.ToolCall
	toolCall.Title = "Ready to code?"
	if plan, ok := req.Input["plan"].(string); ok && strings.TrimSpace(plan) != "" {
		block := acp.TextBlock(plan)
		toolCall.ToolOutput = []acp.ToolCallContent{{Type: "content", Content: &block}}
	}

	options := []acp.PermissionOption{
		{OptionID: string(ModeAcceptEdits), Name: "Yes, and auto-accept edits", Kind: acp.OptionAllowAlways},
		{OptionID: string(ModeDefault), Name: "Yes, and manually approve edits", Kind: acp.OptionAllowOnce},
		{OptionID: string(ModePlan), Name: "No, keep planning", Kind: acp.OptionRejectOnce},
	}

	outcome := c.ask(ctx, req.SessionID, toolCall, options)
	switch outcome.OptionID {
	case string(ModeAcceptEdits), string(ModeDefault):
		if req.OnModeChange != nil {
			req.OnModeChange(Mode(outcome.OptionID))
		}
		return claude.Allow(req.RawInput)
	default:
		if outcome.Outcome == "cancelled" {
			return claude.DenyInterrupt("Plan mode continued. You can keep working on your plan.")
		}
		return claude.Deny("Plan mode continued. You can keep working on your plan.")
	}
}

// ask performs the client round-trip. The reply path and the cancellation
// path race on the same slot; whichever resolves first wins and the slot is
// removed either way, so no slot leaks.
func (c *Coordinator) ask(ctx context.Context, sessionID string, toolCall acp.SessionUpdate, options []acp.PermissionOption) acp.PermissionOutcome {
	requestID := uuid.NewString()
	slot := make(chan acp.PermissionOutcome, 1)
	var once sync.Once
	resolve := func(outcome acp.PermissionOutcome) {
		once.Do(func() { slot <- outcome })
	}

	c.mu.Lock()
	c.pending[requestID] = &pendingRequest{sessionID: sessionID, resolve: resolve}
	c.mu.Unlock()

	go func() {
		raw, err := c.caller.Call(ctx, "session/request_permission", acp.RequestPermissionRequest{
			SessionID: sessionID,
			ToolCall:  toolCall,
			Options:   options,
		})
		var outcome acp.PermissionOutcome
		if err != nil {
			c.logger.Warn("permission request failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
			outcome = acp.PermissionOutcome{Outcome: "cancelled"}
		} else {
			var resp acp.RequestPermissionResponse
			if uerr := json.Unmarshal(raw, &resp); uerr != nil {
				c.logger.Warn("invalid permission response", map[string]any{"error": uerr.Error()})
				outcome = acp.PermissionOutcome{Outcome: "cancelled"}
			} else {
				outcome = resp.Outcome
			}
		}
		c.resolveRequest(requestID, outcome)
	}()

	select {
	case outcome := <-slot:
		return outcome
	case <-ctx.Done():
		c.resolveRequest(requestID, acp.PermissionOutcome{Outcome: "cancelled"})
		return <-slot
	}
}

func (c *Coordinator) resolveRequest(requestID string, outcome acp.PermissionOutcome) {
	c.mu.Lock()
	pending, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if ok {
		pending.resolve(outcome)
	}
}

// CancelSession resolves every pending request for the session to a
// cancelled outcome; the awaiting backend callbacks observe Deny with
// interrupt set.
func (c *Coordinator) CancelSession(sessionID string) {
	c.mu.Lock()
	cancelled := make([]*pendingRequest, 0)
	for id, pending := range c.pending {
		if pending.sessionID == sessionID {
			cancelled = append(cancelled, pending)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, pending := range cancelled {
		pending.resolve(acp.PermissionOutcome{Outcome: "cancelled"})
	}
	if len(cancelled) > 0 {
		c.logger.Debug("session permission requests cancelled", map[string]any{"sessionId": sessionID, "count": len(cancelled)})
	}
}

// PendingCount supports tests and shutdown accounting.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func defaultOptions() []acp.PermissionOption {
	return []acp.PermissionOption{
		{OptionID: acp.OptionAllowOnce, Name: "Allow", Kind: acp.OptionAllowOnce},
		{OptionID: acp.OptionAllowAlways, Name: "Always allow", Kind: acp.OptionAllowAlways},
		{OptionID: acp.OptionRejectOnce, Name: "Reject", Kind: acp.OptionRejectOnce},
	}
}
