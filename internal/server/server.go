// Package server dispatches the bridge's ACP method surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/config"
	"github.com/soddy-dev/claude-code-acp/internal/content"
	"github.com/soddy-dev/claude-code-acp/internal/errorfmt"
	"github.com/soddy-dev/claude-code-acp/internal/jsonrpc"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/permissions"
	"github.com/soddy-dev/claude-code-acp/internal/session"
	"github.com/soddy-dev/claude-code-acp/internal/slash"
	"github.com/soddy-dev/claude-code-acp/internal/terminal"
	"github.com/soddy-dev/claude-code-acp/internal/tools"
	"github.com/soddy-dev/claude-code-acp/internal/transport"
)

const (
	AdapterName    = "claude-code-acp"
	AdapterTitle   = "Claude Code ACP Bridge"
	AdapterVersion = "0.4.0"

	protocolVersion = 1
)

type Server struct {
	cfg    config.Config
	logger *logging.Logger

	transport   *transport.Transport
	coordinator *permissions.Coordinator
	processes   *terminal.Manager
	sessions    *session.Manager

	clientCapabilities acp.ClientCapabilities
}

func New(cfg config.Config, in io.Reader, out io.Writer, logger *logging.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	s.transport = transport.New(in, out, logger)
	s.coordinator = permissions.NewCoordinator(s.transport, logger)
	s.processes = terminal.NewManager(terminal.ManagerConfig{
		MaxConcurrent:      cfg.Tools.Terminal.MaxProcesses,
		OutputByteLimit:    cfg.Tools.Terminal.OutputByteLimit,
		MaxOutputByteLimit: cfg.Tools.Terminal.MaxOutputByteLimit,
	}, logger)
	s.sessions = session.NewManager(cfg, s.coordinator, s.toolServerFactory, s.transport, logger)
	return s
}

func (s *Server) toolServerFactory(sessionID, cwd string, checker *permissions.Checker) claude.ToolServer {
	return tools.NewRegistry(tools.Context{
		SessionID: sessionID,
		Cwd:       cwd,
		Checker:   checker,
		Processes: s.processes,
	}, s.logger)
}

// Serve runs the stdio loop until EOF, then tears everything down.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting ACP bridge on stdio", map[string]any{"version": AdapterVersion})
	err := s.transport.Serve(ctx, s.processRequest)
	s.Close()
	return err
}

func (s *Server) Close() {
	s.sessions.Close()
	s.processes.Cleanup()
	s.transport.Close()
}

func (s *Server) processRequest(ctx context.Context, req jsonrpc.Request) jsonrpc.Response {
	if req.JSONRPC != jsonrpc.Version {
		return jsonrpc.Failure(req.ID, jsonrpc.InvalidRequest, "Invalid JSON-RPC version", nil)
	}
	if strings.TrimSpace(req.Method) == "" {
		return jsonrpc.Failure(req.ID, jsonrpc.InvalidRequest, "Method is required", nil)
	}

	s.logger.Debug("processing request", map[string]any{"method": req.Method, "id": req.ID})

	var result any
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "authenticate":
		result, err = s.handleAuthenticate(req.Params)
	case "session/new":
		result, err = s.handleSessionNew(ctx, req.Params)
	case "session/load":
		result, err = s.handleSessionLoad(ctx, req.Params)
	case "session/fork":
		result, err = s.handleSessionFork(ctx, req.Params)
	case "session/resume":
		result, err = s.handleSessionResume(ctx, req.Params)
	case "session/prompt":
		result, err = s.handleSessionPrompt(ctx, req.Params)
	case "session/set_mode":
		result, err = s.handleSetSessionMode(ctx, req.Params)
	case "session/set_model":
		result, err = s.handleSetSessionModel(ctx, req.Params)
	case "session/cancel":
		result, err = s.handleSessionCancel(ctx, req.Params)
	case "fs/read_text_file":
		result, err = s.handleReadTextFile(req.Params)
	case "fs/write_text_file":
		result, err = s.handleWriteTextFile(req.Params)
	default:
		return jsonrpc.Failure(req.ID, jsonrpc.MethodNotFound, "Unknown method: "+req.Method, nil)
	}

	if err != nil {
		formatted := errorfmt.Format(err, "internal error", map[string]any{"name": fmt.Sprintf("%T", err)})
		return jsonrpc.Failure(req.ID, formatted.Code, formatted.Message, formatted.Data)
	}
	return jsonrpc.Success(req.ID, result)
}

func (s *Server) handleInitialize(raw json.RawMessage) (acp.InitializeResponse, error) {
	params, err := decodeParams[acp.InitializeRequest](raw)
	if err != nil {
		return acp.InitializeResponse{}, err
	}
	if params.ProtocolVersion == 0 {
		return acp.InitializeResponse{}, fmt.Errorf("protocolVersion is required; this agent supports version %d", protocolVersion)
	}

	s.clientCapabilities = params.ClientCapabilities

	return acp.InitializeResponse{
		ProtocolVersion: protocolVersion,
		AgentCapabilities: acp.AgentCapabilities{
			LoadSession: true,
			PromptCapabilities: acp.PromptCapabilities{
				Image:           true,
				Audio:           false,
				EmbeddedContext: true,
			},
		},
		AgentInfo: acp.Implementation{
			Name:    AdapterName,
			Title:   AdapterTitle,
			Version: AdapterVersion,
		},
		AuthMethods: []acp.AuthMethod{
			{
				ID:          "claude-login",
				Name:        "Log in with Claude Code",
				Description: "Run `claude /login` in a terminal",
			},
		},
	}, nil
}

func (s *Server) handleAuthenticate(json.RawMessage) (map[string]any, error) {
	// The CLI owns credentials; the bridge has nothing to exchange.
	return nil, fmt.Errorf("%w: run `claude /login` in a terminal", errorfmt.ErrAuthRequired)
}

func (s *Server) handleSessionNew(ctx context.Context, raw json.RawMessage) (acp.NewSessionResponse, error) {
	params, err := decodeParams[acp.NewSessionRequest](raw)
	if err != nil {
		return acp.NewSessionResponse{}, err
	}
	if err := validateCwd(params.Cwd); err != nil {
		return acp.NewSessionResponse{}, err
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		Cwd:  params.Cwd,
		Meta: params.Meta,
	})
	if err != nil {
		return acp.NewSessionResponse{}, err
	}

	s.sendAvailableCommands(sess.ID)
	return acp.NewSessionResponse{
		SessionID: sess.ID,
		Modes:     s.modeState(sess),
		Models:    s.modelState(),
	}, nil
}

func (s *Server) handleSessionLoad(ctx context.Context, raw json.RawMessage) (acp.LoadSessionResponse, error) {
	params, err := decodeParams[acp.LoadSessionRequest](raw)
	if err != nil {
		return acp.LoadSessionResponse{}, err
	}
	if strings.TrimSpace(params.SessionID) == "" {
		return acp.LoadSessionResponse{}, fmt.Errorf("sessionId is required")
	}
	if err := validateCwd(params.Cwd); err != nil {
		return acp.LoadSessionResponse{}, err
	}

	// The supplied id doubles as the backend resume id unless _meta pins one.
	resume := params.SessionID
	if params.Meta != nil && params.Meta.ClaudeCode != nil && params.Meta.ClaudeCode.Options != nil && params.Meta.ClaudeCode.Options.Resume != "" {
		resume = params.Meta.ClaudeCode.Options.Resume
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		ID:     params.SessionID,
		Cwd:    params.Cwd,
		Meta:   params.Meta,
		Resume: resume,
	})
	if err != nil {
		return acp.LoadSessionResponse{}, err
	}

	s.sendAvailableCommands(sess.ID)
	return acp.LoadSessionResponse{
		Modes:  s.modeState(sess),
		Models: s.modelState(),
	}, nil
}

// session/fork starts a fresh bridge session over a prior backend
// conversation; session/resume reclaims the id as well.
func (s *Server) handleSessionFork(ctx context.Context, raw json.RawMessage) (acp.NewSessionResponse, error) {
	params, err := decodeParams[acp.LoadSessionRequest](raw)
	if err != nil {
		return acp.NewSessionResponse{}, err
	}
	if strings.TrimSpace(params.SessionID) == "" {
		return acp.NewSessionResponse{}, fmt.Errorf("sessionId is required")
	}
	if err := validateCwd(params.Cwd); err != nil {
		return acp.NewSessionResponse{}, err
	}

	sess, err := s.sessions.Create(ctx, session.CreateParams{
		Cwd:    params.Cwd,
		Meta:   params.Meta,
		Resume: params.SessionID,
	})
	if err != nil {
		return acp.NewSessionResponse{}, err
	}
	s.sendAvailableCommands(sess.ID)
	return acp.NewSessionResponse{SessionID: sess.ID, Modes: s.modeState(sess), Models: s.modelState()}, nil
}

func (s *Server) handleSessionResume(ctx context.Context, raw json.RawMessage) (acp.LoadSessionResponse, error) {
	return s.handleSessionLoad(ctx, raw)
}

func (s *Server) handleSessionPrompt(ctx context.Context, raw json.RawMessage) (acp.PromptResponse, error) {
	params, err := decodeParams[acp.PromptRequest](raw)
	if err != nil {
		return acp.PromptResponse{}, err
	}
	sess, err := s.lookup(params.SessionID)
	if err != nil {
		return acp.PromptResponse{}, err
	}
	if len(params.Prompt) == 0 {
		return acp.PromptResponse{}, fmt.Errorf("prompt is required and must be a non-empty array")
	}

	blocks, err := content.ConvertPrompt(params.Prompt)
	if err != nil {
		return acp.PromptResponse{}, err
	}

	stopReason, err := sess.Prompt(ctx, blocks)
	if err != nil {
		return acp.PromptResponse{}, err
	}

	// Everything enqueued during the turn must hit the wire before the
	// response; otherwise a client treating the response as terminal would
	// miss trailing chunks.
	s.flushBeforeResponse(ctx, sess)

	return acp.PromptResponse{StopReason: stopReason}, nil
}

func (s *Server) flushBeforeResponse(ctx context.Context, sess *session.Session) {
	if err := s.transport.Flush(ctx); err == nil {
		return
	}
	// Interim fallback when the sentinel cannot be awaited: a bounded sleep
	// proportional to the turn's notification volume.
	delay := 10 + 2*sess.NotificationCount()
	if delay > 100 {
		delay = 100
	}
	time.Sleep(time.Duration(delay) * time.Millisecond)
}

func (s *Server) handleSessionCancel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decodeParams[acp.CancelNotification](raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, fmt.Errorf("sessionId is required")
	}

	sess, ok := s.sessions.Get(params.SessionID)
	if !ok {
		// Cancelling an unknown session is a no-op, not a fault.
		return nil, nil
	}
	sess.Interrupt(ctx)
	s.coordinator.CancelSession(params.SessionID)
	return nil, nil
}

func (s *Server) handleSetSessionMode(ctx context.Context, raw json.RawMessage) (acp.SetSessionModeResponse, error) {
	params, err := decodeParams[acp.SetSessionModeRequest](raw)
	if err != nil {
		return acp.SetSessionModeResponse{}, err
	}
	sess, err := s.lookup(params.SessionID)
	if err != nil {
		return acp.SetSessionModeResponse{}, err
	}
	mode, ok := permissions.ParseMode(params.ModeID)
	if !ok {
		return acp.SetSessionModeResponse{}, fmt.Errorf("invalid mode: %s", params.ModeID)
	}
	if err := sess.SetMode(ctx, mode); err != nil {
		return acp.SetSessionModeResponse{}, err
	}
	return acp.SetSessionModeResponse{ModeID: params.ModeID}, nil
}

func (s *Server) handleSetSessionModel(ctx context.Context, raw json.RawMessage) (acp.SetSessionModelResponse, error) {
	params, err := decodeParams[acp.SetSessionModelRequest](raw)
	if err != nil {
		return acp.SetSessionModelResponse{}, err
	}
	sess, err := s.lookup(params.SessionID)
	if err != nil {
		return acp.SetSessionModelResponse{}, err
	}
	model := params.ModelID
	if model == "default" {
		model = ""
	}
	if err := sess.SetModel(ctx, model); err != nil {
		return acp.SetSessionModelResponse{}, err
	}
	return acp.SetSessionModelResponse{ModelID: params.ModelID}, nil
}

func (s *Server) handleReadTextFile(raw json.RawMessage) (acp.ReadTextFileResponse, error) {
	params, err := decodeParams[acp.ReadTextFileRequest](raw)
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}
	sess, err := s.lookup(params.SessionID)
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}
	path, err := boundPath(sess.Cwd, params.Path)
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}

	content, err := readTextFile(path, params.Line, params.Limit)
	if err != nil {
		return acp.ReadTextFileResponse{}, err
	}
	return acp.ReadTextFileResponse{Content: content}, nil
}

func (s *Server) handleWriteTextFile(raw json.RawMessage) (acp.WriteTextFileResponse, error) {
	params, err := decodeParams[acp.WriteTextFileRequest](raw)
	if err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	sess, err := s.lookup(params.SessionID)
	if err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	path, err := boundPath(sess.Cwd, params.Path)
	if err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	if err := writeTextFile(path, params.Content); err != nil {
		return acp.WriteTextFileResponse{}, err
	}
	return acp.WriteTextFileResponse{}, nil
}

func (s *Server) lookup(sessionID string) (*session.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("sessionId is required")
	}
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errorfmt.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

func (s *Server) sendAvailableCommands(sessionID string) {
	s.transport.SendNotification("session/update", acp.SessionNotification{
		SessionID: sessionID,
		Update: acp.SessionUpdate{
			SessionUpdate:     "available_commands_update",
			AvailableCommands: slash.Commands(),
		},
	})
}

func (s *Server) modeState(sess *session.Session) *acp.SessionModeState {
	modes := []acp.SessionMode{
		{ID: string(permissions.ModeDefault), Name: "Always Ask", Description: "Prompts for permission on first use of each tool"},
		{ID: string(permissions.ModeAcceptEdits), Name: "Accept Edits", Description: "Automatically accepts file edit permissions for the session"},
		{ID: string(permissions.ModePlan), Name: "Plan Mode", Description: "Analyze only; no edits or commands"},
		{ID: string(permissions.ModeDontAsk), Name: "Don't Ask", Description: "Denies anything not pre-approved by rules"},
		{ID: string(permissions.ModeBypass), Name: "Bypass Permissions", Description: "Skips all permission prompts"},
	}
	return &acp.SessionModeState{CurrentModeID: string(sess.Mode()), AvailableModes: modes}
}

func (s *Server) modelState() *acp.SessionModelState {
	return &acp.SessionModelState{
		CurrentModelID: "default",
		AvailableModels: []acp.ModelInfo{
			{ModelID: "default", Name: "Default"},
			{ModelID: "sonnet", Name: "Sonnet"},
			{ModelID: "opus", Name: "Opus"},
			{ModelID: "haiku", Name: "Haiku"},
		},
	}
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("invalid params: %w", err)
	}
	return out, nil
}

func validateCwd(cwd string) error {
	if strings.TrimSpace(cwd) == "" {
		return fmt.Errorf("cwd (working directory) is required and must be a non-empty string")
	}
	if !isAbsPath(cwd) {
		return fmt.Errorf("cwd must be an absolute path")
	}
	return nil
}

func isAbsPath(p string) bool {
	if filepath.IsAbs(p) {
		return true
	}
	// Windows absolute path support on non-Windows hosts.
	winAbs := regexp.MustCompile(`^[A-Za-z]:[\\/]`)
	return winAbs.MatchString(p)
}
