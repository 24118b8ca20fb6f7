package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/soddy-dev/claude-code-acp/internal/acp"
	"github.com/soddy-dev/claude-code-acp/internal/claude"
	"github.com/soddy-dev/claude-code-acp/internal/config"
	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/permissions"
)

// ToolServerFactory builds the embedded tool server for one session; nil or
// a nil return suppresses built-in tool registration.
type ToolServerFactory func(sessionID, cwd string, checker *permissions.Checker) claude.ToolServer

// CreateParams carries everything session/new and session/load supply.
type CreateParams struct {
	// ID pins the session id; empty generates one.
	ID  string
	Cwd string
	// Meta holds the recognized _meta keys.
	Meta *acp.SessionMeta
	// Resume, when set, wins over Meta's resume id (session/load path).
	Resume string
}

// Manager is the concurrent session map. Insertion is check-and-insert under
// one lock so two creates racing on the same id cannot both win; the backend
// is connected outside the lock and the loser's handle is torn down.
type Manager struct {
	cfg         config.Config
	logger      *logging.Logger
	sink        Sink
	coordinator *permissions.Coordinator
	toolServers ToolServerFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg config.Config, coordinator *permissions.Coordinator, toolServers ToolServerFactory, sink Sink, logger *logging.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		logger:      logger,
		sink:        sink,
		coordinator: coordinator,
		toolServers: toolServers,
		sessions:    map[string]*Session{},
	}
}

// Create builds the backend configuration, connects the subprocess, and
// inserts the session. Exactly one of two concurrent creates with the same
// id succeeds; the other disconnects its backend and fails.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*Session, error) {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("session already exists: %s", id)
	}
	m.mu.Unlock()

	settings, err := config.LoadSettings(params.Cwd)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	checker := permissions.NewChecker(settings, params.Cwd)

	opts := claude.EnvOptions()
	opts.Bin = m.cfg.ClaudeBin
	opts.Cwd = params.Cwd
	opts.Resume = params.Resume

	disableTools := m.cfg.Tools.Disabled
	if meta := params.Meta; meta != nil {
		if meta.SystemPrompt != nil {
			opts.SystemPromptAppend = meta.SystemPrompt.Append
			opts.SystemPromptReplace = meta.SystemPrompt.Replace
		}
		if opts.Resume == "" && meta.ClaudeCode != nil && meta.ClaudeCode.Options != nil {
			opts.Resume = meta.ClaudeCode.Options.Resume
		}
		if meta.DisableTools {
			disableTools = true
		}
	}
	if !disableTools && m.toolServers != nil {
		opts.ToolServer = m.toolServers(id, params.Cwd, checker)
	}

	backend := claude.NewClient(opts, m.logger)
	sess := New(id, params.Cwd, backend, checker, m.sink, m.logger)
	if mode, ok := permissions.ParseMode(settingsDefaultMode(settings)); ok {
		sess.mode = mode
	}
	backend.SetCanUseTool(sess.CanUseTool(m.coordinator))

	if err := backend.Connect(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		sess.Disconnect()
		return nil, fmt.Errorf("session already exists: %s", id)
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Info("session created", map[string]any{"sessionId": id, "cwd": params.Cwd, "resume": opts.Resume != ""})
	return sess, nil
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Drop removes the map entry and disconnects the backend, in that order, so
// no handler can reach the session while it is being torn down.
func (m *Manager) Drop(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.coordinator.CancelSession(id)
	sess.Disconnect()
	return true
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, sess := range sessions {
		m.coordinator.CancelSession(sess.ID)
		sess.Disconnect()
	}
}

// Len reports the live session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func settingsDefaultMode(settings config.Settings) string {
	if settings.Permissions == nil {
		return ""
	}
	return settings.Permissions.DefaultMode
}
