// Package tools advertises the built-in tool catalog to the backend through
// an in-process MCP server. The backend reaches it with mcp_message control
// requests; those raw JSON-RPC frames are replayed against the server over
// an in-memory connection, so schema inference, validation, and dispatch all
// run inside the real MCP implementation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/soddy-dev/claude-code-acp/internal/logging"
	"github.com/soddy-dev/claude-code-acp/internal/permissions"
	"github.com/soddy-dev/claude-code-acp/internal/terminal"
)

// ServerName is how the backend addresses the embedded server; tool names
// surface to the model as mcp__acp__<Name>.
const ServerName = "acp"

// Context carries the per-session state every tool body receives.
type Context struct {
	SessionID string
	Cwd       string
	Checker   *permissions.Checker
	Processes *terminal.Manager
}

// Registry is one session's embedded tool server.
type Registry struct {
	tctx   Context
	logger *logging.Logger

	connectOnce sync.Once
	connectErr  error
	server      *mcp.Server
	session     *mcp.ClientSession
}

func NewRegistry(tctx Context, logger *logging.Logger) *Registry {
	return &Registry{tctx: tctx, logger: logger}
}

func (r *Registry) Name() string { return ServerName }

func (r *Registry) connect(ctx context.Context) error {
	r.connectOnce.Do(func() {
		server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: "1.0.0"}, nil)
		registerCatalog(server, r.tctx)

		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		if _, err := server.Connect(ctx, serverTransport); err != nil {
			r.connectErr = fmt.Errorf("connect tool server: %w", err)
			return
		}

		client := mcp.NewClient(&mcp.Implementation{Name: "claude-code-acp", Version: "1.0.0"}, nil)
		session, err := client.Connect(ctx, clientTransport)
		if err != nil {
			r.connectErr = fmt.Errorf("connect tool client: %w", err)
			return
		}
		r.server = server
		r.session = session
	})
	return r.connectErr
}

// HandleMessage services one MCP JSON-RPC message from the backend and
// returns the full response envelope.
func (r *Registry) HandleMessage(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var msg struct {
		ID     any             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("undecodable MCP message: %w", err)
	}

	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	switch msg.Method {
	case "initialize":
		return jsonrpcResult(msg.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": ServerName, "version": "1.0.0"},
		})
	case "notifications/initialized", "notifications/cancelled":
		return jsonrpcResult(msg.ID, map[string]any{})
	case "tools/list":
		listed, err := r.session.ListTools(ctx, &mcp.ListToolsParams{})
		if err != nil {
			return jsonrpcError(msg.ID, err)
		}
		tools := make([]map[string]any, 0, len(listed.Tools))
		for _, tool := range listed.Tools {
			entry := map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
			}
			if tool.InputSchema != nil {
				entry["inputSchema"] = tool.InputSchema
			}
			tools = append(tools, entry)
		}
		return jsonrpcResult(msg.ID, map[string]any{"tools": tools})
	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return jsonrpcError(msg.ID, fmt.Errorf("invalid tools/call params: %w", err))
		}
		result, err := r.session.CallTool(ctx, &mcp.CallToolParams{
			Name:      params.Name,
			Arguments: params.Arguments,
		})
		if err != nil {
			return jsonrpcError(msg.ID, err)
		}
		return jsonrpcResult(msg.ID, map[string]any{
			"content": result.Content,
			"isError": result.IsError,
		})
	default:
		return jsonrpcError(msg.ID, fmt.Errorf("unknown MCP method: %s", msg.Method))
	}
}

// Close tears down the in-memory MCP connection.
func (r *Registry) Close() {
	if r.session != nil {
		_ = r.session.Close()
	}
}

func jsonrpcResult(id any, result any) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func jsonrpcError(id any, err error) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": -32603, "message": err.Error()},
	})
}
