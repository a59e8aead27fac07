// ABOUTME: MCP server exposing the tool registry over JSON-RPC
// ABOUTME: initialize, tools/list and tools/call, shared by the HTTP and stdio front ends

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/punchai/punch-gateway/internal/packs"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// Defaults for the serverInfo block of the initialize result
const (
	DefaultServerName    = "punchai-task-manager"
	DefaultServerVersion = "1.0.0"
)

// Config holds configuration for the MCP server.
type Config struct {
	Router        *packs.Router
	Logger        *slog.Logger
	ServerName    string
	ServerVersion string
}

// Server answers MCP requests by routing tool calls through a packs.Router.
type Server struct {
	router   *packs.Router
	registry *packs.Registry
	logger   *slog.Logger
	sessions *sessionStore
	name     string
	version  string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = DefaultServerName
	}
	version := cfg.ServerVersion
	if version == "" {
		version = DefaultServerVersion
	}

	return &Server{
		router:   cfg.Router,
		registry: cfg.Router.Registry(),
		logger:   logger.With("component", "mcp"),
		sessions: newSessionStore(),
		name:     name,
		version:  version,
	}, nil
}

// Handle processes one request on behalf of callerID and returns the
// response. Notifications return nil.
func (s *Server) Handle(ctx context.Context, callerID string, req *JSONRPCRequest) *JSONRPCResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}

	if req.IsNotification() {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		return nil
	}

	s.logger.Debug("MCP request", "method", req.Method, "caller_id", callerID)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, callerID, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

// handleInitialize answers the MCP initialize handshake.
func (s *Server) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}

	// Echo the client's version when we speak it, otherwise offer our latest
	version := latestProtocolVersion
	if supportedProtocolVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}

	return resultResponse(req.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	})
}

// handleToolsList handles tools/list requests.
func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	tools := s.registry.ListTools()
	s.logger.Debug("tools/list", "count", len(tools))
	return resultResponse(req.ID, MCPListToolsResult{Tools: tools})
}

// handleToolsCall handles tools/call requests.
func (s *Server) handleToolsCall(ctx context.Context, callerID string, req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}

	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}

	var args map[string]any
	if raw := bytes.TrimSpace(params.Arguments); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "arguments must be an object")
		}
	}

	requestID := uuid.New().String()
	s.logger.Debug("tools/call", "tool_name", params.Name, "request_id", requestID)

	out, err := s.router.RouteToolCall(ctx, callerID, params.Name, args)
	if err != nil {
		if errors.Is(err, packs.ErrToolNotFound) {
			return errorResponse(req.ID, JSONRPCInvalidParams, "tool not found")
		}
		// Tool failures travel in the result with isError set
		s.logger.Debug("tools/call failed", "tool_name", params.Name, "request_id", requestID, "error", err)
		return resultResponse(req.ID, MCPCallToolResult{
			Content: []MCPContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}

	s.logger.Debug("tools/call complete", "tool_name", params.Name, "request_id", requestID)
	return resultResponse(req.ID, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(out)}},
	})
}
