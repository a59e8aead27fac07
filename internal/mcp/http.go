// ABOUTME: Streamable HTTP front end for the MCP server with session management
// ABOUTME: POST carries JSON-RPC; DELETE ends a session; no server-initiated streams

package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchai/punch-gateway/internal/auth"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// HeaderSessionID carries the MCP session id
const HeaderSessionID = "Mcp-Session-Id"

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id        string
	ownerKey  string // fingerprint of the API key that opened the session
	createdAt time.Time
}

// sessionStore manages active MCP sessions (in-memory).
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) create(ownerKey string) *mcpSession {
	sess := &mcpSession{
		id:        uuid.New().String(),
		ownerKey:  ownerKey,
		createdAt: time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*mcpSession, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

func (s *sessionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Mux is satisfied by *http.ServeMux and by the WebSocket transport.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes registers the MCP endpoint on mux behind wrap, which is
// where the gateway puts its auth and rate limit middleware.
func (s *Server) RegisterRoutes(mux Mux, wrap func(http.Handler) http.Handler) {
	var h http.Handler = http.HandlerFunc(s.handleMCP)
	if wrap != nil {
		h = wrap(h)
	}
	mux.Handle("/mcp", h)
}

// ServeHTTP serves the MCP endpoint without any middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handleMCP(w, r)
}

// handleMCP is the single MCP endpoint supporting POST, GET, and DELETE per the
// Streamable HTTP transport.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// callerKey identifies the authenticated caller, or "" when auth is off.
func callerKey(r *http.Request) string {
	if a := auth.FromContext(r.Context()); a != nil {
		return a.KeyID
	}
	return ""
}

// handleDelete terminates a session. Only the key that opened it may do so.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	if sess.ownerKey != "" && callerKey(r) != sess.ownerKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeResponse(w, errorResponse(nil, JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeResponse(w, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, errorResponse(nil, JSONRPCParseError, "invalid JSON"))
		return
	}

	isInitialize := req.Method == "initialize"

	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		sess, ok := s.sessions.get(sessionID)
		if !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if sess.ownerKey != "" && callerKey(r) != sess.ownerKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if isInitialize && req.JSONRPC == "2.0" && !req.IsNotification() {
		sess := s.sessions.create(callerKey(r))
		sessionID = sess.id
		s.logger.Info("MCP session created", "session_id", sess.id)
		w.Header().Set(HeaderSessionID, sess.id)
	}

	resp := s.Handle(r.Context(), "mcp:"+sessionID, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
