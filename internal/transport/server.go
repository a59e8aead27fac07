// ABOUTME: WebSocket server: admission, connection lifecycle, unicast and broadcast
// ABOUTME: Each connection gets a read loop plus a dispatcher goroutine fed through an inbox

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/punchai/punch-gateway/internal/auth"
	"github.com/punchai/punch-gateway/internal/dispatch"
	"github.com/punchai/punch-gateway/internal/envelope"
	"github.com/punchai/punch-gateway/internal/ratelimit"
	"github.com/punchai/punch-gateway/internal/session"
)

var (
	// ErrAlreadyStarted is returned when Listen or Attach is called on a bound server
	ErrAlreadyStarted = errors.New("transport already started")

	// ErrNotListening is returned by Serve before Listen or Attach
	ErrNotListening = errors.New("transport not listening")
)

const (
	// DefaultMaxMessageBytes bounds one inbound frame
	DefaultMaxMessageBytes = 1 << 20

	// Greeting is the message carried by connection_established
	Greeting = "Connected to PunchAI MCP Server"

	// ShutdownMessage is broadcast as an error envelope before the server closes connections
	ShutdownMessage = "server shutting down"

	inboxSize = 16
)

// Config holds the Server's collaborators and limits.
type Config struct {
	Sessions   *session.Registry
	Dispatcher *dispatch.Dispatcher
	Gate       *auth.Gate

	// Limiter is optional; nil admits every origin.
	Limiter *ratelimit.Limiter

	Logger *slog.Logger

	MaxMessageBytes int64
	WriteTimeout    time.Duration

	// TrustProxy keys the limiter on the first X-Forwarded-For hop.
	TrustProxy bool

	// OriginPatterns allows cross-origin browser clients; same-origin and
	// non-browser clients are always accepted.
	OriginPatterns []string
}

// Server accepts WebSocket connections and moves envelopes between peers and
// the dispatcher.
type Server struct {
	cfg        Config
	sessions   *session.Registry
	dispatcher *dispatch.Dispatcher
	gate       *auth.Gate
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	mux *http.ServeMux

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	closing    bool

	// baseCtx is cancelled by Shutdown; every connection context derives from it
	baseCtx    context.Context
	cancelBase context.CancelFunc
	conns      sync.WaitGroup
}

// New creates a Server. Sessions, Dispatcher and Gate are required.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("transport: session registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("transport: dispatcher is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("transport: auth gate is required")
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = session.DefaultWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		sessions:   cfg.Sessions,
		dispatcher: cfg.Dispatcher,
		gate:       cfg.Gate,
		limiter:    cfg.Limiter,
		logger:     logger.With("component", "transport"),
		mux:        http.NewServeMux(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.mux.HandleFunc("/", s.handleWebSocket)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s, nil
}

// Handle registers an additional HTTP route served next to the WebSocket endpoint.
// Must be called before Serve.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// ServeHTTP serves the WebSocket endpoint and any routes added with Handle.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listen binds a TCP listener on addr.
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Attach uses an already bound listener, such as one from a tailnet node.
func (s *Server) Attach(ln net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen/Attach.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown. Returns nil after a clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrNotListening
	}
	if s.httpServer != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ln := s.listener
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("WebSocket server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// handleWebSocket runs admission, upgrades, and owns the connection until it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := ratelimit.ClientIP(r, s.cfg.TrustProxy)

	if s.isClosing() {
		http.Error(w, ShutdownMessage, http.StatusServiceUnavailable)
		return
	}

	if s.limiter != nil {
		d := s.limiter.Allow(r.Context(), origin)
		if !d.Allowed {
			s.logger.Warn("connection rejected: rate limited",
				"origin", origin,
				"count", d.Count,
				"limit", d.Limit,
			)
			ratelimit.WriteTooManyRequests(w, d)
			return
		}
		ratelimit.SetHeaders(w, d)
	}

	credential := auth.CredentialFromRequest(r)
	if !s.gate.Verify(credential) {
		s.logger.Warn("connection rejected: unauthorized", "origin", origin)
		auth.WriteUnauthorized(w)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the HTTP error
		s.logger.Debug("websocket upgrade failed", "origin", origin, "error", err)
		return
	}
	ws.SetReadLimit(s.cfg.MaxMessageBytes)

	// Registration and the WaitGroup increment happen under s.mu so Shutdown's
	// sweep and Wait either see this connection or it is refused here.
	conn := session.NewConnection(uuid.NewString(), origin, ws, s.cfg.WriteTimeout, s.logger)
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ws.Close(websocket.StatusGoingAway, ShutdownMessage)
		return
	}
	if err := s.sessions.Add(conn); err != nil {
		s.mu.Unlock()
		s.logger.Error("registering connection", "error", err)
		_ = ws.Close(websocket.StatusInternalError, "registration failed")
		return
	}
	s.conns.Add(1)
	s.mu.Unlock()
	defer s.conns.Done()
	s.serveConnection(conn, ws, auth.Fingerprint(credential))
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) serveConnection(conn *session.Connection, ws *websocket.Conn, keyID string) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	logger := s.logger.With("connection_id", conn.ID)
	logger.Debug("connection admitted", "key_id", keyID)

	if err := conn.Send(ctx, envelope.Established(Greeting)); err != nil {
		logger.Warn("sending greeting failed", "error", err)
		s.sessions.Remove(conn.ID)
		_ = conn.Close(websocket.StatusInternalError, "greeting failed")
		return
	}

	inbox := make(chan []byte, inboxSize)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		s.dispatcher.Serve(ctx, conn.ID, inbox, s)
	}()

	status := s.readLoop(ctx, ws, conn.ID, inbox)
	close(inbox)

	s.sessions.Remove(conn.ID)
	_ = conn.Close(status, "")

	// In-flight handlers run to completion; their responses are dropped.
	<-dispatched
}

// readLoop pushes every frame onto inbox in arrival order until the socket fails.
// Returns the status the server should close with.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, connectionID string, inbox chan<- []byte) websocket.StatusCode {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			switch {
			case code == websocket.StatusNormalClosure || code == websocket.StatusGoingAway:
				s.logger.Debug("peer closed connection", "connection_id", connectionID, "code", code)
				return websocket.StatusNormalClosure
			case ctx.Err() != nil:
				return websocket.StatusGoingAway
			default:
				// Oversized frames land here too; the library has already
				// closed with StatusMessageTooBig.
				s.logger.Debug("read failed", "connection_id", connectionID, "error", err)
				return websocket.StatusNormalClosure
			}
		}

		select {
		case inbox <- data:
		case <-ctx.Done():
			return websocket.StatusGoingAway
		}
	}
}

// Send delivers env to one connection. Returns false if the connection is not
// established or the write fails.
func (s *Server) Send(ctx context.Context, connectionID string, env *envelope.Envelope) bool {
	conn, ok := s.sessions.Get(connectionID)
	if !ok {
		return false
	}
	if err := conn.Send(ctx, env); err != nil {
		s.logger.Debug("send failed", "connection_id", connectionID, "type", env.Type, "error", err)
		return false
	}
	return true
}

// Broadcast delivers env to every established connection not in exclude and
// returns how many writes succeeded.
func (s *Server) Broadcast(ctx context.Context, env *envelope.Envelope, exclude map[string]bool) int {
	delivered := 0
	s.sessions.Each(func(conn *session.Connection) bool {
		if exclude[conn.ID] {
			return true
		}
		if err := conn.Send(ctx, env); err != nil {
			s.logger.Debug("broadcast send failed", "connection_id", conn.ID, "error", err)
			return true
		}
		delivered++
		return true
	})
	s.logger.Debug("broadcast", "type", env.Type, "delivered", delivered)
	return delivered
}

// NoteClientID records the client_id a peer claims, for logging.
func (s *Server) NoteClientID(connectionID, clientID string) {
	if conn, ok := s.sessions.Get(connectionID); ok {
		conn.SetClientID(clientID)
	}
}

// ConnectionCount returns the number of registered connections.
func (s *Server) ConnectionCount() int {
	return s.sessions.Count()
}

// Shutdown stops accepting, refuses upgrades still in flight, tells every peer the server is going away, closes
// all connections, and waits for their goroutines or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down transport", "connections", s.sessions.Count())

	var errs []error

	s.mu.Lock()
	s.closing = true
	srv := s.httpServer
	ln := s.listener
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	} else if ln != nil {
		_ = ln.Close()
	}

	s.Broadcast(ctx, envelope.Error(ShutdownMessage), nil)

	// Close blocks on the peer's close reply, so each handshake runs on its own.
	s.sessions.Each(func(conn *session.Connection) bool {
		go func() { _ = conn.Close(websocket.StatusGoingAway, ShutdownMessage) }()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}
	s.cancelBase()

	return errors.Join(errs...)
}

var _ dispatch.Sender = (*Server)(nil)
var _ dispatch.ClientTracker = (*Server)(nil)
