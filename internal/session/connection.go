// ABOUTME: Connection wraps one established WebSocket session
// ABOUTME: Serializes writes, tracks open/closed state, and encodes envelopes

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/punchai/punch-gateway/internal/envelope"
)

// ErrConnectionClosed is returned when sending on a closed connection
var ErrConnectionClosed = errors.New("connection closed")

// DefaultWriteTimeout bounds a single frame write
const DefaultWriteTimeout = 10 * time.Second

// Socket is the subset of *websocket.Conn a Connection writes to
type Socket interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Connection is one live session between the server and a peer.
type Connection struct {
	ID         string
	RemoteAddr string
	OpenedAt   time.Time

	socket       Socket
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closed       atomic.Bool
	clientID     atomic.Value // last client_id the peer sent, for logging only
	logger       *slog.Logger
}

// NewConnection creates an open Connection over socket.
func NewConnection(id, remoteAddr string, socket Socket, writeTimeout time.Duration, logger *slog.Logger) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		ID:           id,
		RemoteAddr:   remoteAddr,
		OpenedAt:     time.Now(),
		socket:       socket,
		writeTimeout: writeTimeout,
		logger:       logger.With("connection_id", id),
	}
}

// Send encodes env and writes it as one text frame.
// Returns ErrConnectionClosed without writing if the connection is closed.
func (c *Connection) Send(ctx context.Context, env *envelope.Envelope) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	data, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.socket.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close marks the connection closed and closes the socket. Safe to call multiple times.
func (c *Connection) Close(code websocket.StatusCode, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Debug("closing connection", "code", code, "reason", reason)
	return c.socket.Close(code, reason)
}

// MarkClosed flags the connection as closed without touching the socket.
// Used when the peer has already gone away.
func (c *Connection) MarkClosed() {
	c.closed.Store(true)
}

// IsOpen reports whether the connection is still established.
func (c *Connection) IsOpen() bool {
	return !c.closed.Load()
}

// SetClientID records the client_id most recently claimed by the peer.
func (c *Connection) SetClientID(id string) {
	if id != "" {
		c.clientID.Store(id)
	}
}

// ClientID returns the client_id most recently claimed by the peer.
func (c *Connection) ClientID() string {
	v, _ := c.clientID.Load().(string)
	return v
}
