// ABOUTME: Registry tracks open connections keyed by connection id
// ABOUTME: Add/Remove happen on open/close; Each only yields open connections

package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrConnectionExists is returned when adding a connection whose id is already registered
var ErrConnectionExists = errors.New("connection already registered")

// Registry is the set of established connections.
type Registry struct {
	conns  map[string]*Connection
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger.With("component", "sessions"),
	}
}

// Add registers an established connection.
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; exists {
		return ErrConnectionExists
	}

	r.conns[conn.ID] = conn
	r.logger.Info("=== CONNECTION OPENED ===",
		"connection_id", conn.ID,
		"remote_addr", conn.RemoteAddr,
		"total_connections", len(r.conns),
	)
	return nil
}

// Remove deregisters a connection and marks it closed. Returns the removed
// connection, or nil if it was not registered.
func (r *Registry) Remove(id string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[id]
	if !exists {
		return nil
	}
	conn.MarkClosed()
	delete(r.conns, id)

	r.logger.Info("=== CONNECTION CLOSED ===",
		"connection_id", id,
		"client_id", conn.ClientID(),
		"total_connections", len(r.conns),
	)
	return conn
}

// Get returns the connection with the given id if it is registered and open.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok || !conn.IsOpen() {
		return nil, false
	}
	return conn, true
}

// Snapshot returns the currently open connections.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn.IsOpen() {
			out = append(out, conn)
		}
	}
	return out
}

// Each calls fn for every open connection until fn returns false.
// fn runs without the registry lock held.
func (r *Registry) Each(fn func(*Connection) bool) {
	for _, conn := range r.Snapshot() {
		if !conn.IsOpen() {
			continue
		}
		if !fn(conn) {
			return
		}
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
