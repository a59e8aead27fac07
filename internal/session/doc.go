// Package session tracks established WebSocket connections.
//
// A Connection serializes its own writes. The Registry is the only owner of
// connections; everything else refers to them by id. Each skips connections
// that have been marked closed, so a close event is visible to senders as soon
// as Remove returns.
package session
