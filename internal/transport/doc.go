// Package transport serves the WebSocket endpoint of punch-gateway.
//
// # Admission
//
// Every upgrade request passes two checks before the handshake:
//
//  1. Rate limit, keyed by client origin. Rejected with 429 and Retry-After.
//  2. Auth gate, using X-API-Key or Authorization: Bearer. Rejected with 401.
//
// Rejected requests never reach the upgrade and never see an envelope.
//
// # Connection Lifecycle
//
// After the upgrade the connection is registered, greeted with a
// connection_established envelope, and handed two goroutines:
//
//   - the read loop, which pushes each frame onto an inbox channel
//   - a dispatch.Dispatcher consuming the inbox in arrival order
//
// When the socket closes the inbox is closed and the connection deregistered.
// Handlers already running finish; their responses are dropped.
//
// # Sending
//
// Send writes to one connection and Broadcast to all of them. Both skip
// connections that are no longer established and report delivery as a count
// or bool. There is no acknowledgment or retry.
package transport
