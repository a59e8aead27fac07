// Package dispatch routes decoded envelopes to tool handlers and builds the
// reply for the originating connection.
package dispatch
