// Package ratelimit limits how often one origin may open connections.
//
// The Limiter counts admissions in fixed windows aligned to the window size.
// Counts live in a Counter: MemoryCounter for a single node, RedisCounter
// when several gateways share a limit. Counter failures admit the request.
package ratelimit
