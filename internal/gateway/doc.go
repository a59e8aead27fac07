// Package gateway orchestrates the punch-gateway server components.
//
// # Overview
//
// The Gateway owns every long-lived component and wires them in dependency
// order:
//
//	store.SQLiteStore ─┐
//	duedate.Resolver ──┼─> builtins.TasksPack ─> packs.Registry ─> packs.Router
//	                   │                                              │
//	                   │              dispatch.Dispatcher <───────────┤
//	                   │                     │                        │
//	auth.Gate ─────────┼──> transport.Server ┘              mcp.Server┘
//	ratelimit.Limiter ─┘         │
//	                             └── /health, /mcp
//
// # HTTP Surface
//
// One listener carries everything:
//
//   - GET /health - liveness, no auth, not rate limited
//   - POST /mcp - MCP JSON-RPC behind the rate limiter and auth gate
//   - any other path - WebSocket upgrade
//
// When server.grpc_health_addr is set a second listener serves the standard
// grpc.health.v1 service, reporting SERVING until shutdown.
//
// # Tailscale
//
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// listens there instead of on server.http_addr. The WebSocket endpoint is on
// port 80 of the node; the gRPC health server keeps the port from
// grpc_health_addr.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is cancelled
//
// Run shuts down on its own when ctx ends: peers receive an error envelope and
// a going-away close, then the limiter and store are closed.
package gateway
