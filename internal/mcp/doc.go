// Package mcp exposes the tool registry to Model Context Protocol clients.
//
// # Overview
//
// The same tools served to WebSocket peers are reachable through MCP, the
// JSON-RPC 2.0 protocol desktop AI clients speak. Two front ends share one
// Server:
//
//   - Streamable HTTP on /mcp, mounted next to the WebSocket endpoint
//   - newline-delimited JSON-RPC on stdin/stdout, for clients that spawn the
//     gateway as a subprocess
//
// # Methods
//
//   - initialize: negotiates a protocol version and, over HTTP, opens a session
//   - ping
//   - tools/list: every registered tool with its input schema
//   - tools/call: runs a tool through packs.Router
//
// An unknown tool is a JSON-RPC error. A tool that fails returns a normal
// result with isError set and the failure text as content.
//
// # Sessions
//
// initialize answers with an Mcp-Session-Id header which later requests must
// echo. When the endpoint sits behind auth.Middleware a session is bound to
// the API key that opened it; another key gets 403.
//
// # Claude Desktop
//
//	{
//	  "mcpServers": {
//	    "punchai": {
//	      "command": "punch-gateway",
//	      "args": ["stdio"]
//	    }
//	  }
//	}
package mcp
