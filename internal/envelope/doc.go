// Package envelope implements the JSON message format spoken over the
// WebSocket.
//
// Wire shapes:
//
//	{"type":"connection_established","message":"Connected to PunchAI MCP Server"}
//	{"type":"tool_call","client_id":"c1","tool":"add_task","params":{"title":"x"}}
//	{"type":"tool_response","tool":"add_task","result":{"id":1}}
//	{"type":"tool_response","tool":"add_task","error":"..."}
//	{"type":"error","error":"Invalid message format"}
//
// Responses carry no correlation id. Peers that pipeline calls must rely on
// per-connection ordering.
package envelope
