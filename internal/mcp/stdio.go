// ABOUTME: stdio front end for the MCP server: newline-delimited JSON-RPC
// ABOUTME: Lets desktop MCP clients spawn the gateway as a subprocess

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// StdioCallerID is the caller id tool handlers see for stdio requests
const StdioCallerID = "stdio"

// ServeStdio reads one JSON-RPC message per line from in and writes each
// response as one line to out. Returns nil when in reaches EOF or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxRequestBodySize)
	enc := json.NewEncoder(out)

	s.logger.Info("MCP stdio session started")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp *JSONRPCResponse
		var req JSONRPCRequest
		switch {
		case line[0] == '[':
			resp = errorResponse(nil, JSONRPCInvalidRequest, "batch requests are not supported")
		case json.Unmarshal(line, &req) != nil:
			resp = errorResponse(nil, JSONRPCParseError, "invalid JSON")
		default:
			resp = s.Handle(ctx, StdioCallerID, &req)
		}

		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	s.logger.Info("MCP stdio session ended")
	return nil
}
