// ABOUTME: Built-in tool types: definitions, handlers, and packs that execute in-process.
// ABOUTME: TypedTool adapts a function over a tagged params struct into a BuiltinTool.

package packs

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler is a function that executes a built-in tool.
// It receives the calling connection's ID and the tool input as JSON.
// Returns the result as JSON or an error.
type ToolHandler func(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error)

// ToolDefinition describes a tool to peers
type ToolDefinition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputSchema *Schema `json:"inputSchema"`
}

// BuiltinTool represents a tool that executes in the gateway process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}

// TypedTool builds a BuiltinTool whose schema is reflected from P and whose
// handler receives the decoded params. The returned value is JSON-encoded.
func TypedTool[P any](name, description string, fn func(ctx context.Context, callerID string, params P) (any, error)) *BuiltinTool {
	return &BuiltinTool{
		Definition: &ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: SchemaFor[P](),
		},
		Handler: func(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
			var params P
			if len(input) > 0 && string(input) != "null" {
				if err := json.Unmarshal(input, &params); err != nil {
					return nil, fmt.Errorf("invalid input: %w", err)
				}
			}
			out, err := fn(ctx, callerID, params)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}
