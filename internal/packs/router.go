// ABOUTME: Routes tool calls to registered builtin handlers.
// ABOUTME: Validates params against the tool schema and recovers handler panics.

package packs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Router validates and executes tool calls against a Registry.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a new Router for the given registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the registry this router dispatches against.
func (r *Router) Registry() *Registry {
	return r.registry
}

// RouteToolCall looks up toolName, validates params and runs the handler.
// Errors wrap ErrToolNotFound, ErrInvalidParams, or come from the handler.
// The handler is never invoked when lookup or validation fails.
func (r *Router) RouteToolCall(ctx context.Context, callerID, toolName string, params map[string]any) (json.RawMessage, error) {
	tool, err := r.registry.Lookup(toolName)
	if err != nil {
		r.logger.Debug("tool not found in registry",
			"tool_name", toolName,
			"caller_id", callerID,
		)
		return nil, err
	}

	if err := tool.Definition.InputSchema.Validate(params); err != nil {
		r.logger.Debug("tool params rejected",
			"tool_name", toolName,
			"caller_id", callerID,
			"error", err,
		)
		return nil, err
	}

	input, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	r.logger.Info("→ dispatching to builtin",
		"tool_name", toolName,
		"caller_id", callerID,
	)

	start := time.Now()
	result, err := r.invoke(ctx, tool, callerID, input)
	if err != nil {
		r.logger.Warn("builtin tool error",
			"tool_name", toolName,
			"caller_id", callerID,
			"error", err,
		)
		return nil, err
	}

	r.logger.Info("← builtin responded",
		"tool_name", toolName,
		"caller_id", callerID,
		"duration", time.Since(start),
	)
	return result, nil
}

func (r *Router) invoke(ctx context.Context, tool *BuiltinTool, callerID string, input json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("builtin tool panicked",
				"tool_name", tool.Definition.Name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("tool '%s' failed: %v", tool.Definition.Name, p)
		}
	}()
	return tool.Handler(ctx, callerID, input)
}
