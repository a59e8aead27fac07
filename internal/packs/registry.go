// ABOUTME: Thread-safe registry of built-in tool packs and their tools.
// ABOUTME: Rejects duplicate tool names and serves lookups and sorted listings.

package packs

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrToolCollision indicates a tool name already exists from another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Registry maintains the registered builtin tools.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*builtinEntry // tool name -> builtin entry
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of built-in tools that execute in-process.
// Returns ErrToolCollision if any tool name is already registered or repeated
// within the pack; in that case nothing from the pack is registered.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(pack.Tools))
	for _, tool := range pack.Tools {
		if tool == nil || tool.Definition == nil || tool.Definition.Name == "" {
			return fmt.Errorf("pack '%s' contains a tool without a name", pack.ID)
		}
		if tool.Handler == nil {
			return fmt.Errorf("tool '%s' in pack '%s' has no handler", tool.Definition.Name, pack.ID)
		}
		name := tool.Definition.Name
		if existing, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, existing.PackID)
		}
		if seen[name] {
			return fmt.Errorf("%w: tool '%s' appears twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = true
	}

	for _, tool := range pack.Tools {
		r.builtins[tool.Definition.Name] = &builtinEntry{
			Tool:   tool,
			PackID: pack.ID,
		}
	}

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
	)
	return nil
}

// Lookup returns a builtin tool by name, or ErrToolNotFound.
func (r *Registry) Lookup(name string) (*BuiltinTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// ListTools returns all tool definitions sorted by name.
func (r *Registry) ListTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.builtins))
	for _, entry := range r.builtins {
		defs = append(defs, entry.Tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builtins)
}
