// ABOUTME: Runs the tool registry as an MCP server on stdin/stdout without any listener
// ABOUTME: Used by the stdio subcommand for clients that spawn the gateway as a subprocess

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/punchai/punch-gateway/internal/config"
	"github.com/punchai/punch-gateway/internal/duedate"
	"github.com/punchai/punch-gateway/internal/mcp"
	"github.com/punchai/punch-gateway/internal/packs"
	"github.com/punchai/punch-gateway/internal/store"
)

// ServeStdio opens the configured store and answers MCP requests from in on out
// until in is exhausted or ctx is done. Auth and rate limiting do not apply:
// the caller already owns the process.
func ServeStdio(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer s.Close()

	registry, err := NewToolRegistry(s, duedate.NewNaturalResolver(logger), logger)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Config{
		Router: packs.NewRouter(registry, logger),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	return server.ServeStdio(ctx, in, out)
}
