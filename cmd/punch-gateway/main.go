// ABOUTME: Entry point for punch-gateway, the PunchAI MCP WebSocket server
// ABOUTME: Subcommands serve, stdio, health, and tools

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/punchai/punch-gateway/internal/config"
	"github.com/punchai/punch-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                        _                       _
 _ __  _   _ _ __   ___| |__         __ _  __ _| |_ _____      ____ _ _   _
| '_ \| | | | '_ \ / __| '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| |_) | |_| | | | | (__| | | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
| .__/ \__,_|_| |_|\___|_| |_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
|_|                                 |___/                             |___/
`

func usage() {
	fmt.Println("Usage: punch-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve              Start the WebSocket server")
	fmt.Println("  stdio              Serve MCP over stdin/stdout")
	fmt.Println("  health             Check a running server's health")
	fmt.Println("  tools              List the available tools")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "stdio":
		err = runStdio(ctx)
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools()
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP/WS:   %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCHealthAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s (health)\n", cfg.Server.GRPCHealthAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Limit:     %d per %s (%s)\n", cfg.RateLimit.Max, cfg.RateLimit.Window, cfg.RateLimit.Backend)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Auth.Disabled {
		yellow.Println("    ! authentication disabled")
	}

	fmt.Println()

	logger.Info("starting punch-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runStdio serves MCP on stdin/stdout. Logs go to stderr so stdout carries only JSON-RPC.
func runStdio(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	return gateway.ServeStdio(ctx, cfg, logger, os.Stdin, os.Stdout)
}

// healthURL turns a listen address into a URL a local client can reach.
func healthURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/health", addr)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(cfg.Server.HTTPAddr), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	fmt.Printf("healthy: %s\n", body.Message)
	return nil
}

func runTools() error {
	registry, err := gateway.NewToolRegistry(nil, nil, setupLogger(config.LoggingConfig{Level: "error"}, io.Discard))
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	for _, def := range registry.ListTools() {
		bold.Print(def.Name)
		fmt.Println()
		fmt.Printf("  %s\n", def.Description)
		if def.InputSchema != nil && len(def.InputSchema.Properties) > 0 {
			params := make([]string, 0, len(def.InputSchema.Properties))
			required := make(map[string]bool, len(def.InputSchema.Required))
			for _, name := range def.InputSchema.Required {
				required[name] = true
			}
			for name := range def.InputSchema.Properties {
				if required[name] {
					name += "*"
				}
				params = append(params, name)
			}
			slices.Sort(params)
			gray.Printf("  params: %s\n", strings.Join(params, ", "))
		}
	}
	return nil
}
