// ABOUTME: Gateway orchestrator that wires the store, tool registry, dispatcher and transport
// ABOUTME: Owns the HTTP/WebSocket listener, the optional gRPC health server, and shutdown

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/punchai/punch-gateway/internal/auth"
	"github.com/punchai/punch-gateway/internal/builtins"
	"github.com/punchai/punch-gateway/internal/config"
	"github.com/punchai/punch-gateway/internal/dispatch"
	"github.com/punchai/punch-gateway/internal/duedate"
	"github.com/punchai/punch-gateway/internal/mcp"
	"github.com/punchai/punch-gateway/internal/packs"
	"github.com/punchai/punch-gateway/internal/ratelimit"
	"github.com/punchai/punch-gateway/internal/session"
	"github.com/punchai/punch-gateway/internal/store"
	"github.com/punchai/punch-gateway/internal/transport"
)

// HealthMessage is the message field of the /health payload
const HealthMessage = "PunchAI MCP Server is running"

// HealthService is the gRPC health service name reported alongside the overall status
const HealthService = "punch.gateway"

const (
	redisConnectTimeout = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Gateway orchestrates the punch-gateway server components.
type Gateway struct {
	config    *config.Config
	store     *store.SQLiteStore
	registry  *packs.Registry
	router    *packs.Router
	sessions  *session.Registry
	limiter   *ratelimit.Limiter
	transport *transport.Server
	mcpServer *mcp.Server
	logger    *slog.Logger

	// grpcServer and health are nil unless server.grpc_health_addr is set
	grpcServer *grpc.Server
	health     *health.Server

	tsnetServer *tsnet.Server
}

// NewToolRegistry builds the registry holding every built-in tool pack.
// A duplicate tool name is returned as packs.ErrToolCollision.
func NewToolRegistry(s store.TaskStore, r duedate.Resolver, logger *slog.Logger) (*packs.Registry, error) {
	registry := packs.NewRegistry(logger)
	if err := registry.RegisterBuiltinPack(builtins.TasksPack(s, r)); err != nil {
		return nil, fmt.Errorf("registering tasks pack: %w", err)
	}
	return registry, nil
}

// newLimiter builds the admission limiter on the configured counter backend.
func newLimiter(cfg config.RateLimitConfig, logger *slog.Logger) (*ratelimit.Limiter, error) {
	var counter ratelimit.Counter
	switch cfg.Backend {
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		rc, err := ratelimit.NewRedisCounter(ctx, ratelimit.RedisConfig{
			Addr:      cfg.RedisAddr,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting rate limit redis: %w", err)
		}
		counter = rc
		logger.Info("rate limit counter: redis", "addr", cfg.RedisAddr)
	default:
		counter = ratelimit.NewMemoryCounter()
	}
	return ratelimit.New(counter, cfg.Max, cfg.Window, ratelimit.WithLogger(logger)), nil
}

// createHealthServer creates a gRPC server carrying only the grpc.health.v1 service.
func createHealthServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	logger.Info("gRPC health service enabled")
	return server, hs
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	gw, err := build(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

func build(cfg *config.Config, s *store.SQLiteStore, logger *slog.Logger) (*Gateway, error) {
	resolver := duedate.NewNaturalResolver(logger)
	registry, err := NewToolRegistry(s, resolver, logger.With("component", "pack-registry"))
	if err != nil {
		return nil, err
	}
	router := packs.NewRouter(registry, logger.With("component", "pack-router"))

	gate, err := auth.NewGate(auth.GateConfig{
		Keys:      cfg.Auth.APIKeys,
		KeyHashes: cfg.Auth.APIKeyHashes,
		Disabled:  cfg.Auth.Disabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating auth gate: %w", err)
	}

	limiter, err := newLimiter(cfg.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(logger)
	ts, err := transport.New(transport.Config{
		Sessions:        sessions,
		Dispatcher:      dispatch.New(router, logger),
		Gate:            gate,
		Limiter:         limiter,
		Logger:          logger,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		WriteTimeout:    cfg.Server.WriteTimeout,
		TrustProxy:      cfg.Server.TrustProxy,
		OriginPatterns:  cfg.Server.AllowedOrigins,
	})
	if err != nil {
		_ = limiter.Close()
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{Router: router, Logger: logger})
	if err != nil {
		_ = limiter.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		registry:  registry,
		router:    router,
		sessions:  sessions,
		limiter:   limiter,
		transport: ts,
		mcpServer: mcpServer,
		logger:    logger.With("component", "gateway"),
	}

	// Health endpoint - no auth, not rate limited
	ts.Handle("/health", http.HandlerFunc(gw.handleHealth))

	// MCP shares the WebSocket admission rules
	mcpServer.RegisterRoutes(ts, func(h http.Handler) http.Handler {
		return ratelimit.Middleware(limiter, cfg.Server.TrustProxy)(auth.Middleware(gate)(h))
	})

	if cfg.Server.GRPCHealthAddr != "" {
		gw.grpcServer, gw.health = createHealthServer(gw.logger)
	}

	gw.logger.Info("gateway ready",
		"tools", registry.Count(),
		"rate_limit_max", cfg.RateLimit.Max,
		"rate_limit_window", limiter.Window(),
		"api_keys", gate.Size(),
	)
	return gw, nil
}

// Addr returns the bound HTTP/WebSocket address, or nil before Run binds it.
func (g *Gateway) Addr() net.Addr {
	return g.transport.Addr()
}

// Transport exposes the WebSocket server for server-initiated sends.
func (g *Gateway) Transport() *transport.Server {
	return g.transport
}

// setupTCPListeners creates standard TCP listeners for HTTP and, when enabled, gRPC health.
func (g *Gateway) setupTCPListeners() (httpLn, grpcLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"grpc_health_addr", g.config.Server.GRPCHealthAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer == nil {
		return httpLn, nil, nil
	}
	grpcLn, err = net.Listen("tcp", g.config.Server.GRPCHealthAddr)
	if err != nil {
		_ = httpLn.Close()
		return nil, nil, fmt.Errorf("listening on gRPC health address: %w", err)
	}
	return httpLn, grpcLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// startServers starts the transport and gRPC health servers in goroutines, returning error channel.
func (g *Gateway) startServers(grpcLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		if err := g.transport.Serve(); err != nil {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	httpListener, grpcListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}
	if err := g.transport.Attach(httpListener); err != nil {
		_ = httpListener.Close()
		if grpcListener != nil {
			_ = grpcListener.Close()
		}
		return err
	}

	errCh := g.startServers(grpcListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	g.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "transport shutdown", g.transport.Shutdown(ctx))

	if g.grpcServer != nil {
		g.shutdownGRPCServer(ctx)
	}
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "rate limiter close", g.limiter.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// healthResponse is the fixed /health payload
type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleHealth returns 200 OK while the process is up.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Message: HealthMessage})
}
