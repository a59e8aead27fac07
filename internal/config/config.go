// ABOUTME: Configuration loading and parsing for punch-gateway
// ABOUTME: YAML or TOML files with ${VAR} expansion, duration parsing, and env overrides

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Defaults applied before the file is parsed
const (
	DefaultHTTPAddr        = ":3000"
	DefaultDatabasePath    = "data.db"
	DefaultMaxMessageBytes = 1 << 20
	DefaultWriteTimeout    = 10 * time.Second
	DefaultRateLimitMax    = 100
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultKeyPrefix       = "punch:ratelimit:"
)

// Rate limit backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the complete punch-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener and connection limits
type ServerConfig struct {
	HTTPAddr        string   `yaml:"http_addr" toml:"http_addr"`
	GRPCHealthAddr  string   `yaml:"grpc_health_addr" toml:"grpc_health_addr"` // empty disables the gRPC health server
	MaxMessageBytes int64    `yaml:"max_message_bytes" toml:"max_message_bytes"`
	TrustProxy      bool     `yaml:"trust_proxy" toml:"trust_proxy"`
	AllowedOrigins  []string `yaml:"allowed_origins" toml:"allowed_origins"`

	WriteTimeout    time.Duration `yaml:"-" toml:"-"`
	WriteTimeoutRaw string        `yaml:"write_timeout" toml:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds the static credential set
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys" toml:"api_keys"`
	APIKeyHashes []string `yaml:"api_key_hashes" toml:"api_key_hashes"` // bcrypt
	Disabled     bool     `yaml:"disabled" toml:"disabled"`
}

// RateLimitConfig holds admission limiting configuration
type RateLimitConfig struct {
	Max       int    `yaml:"max" toml:"max"`
	Backend   string `yaml:"backend" toml:"backend"`
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix"`

	Window    time.Duration `yaml:"-" toml:"-"`
	WindowRaw string        `yaml:"window" toml:"window"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// envOverrides are the environment variables that win over the file.
type envOverrides struct {
	Port      string `env:"PORT"`
	DBPath    string `env:"DB_PATH"`
	APIKeys   string `env:"API_KEYS"`
	RedisAddr string `env:"REDIS_ADDR"`
	LogLevel  string `env:"LOG_LEVEL"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        DefaultHTTPAddr,
			MaxMessageBytes: DefaultMaxMessageBytes,
			WriteTimeout:    DefaultWriteTimeout,
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		RateLimit: RateLimitConfig{
			Max:       DefaultRateLimitMax,
			Window:    DefaultRateLimitWindow,
			Backend:   BackendMemory,
			KeyPrefix: DefaultKeyPrefix,
		},
		Tailscale: TailscaleConfig{Hostname: "punch-gateway"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns the path to the gateway config file.
// Priority: PUNCH_CONFIG env var > XDG_CONFIG_HOME/punch/gateway.yaml > ~/.config/punch/gateway.yaml
func DefaultPath() string {
	if envPath := os.Getenv("PUNCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "punch", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Files ending in .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadOrDefault is Load, except a missing file yields the defaults plus
// environment overrides. Used for env-only deployments.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return finish(Default())
}

func parse(path string, data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv copies the set environment overrides onto cfg.
func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}

	if env.Port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.HTTPAddr)
		if err != nil {
			host = ""
		}
		cfg.Server.HTTPAddr = net.JoinHostPort(host, env.Port)
	}
	if env.DBPath != "" {
		cfg.Database.Path = env.DBPath
	}
	if env.APIKeys != "" {
		cfg.Auth.APIKeys = splitList(env.APIKeys)
	}
	if env.RedisAddr != "" {
		cfg.RateLimit.RedisAddr = env.RedisAddr
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(env.LogLevel)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.MaxMessageBytes < 0 {
		return fmt.Errorf("server.max_message_bytes must not be negative")
	}

	if c.RateLimit.Max < 0 {
		return fmt.Errorf("rate_limit.max must not be negative")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must not be negative")
	}
	switch c.RateLimit.Backend {
	case "", BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("rate_limit.backend %q must be %q or %q", c.RateLimit.Backend, BackendMemory, BackendRedis)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.WriteTimeoutRaw != "" {
		cfg.Server.WriteTimeout, err = time.ParseDuration(cfg.Server.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Server.WriteTimeoutRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
