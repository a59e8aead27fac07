// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, overrides, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearOverrides blanks the override variables so the host environment
// cannot leak into a test.
func clearOverrides(t *testing.T) {
	t.Helper()
	for _, name := range []string{"PORT", "DB_PATH", "API_KEYS", "REDIS_ADDR", "LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:8080"
  grpc_health_addr: "0.0.0.0:50051"
  max_message_bytes: 65536
  write_timeout: "5s"
  trust_proxy: true
  allowed_origins:
    - "app.example.com"

database:
  path: "./test.db"

auth:
  api_keys:
    - "key-one"
    - "key-two"
  api_key_hashes:
    - "$2a$10$abcdefghijklmnopqrstuu"

rate_limit:
  max: 10
  window: "1m"
  backend: "memory"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.GRPCHealthAddr != "0.0.0.0:50051" {
		t.Errorf("Server.GRPCHealthAddr = %q, want %q", cfg.Server.GRPCHealthAddr, "0.0.0.0:50051")
	}
	if cfg.Server.MaxMessageBytes != 65536 {
		t.Errorf("Server.MaxMessageBytes = %d, want 65536", cfg.Server.MaxMessageBytes)
	}
	if cfg.Server.WriteTimeout != 5*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, 5*time.Second)
	}
	if !cfg.Server.TrustProxy {
		t.Error("Server.TrustProxy = false, want true")
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Server.AllowedOrigins len = %d, want 1", len(cfg.Server.AllowedOrigins))
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	if len(cfg.Auth.APIKeys) != 2 {
		t.Errorf("Auth.APIKeys len = %d, want 2", len(cfg.Auth.APIKeys))
	}
	// ${...} expansion must not touch bcrypt's "$2a$" prefix
	if len(cfg.Auth.APIKeyHashes) != 1 || !strings.HasPrefix(cfg.Auth.APIKeyHashes[0], "$2a$10$") {
		t.Errorf("Auth.APIKeyHashes = %v, want one bcrypt hash", cfg.Auth.APIKeyHashes)
	}

	if cfg.RateLimit.Max != 10 {
		t.Errorf("RateLimit.Max = %d, want 10", cfg.RateLimit.Max)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit.Window = %v, want %v", cfg.RateLimit.Window, time.Minute)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "gateway.yaml", "auth:\n  api_keys: [\"k\"]\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, DefaultDatabasePath)
	}
	if cfg.Server.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("Server.MaxMessageBytes = %d, want %d", cfg.Server.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.RateLimit.Max != DefaultRateLimitMax {
		t.Errorf("RateLimit.Max = %d, want %d", cfg.RateLimit.Max, DefaultRateLimitMax)
	}
	if cfg.RateLimit.Window != DefaultRateLimitWindow {
		t.Errorf("RateLimit.Window = %v, want %v", cfg.RateLimit.Window, DefaultRateLimitWindow)
	}
	if cfg.RateLimit.Backend != BackendMemory {
		t.Errorf("RateLimit.Backend = %q, want %q", cfg.RateLimit.Backend, BackendMemory)
	}
}

func TestLoad_TOML(t *testing.T) {
	clearOverrides(t)

	configPath := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:9000"
write_timeout = "2s"

[database]
path = "tasks.db"

[auth]
api_keys = ["alpha"]

[rate_limit]
max = 5
window = "30s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if cfg.Server.WriteTimeout != 2*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, 2*time.Second)
	}
	if cfg.Database.Path != "tasks.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "tasks.db")
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "alpha" {
		t.Errorf("Auth.APIKeys = %v, want [alpha]", cfg.Auth.APIKeys)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("RateLimit.Window = %v, want %v", cfg.RateLimit.Window, 30*time.Second)
	}
	// Unset sections keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearOverrides(t)
	t.Setenv("TEST_PUNCH_KEY", "key-from-env")
	t.Setenv("TEST_TS_AUTHKEY", "tskey-from-env")

	configPath := writeConfig(t, "gateway.yaml", `
auth:
  api_keys:
    - "${TEST_PUNCH_KEY}"
tailscale:
  auth_key: "${TEST_TS_AUTHKEY}"
  hostname: "${TEST_UNSET_HOSTNAME}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "key-from-env" {
		t.Errorf("Auth.APIKeys = %v, want [key-from-env]", cfg.Auth.APIKeys)
	}
	if cfg.Tailscale.AuthKey != "tskey-from-env" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-from-env")
	}
	if cfg.Tailscale.Hostname != "" {
		t.Errorf("Tailscale.Hostname = %q, want empty", cfg.Tailscale.Hostname)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearOverrides(t)
	t.Setenv("PORT", "4000")
	t.Setenv("DB_PATH", "/tmp/override.db")
	t.Setenv("API_KEYS", "one, two,,three")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "WARN")

	configPath := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "127.0.0.1:8080"
database:
  path: "file.db"
auth:
  api_keys: ["from-file"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:4000")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/override.db")
	}
	want := []string{"one", "two", "three"}
	if strings.Join(cfg.Auth.APIKeys, ",") != strings.Join(want, ",") {
		t.Errorf("Auth.APIKeys = %v, want %v", cfg.Auth.APIKeys, want)
	}
	if cfg.RateLimit.RedisAddr != "redis:6379" {
		t.Errorf("RateLimit.RedisAddr = %q, want %q", cfg.RateLimit.RedisAddr, "redis:6379")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	clearOverrides(t)
	t.Setenv("PORT", "3100")
	t.Setenv("API_KEYS", "env-only")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":3100" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":3100")
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "env-only" {
		t.Errorf("Auth.APIKeys = %v, want [env-only]", cfg.Auth.APIKeys)
	}
}

func TestLoadOrDefault_InvalidFileStillFails(t *testing.T) {
	clearOverrides(t)
	configPath := writeConfig(t, "gateway.yaml", "server: [unclosed")

	if _, err := LoadOrDefault(configPath); err == nil {
		t.Error("LoadOrDefault() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearOverrides(t)

	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name:    "write_timeout",
			content: "server:\n  write_timeout: \"soon\"\n",
			errPart: "write_timeout",
		},
		{
			name:    "window",
			content: "rate_limit:\n  window: \"fortnight\"\n",
			errPart: "window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "gateway.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error for invalid duration, got nil")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.errPart)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "bare dollar untouched",
			input:    "$2a$10$abc",
			expected: "$2a$10$abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func(mut func(*Config)) Config {
		cfg := Default()
		mut(cfg)
		return *cfg
	}

	tests := []struct {
		name          string
		cfg           Config
		wantErrSubstr string
	}{
		{
			name: "defaults are valid",
			cfg:  valid(func(c *Config) {}),
		},
		{
			name: "tailscale enabled allows empty http address",
			cfg: valid(func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale.Enabled = true
			}),
		},
		{
			name: "tailscale enabled requires hostname",
			cfg: valid(func(c *Config) {
				c.Tailscale.Enabled = true
				c.Tailscale.Hostname = ""
			}),
			wantErrSubstr: "tailscale.hostname is required",
		},
		{
			name:          "tailscale disabled requires http address",
			cfg:           valid(func(c *Config) { c.Server.HTTPAddr = "" }),
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name:          "database path required",
			cfg:           valid(func(c *Config) { c.Database.Path = "" }),
			wantErrSubstr: "database.path is required",
		},
		{
			name:          "unknown backend",
			cfg:           valid(func(c *Config) { c.RateLimit.Backend = "memcached" }),
			wantErrSubstr: "rate_limit.backend",
		},
		{
			name:          "redis backend needs address",
			cfg:           valid(func(c *Config) { c.RateLimit.Backend = BackendRedis }),
			wantErrSubstr: "rate_limit.redis_addr",
		},
		{
			name:          "negative max",
			cfg:           valid(func(c *Config) { c.RateLimit.Max = -1 }),
			wantErrSubstr: "rate_limit.max",
		},
		{
			name:          "bad log level",
			cfg:           valid(func(c *Config) { c.Logging.Level = "verbose" }),
			wantErrSubstr: "logging.level",
		},
		{
			name:          "bad log format",
			cfg:           valid(func(c *Config) { c.Logging.Format = "xml" }),
			wantErrSubstr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("PUNCH_CONFIG", "/etc/punch/custom.yaml")
	if got := DefaultPath(); got != "/etc/punch/custom.yaml" {
		t.Errorf("DefaultPath() = %q, want %q", got, "/etc/punch/custom.yaml")
	}

	t.Setenv("PUNCH_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "punch", "gateway.yaml") {
		t.Errorf("DefaultPath() = %q, want %q", got, filepath.Join("/xdg", "punch", "gateway.yaml"))
	}
}
