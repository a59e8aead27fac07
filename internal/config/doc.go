// Package config handles configuration loading for punch-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file (or TOML, when the file name ends
// in .toml) with environment variable expansion, then a small set of
// environment variables override individual fields.
//
// # Configuration File
//
// Location:
//
//  1. Path from PUNCH_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/punch/gateway.yaml
//  3. ~/.config/punch/gateway.yaml
//
// LoadOrDefault tolerates a missing file, so a deployment can be configured
// through the environment alone.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  api_keys:
//	    - "${PUNCH_API_KEY}"
//
// Syntax: ${VAR_NAME}. A bare $ is left alone, so bcrypt hashes survive.
//
// # Environment Overrides
//
// Applied after the file is parsed:
//
//	PORT        port part of server.http_addr
//	DB_PATH     database.path
//	API_KEYS    auth.api_keys, comma separated
//	REDIS_ADDR  rate_limit.redis_addr
//	LOG_LEVEL   logging.level
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":3000"            # WebSocket, /health and /mcp
//	  grpc_health_addr: ""          # grpc.health.v1 probe, empty disables
//	  max_message_bytes: 1048576
//	  write_timeout: "10s"
//	  trust_proxy: false            # key the rate limiter on X-Forwarded-For
//	  allowed_origins: []           # cross-origin browser clients
//
//	database:
//	  path: "data.db"
//
//	auth:
//	  api_keys: []
//	  api_key_hashes: []            # bcrypt
//	  disabled: false               # admit everyone; development only
//
//	rate_limit:
//	  max: 100
//	  window: "15m"
//	  backend: "memory"             # memory, redis
//	  redis_addr: ""
//	  key_prefix: "punch:ratelimit:"
//
//	tailscale:
//	  enabled: false
//	  hostname: "punch-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""
//	  ephemeral: false
//
//	logging:
//	  level: "info"                 # debug, info, warn, error
//	  format: "text"                # text, json
package config
