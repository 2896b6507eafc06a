// Package config handles configuration loading for ease-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, defaults, and validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from EASE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/ease/gateway.yaml
//  3. ~/.config/ease/gateway.yaml
//
// EASE_DB_PATH overrides database.path.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${EASE_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "168h"
//	sessions:
//	  write_timeout: "5s"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	database:
//	  path: "~/.local/share/ease/gateway.db"
//
//	auth:
//	  jwt_secret: "${EASE_JWT_SECRET}"   # at least 32 bytes
//	  token_ttl: "168h"
//
//	bot:
//	  enabled: true
//	  identity: "whatsease@bot.com"
//	  name: "WhatsEase"
//	  intents_file: ""                   # TOML; built-in intents when empty
//	  history_size: 50
//	  memory_ttl: "30m"
//	  max_users: 10000
//
//	sessions:
//	  send_buffer: 64
//	  write_timeout: "5s"
//	  read_limit: 65536
//	  rate_limit: 20                     # events per second, 0 disables
//	  rate_burst: 40
//	  allowed_origins: []
//
//	logging:
//	  level: "info"                      # debug, info, warn, error
//	  format: "text"                     # text or json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
package config
