// ABOUTME: Configuration loading and parsing for ease-gateway
// ABOUTME: Supports YAML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength mirrors the verifier's minimum HS256 secret size.
const MinJWTSecretLength = 32

// DBPathEnv overrides database.path when set.
const DBPathEnv = "EASE_DB_PATH"

// Config represents the complete ease-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Bot      BotConfig      `yaml:"bot"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// BotConfig configures the built-in responder
type BotConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	Identity    string        `yaml:"identity"`
	Name        string        `yaml:"name"`
	IntentsFile string        `yaml:"intents_file"`
	HistorySize int           `yaml:"history_size"`
	MaxUsers    int           `yaml:"max_users"`
	MemoryTTL   time.Duration `yaml:"-"`

	MemoryTTLRaw string `yaml:"memory_ttl"`
}

// IsEnabled reports whether the bot is enabled. Defaults to true.
func (b BotConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// SessionsConfig holds per-connection limits
type SessionsConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	ReadLimit      int64         `yaml:"read_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateLimit      float64       `yaml:"-"`
	WriteTimeout   time.Duration `yaml:"-"`

	// RateLimitRaw distinguishes an explicit 0 (disabled) from unset.
	RateLimitRaw    *float64 `yaml:"rate_limit"`
	WriteTimeoutRaw string   `yaml:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if p := os.Getenv(DBPathEnv); p != "" {
		cfg.Database.Path = p
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Bot.IntentsFile = expandHome(cfg.Bot.IntentsFile)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func (c *Config) applyDefaults() {
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}

	if c.Bot.Identity == "" {
		c.Bot.Identity = "whatsease@bot.com"
	}
	if c.Bot.Name == "" {
		c.Bot.Name = "WhatsEase"
	}
	if c.Bot.HistorySize == 0 {
		c.Bot.HistorySize = 50
	}
	if c.Bot.MaxUsers == 0 {
		c.Bot.MaxUsers = 10000
	}
	if c.Bot.MemoryTTL == 0 {
		c.Bot.MemoryTTL = 30 * time.Minute
	}

	if c.Sessions.SendBuffer == 0 {
		c.Sessions.SendBuffer = 64
	}
	if c.Sessions.ReadLimit == 0 {
		c.Sessions.ReadLimit = 64 * 1024
	}
	if c.Sessions.WriteTimeout == 0 {
		c.Sessions.WriteTimeout = 5 * time.Second
	}
	if c.Sessions.RateLimitRaw != nil {
		c.Sessions.RateLimit = *c.Sessions.RateLimitRaw
	} else {
		c.Sessions.RateLimit = 20
	}
	if c.Sessions.RateBurst == 0 && c.Sessions.RateLimit > 0 {
		c.Sessions.RateBurst = max(1, int(2*c.Sessions.RateLimit))
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Bot.Identity == "" {
		return fmt.Errorf("bot.identity is required")
	}
	if c.Bot.HistorySize < 0 || c.Bot.MaxUsers < 0 {
		return fmt.Errorf("bot.history_size and bot.max_users must not be negative")
	}

	if c.Sessions.SendBuffer <= 0 {
		return fmt.Errorf("sessions.send_buffer must be positive")
	}
	if c.Sessions.RateLimit < 0 {
		return fmt.Errorf("sessions.rate_limit must not be negative (0 disables)")
	}
	if c.Sessions.RateLimit > 0 && c.Sessions.RateBurst <= 0 {
		return fmt.Errorf("sessions.rate_burst must be positive when rate_limit is set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Bot.MemoryTTLRaw != "" {
		cfg.Bot.MemoryTTL, err = time.ParseDuration(cfg.Bot.MemoryTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing memory_ttl %q: %w", cfg.Bot.MemoryTTLRaw, err)
		}
	}

	if cfg.Sessions.WriteTimeoutRaw != "" {
		cfg.Sessions.WriteTimeout, err = time.ParseDuration(cfg.Sessions.WriteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing write_timeout %q: %w", cfg.Sessions.WriteTimeoutRaw, err)
		}
	}

	return nil
}
