// Package config loads the server configuration from a YAML file with
// environment variable expansion, then applies flag and environment
// overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selects how the server talks to clients.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Time    TimeConfig    `yaml:"time"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds transport and listener configuration.
type ServerConfig struct {
	Transport string  `yaml:"transport"`
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Addr returns the host:port listen address for the HTTP transport.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds the bearer-token gate configuration.
type AuthConfig struct {
	Enabled        bool     `yaml:"enabled"`
	JWTSecret      string   `yaml:"jwt_secret"`
	RequiredScopes []string `yaml:"required_scopes"`

	TokenCacheTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenCacheTTLRaw string `yaml:"token_cache_ttl"`
}

// TimeConfig holds time domain defaults.
type TimeConfig struct {
	DefaultTimezone string `yaml:"default_timezone"`
}

// Logging backends.
const (
	LogBackendLogrus = "logrus"
	LogBackendZap    = "zap"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Backend string `yaml:"backend"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "localhost",
			Port:      8080,
		},
		Time: TimeConfig{
			DefaultTimezone: "UTC",
		},
		Logging: LoggingConfig{
			Backend: LogBackendLogrus,
			Level:   "info",
			Format:  "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides layers well-known environment variables over the file
// values. OAUTH_ENABLED=true turns the auth gate on even when the file left
// it off.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("OAUTH_ENABLED"); ok {
		c.Auth.Enabled = v == "true"
	}
	if v, ok := os.LookupEnv("JWT_SECRET"); ok && v != "" {
		c.Auth.JWTSecret = v
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Host == "" {
			return fmt.Errorf("server.host is required for the http transport")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("server.transport must be %q or %q", TransportStdio, TransportHTTP)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}

	switch c.Logging.Backend {
	case "", LogBackendLogrus, LogBackendZap:
	default:
		return fmt.Errorf("logging.backend must be %q or %q", LogBackendLogrus, LogBackendZap)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Auth.TokenCacheTTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Auth.TokenCacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_cache_ttl %q: %w", cfg.Auth.TokenCacheTTLRaw, err)
		}
		cfg.Auth.TokenCacheTTL = ttl
	}
	return nil
}
