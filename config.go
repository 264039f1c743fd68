package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"jiconnect/server/config"
	"jiconnect/server/mikrotik"
)

// ConfigSourceTracker records which keys were set by environment variables.
type ConfigSourceTracker struct {
	EnvKeys map[string]bool // Keys that were set via environment variables
}

func newConfigSourceTracker() *ConfigSourceTracker {
	return &ConfigSourceTracker{
		EnvKeys: make(map[string]bool),
	}
}

// Config represents the server configuration
type Config struct {
	Server   ServerConfig          `toml:"server"`
	MikroTik MikroTikConfig        `toml:"mikrotik"`
	Security SecurityConfig        `toml:"security"`
	Seed     SeedConfig            `toml:"seed"`
	Receipt  ReceiptConfig         `toml:"receipt"`
	Database config.DatabaseConfig `toml:"database"`
	Logging  config.LoggingConfig  `toml:"logging"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	HTTPPort              int    `toml:"http_port"`
	BindAddress           string `toml:"bind_address"` // 0.0.0.0 for all interfaces
	Environment           string `toml:"environment"`  // "production" enables mock-by-default
	PublicDir             string `toml:"public_dir"`   // receipts are written to <public_dir>/receipts
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	LiveRefreshSeconds    int    `toml:"live_refresh_seconds"`
}

// MikroTikConfig locates the hotspot appliance
type MikroTikConfig struct {
	Mode             string `toml:"mode"` // real, mock, or empty to decide from environment
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
}

// SecurityConfig holds login and rate limiting settings
type SecurityConfig struct {
	SessionTTLMinutes      int  `toml:"session_ttl_minutes"`
	RateLimitEnabled       bool `toml:"rate_limit_enabled"`
	RateLimitMaxAttempts   int  `toml:"rate_limit_max_attempts"`
	RateLimitBlockMinutes  int  `toml:"rate_limit_block_minutes"`
	RateLimitWindowMinutes int  `toml:"rate_limit_window_minutes"`
	PasswordMinLength      int  `toml:"password_min_length"`
}

// SeedConfig controls the bootstrap admin account and the dev seed route
type SeedConfig struct {
	Enabled       bool   `toml:"enabled"`
	Token         string `toml:"token"`
	AdminEmail    string `toml:"admin_email"`
	AdminPassword string `toml:"admin_password"`
	AdminName     string `toml:"admin_name"`
}

// ReceiptConfig holds receipt rendering settings
type ReceiptConfig struct {
	Currency string `toml:"currency"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:              3001,
			BindAddress:           "0.0.0.0",
			Environment:           "development",
			PublicDir:             "public",
			RequestTimeoutSeconds: 20,
			LiveRefreshSeconds:    5,
		},
		MikroTik: MikroTikConfig{
			Port:             mikrotik.DefaultPort,
			ConnectTimeoutMS: int(mikrotik.DefaultConnectTimeout / time.Millisecond),
		},
		Security: SecurityConfig{
			SessionTTLMinutes:      7 * 24 * 60,
			RateLimitEnabled:       true,
			RateLimitMaxAttempts:   5,
			RateLimitBlockMinutes:  5,
			RateLimitWindowMinutes: 2,
			PasswordMinLength:      8,
		},
		Seed: SeedConfig{
			AdminEmail:    "admin@jiconnect.co",
			AdminPassword: "Admin123!",
			AdminName:     "Super Admin",
		},
		Receipt: ReceiptConfig{
			Currency: "TZS",
		},
		Logging: config.LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from TOML file with environment variable overrides.
// Returns the config and a tracker indicating which keys were set by environment variables.
func LoadConfig(configPath string) (*Config, *ConfigSourceTracker, error) {
	cfg := DefaultConfig()
	tracker := newConfigSourceTracker()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := config.LoadTOML(configPath, cfg); err != nil {
				return nil, nil, err
			}
		}
	}

	envInt := func(name, key string, dst *int) {
		if val := os.Getenv(name); val != "" {
			var v int
			if _, err := fmt.Sscanf(val, "%d", &v); err == nil {
				*dst = v
				tracker.EnvKeys[key] = true
			}
		}
	}
	envString := func(name, key string, dst *string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
			tracker.EnvKeys[key] = true
		}
	}
	envBool := func(name, key string, dst *bool) {
		if val := os.Getenv(name); val != "" {
			*dst = val == "true" || val == "1"
			tracker.EnvKeys[key] = true
		}
	}

	// SERVER_HTTP_PORT wins over the generic PORT set by most PaaS hosts
	envInt("PORT", "server.http_port", &cfg.Server.HTTPPort)
	envInt("SERVER_HTTP_PORT", "server.http_port", &cfg.Server.HTTPPort)
	envString("BIND_ADDRESS", "server.bind_address", &cfg.Server.BindAddress)
	// NODE_ENV is the fallback; APP_ENV wins when both are set
	envString("NODE_ENV", "server.environment", &cfg.Server.Environment)
	envString("APP_ENV", "server.environment", &cfg.Server.Environment)
	envString("PUBLIC_DIR", "server.public_dir", &cfg.Server.PublicDir)
	envInt("REQUEST_TIMEOUT_SECONDS", "server.request_timeout_seconds", &cfg.Server.RequestTimeoutSeconds)
	envInt("LIVE_REFRESH_SECONDS", "server.live_refresh_seconds", &cfg.Server.LiveRefreshSeconds)

	envString("MIKROTIK_MODE", "mikrotik.mode", &cfg.MikroTik.Mode)
	envString("MIKROTIK_HOST", "mikrotik.host", &cfg.MikroTik.Host)
	envInt("MIKROTIK_PORT", "mikrotik.port", &cfg.MikroTik.Port)
	envString("MIKROTIK_USER", "mikrotik.user", &cfg.MikroTik.User)
	envString("MIKROTIK_PASS", "mikrotik.password", &cfg.MikroTik.Password)
	envInt("MIKROTIK_CONNECT_TIMEOUT_MS", "mikrotik.connect_timeout_ms", &cfg.MikroTik.ConnectTimeoutMS)

	envInt("SESSION_TTL_MINUTES", "security.session_ttl_minutes", &cfg.Security.SessionTTLMinutes)
	envBool("RATE_LIMIT_ENABLED", "security.rate_limit_enabled", &cfg.Security.RateLimitEnabled)

	envBool("ENABLE_SEED", "seed.enabled", &cfg.Seed.Enabled)
	envString("DEV_SEED_TOKEN", "seed.token", &cfg.Seed.Token)
	envString("SEED_ADMIN_EMAIL", "seed.admin_email", &cfg.Seed.AdminEmail)
	envString("SEED_ADMIN_PASSWORD", "seed.admin_password", &cfg.Seed.AdminPassword)

	envString("RECEIPT_CURRENCY", "receipt.currency", &cfg.Receipt.Currency)

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
		tracker.EnvKeys["logging.level"] = true
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		cfg.Logging.Dir = val
		tracker.EnvKeys["logging.dir"] = true
	}

	config.ApplyDatabaseEnvOverrides(&cfg.Database)

	return cfg, tracker, nil
}

// Address returns the appliance address
func (c *MikroTikConfig) Address() mikrotik.Address {
	return mikrotik.Address{
		Host:           strings.TrimSpace(c.Host),
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		ConnectTimeout: time.Duration(c.ConnectTimeoutMS) * time.Millisecond,
	}
}

// ResolvedMode applies the mode policy to this configuration
func (c *Config) ResolvedMode() mikrotik.Mode {
	requested, _ := mikrotik.ParseMode(c.MikroTik.Mode)
	return mikrotik.ResolveMode(requested, c.Server.Environment, c.MikroTik.Address().Complete())
}

// Production reports whether the deployment environment is production
func (c *Config) Production() bool {
	return mikrotik.IsProduction(c.Server.Environment)
}

// RequestTimeout is the per-request budget for appliance work
func (c *ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LiveRefresh is the websocket feed refresh period
func (c *ServerConfig) LiveRefresh() time.Duration {
	if c.LiveRefreshSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LiveRefreshSeconds) * time.Second
}

// ValidatePassword checks if a password meets the configured minimum length.
func (c *SecurityConfig) ValidatePassword(password string) error {
	minLen := 8
	if c != nil && c.PasswordMinLength > 0 {
		minLen = c.PasswordMinLength
	}
	if len(password) < minLen {
		return fmt.Errorf("password must be at least %d characters", minLen)
	}
	return nil
}

// WriteDefaultConfig writes a default configuration file
func WriteDefaultConfig(configPath string) error {
	return writeConfigFile(configPath, DefaultConfig())
}

func writeConfigFile(configPath string, cfg *Config) error {
	return config.WriteDefaultTOML(configPath, cfg)
}
