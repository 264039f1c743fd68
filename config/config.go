// Package config provides shared configuration utilities: TOML loading,
// platform search paths and the database/logging sections used by the server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FindConfigFile searches for a config file in platform-appropriate locations
// and returns the first path that exists.
func FindConfigFile(filename string) (string, error) {
	for _, path := range GetConfigSearchPaths(filename) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in any search path", filename)
}

// GetConfigSearchPaths returns an ordered list of paths to search for config files
func GetConfigSearchPaths(filename string) []string {
	var searchPaths []string

	switch runtime.GOOS {
	case "windows":
		searchPaths = append(searchPaths, filepath.Join(os.Getenv("ProgramData"), "JiConnect", filename))
	case "darwin":
		searchPaths = append(searchPaths, filepath.Join("/Library/Application Support", "JiConnect", filename))
	default:
		searchPaths = append(searchPaths, filepath.Join("/etc/jiconnect", filename))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "AppData", "Local", "JiConnect", filename))
		case "darwin":
			searchPaths = append(searchPaths, filepath.Join(homeDir, "Library", "Application Support", "JiConnect", filename))
		default:
			searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "jiconnect", filename))
		}
	}

	if exePath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exePath), filename))
	}

	searchPaths = append(searchPaths, filepath.Join(".", filename))

	return searchPaths
}

// GetDataDirectory returns the directory for application data (database,
// receipts, logs) and creates it when missing.
func GetDataDirectory(isService bool) (string, error) {
	var dataDir string

	if isService {
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(os.Getenv("ProgramData"), "JiConnect")
		default:
			dataDir = "/var/lib/jiconnect"
		}
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		switch runtime.GOOS {
		case "windows":
			dataDir = filepath.Join(homeDir, "AppData", "Local", "JiConnect")
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "JiConnect")
		default:
			dataDir = filepath.Join(homeDir, ".local", "share", "jiconnect")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}

// WriteDefaultTOML writes a TOML configuration file with the provided structure
func WriteDefaultTOML(configPath string, config interface{}) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(configPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("config file %s already exists", configPath)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadTOML loads a TOML configuration file into the provided structure
func LoadTOML(configPath string, config interface{}) error {
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// DatabaseConfig holds database settings. SQLite is used unless Driver says
// otherwise; Postgres connections use DSN or the discrete fields.
type DatabaseConfig struct {
	Driver              string `toml:"driver"`
	Path                string `toml:"path"`
	DSN                 string `toml:"dsn"`
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	User                string `toml:"user"`
	Password            string `toml:"password"`
	Name                string `toml:"name"`
	SSLMode             string `toml:"sslmode"`
	MaxOpenConns        int    `toml:"max_open_conns"`
	MaxIdleConns        int    `toml:"max_idle_conns"`
	ConnMaxLifetimeSecs int    `toml:"conn_max_lifetime_secs"`
}

// EffectiveDriver returns the normalized driver name, defaulting to sqlite
func (c *DatabaseConfig) EffectiveDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d == "" {
		if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
			return "postgres"
		}
		return "sqlite"
	}
	return d
}

// BuildDSN returns the connection string for the configured driver. For
// SQLite it is the file path.
func (c *DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.EffectiveDriver() {
	case "postgres", "postgresql":
		if c.Host == "" {
			return ""
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     c.Host + ":" + strconv.Itoa(port),
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(sslMode),
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		return u.String()
	default:
		return c.Path
	}
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

// ApplyDatabaseEnvOverrides applies DB_* environment overrides
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig) {
	if val := os.Getenv("DB_DRIVER"); val != "" {
		cfg.Driver = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.Path = val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DSN = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Port = p
		}
	}
	if val := os.Getenv("DB_USER"); val != "" {
		cfg.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		cfg.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		cfg.Name = val
	}
	if val := os.Getenv("DB_SSLMODE"); val != "" {
		cfg.SSLMode = val
	}
}

// ApplyLoggingEnvOverrides applies LOG_LEVEL / LOG_DIR overrides
func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		cfg.Dir = val
	}
}
