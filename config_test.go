package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jiconnect/server/mikrotik"
)

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	t.Run("creates new config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "server.toml")
		if err := WriteDefaultConfig(configPath); err != nil {
			t.Fatalf("WriteDefaultConfig() failed: %v", err)
		}

		content, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("Failed to read config file: %v", err)
		}
		contentStr := string(content)
		for _, section := range []string{"[server]", "[mikrotik]", "[security]", "[seed]", "[receipt]", "[database]", "[logging]"} {
			if !strings.Contains(contentStr, section) {
				t.Errorf("Config file missing expected section: %s", section)
			}
		}
		if !strings.Contains(contentStr, "http_port = 3001") {
			t.Error("Config file missing default http_port value")
		}
		if !strings.Contains(contentStr, "port = 8728") {
			t.Error("Config file missing default appliance port")
		}
	})

	t.Run("does not overwrite existing config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "server.toml")
		existing := "[server]\nhttp_port = 8888\n"
		if err := os.WriteFile(configPath, []byte(existing), 0644); err != nil {
			t.Fatal(err)
		}

		err := WriteDefaultConfig(configPath)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected 'already exists' error, got %v", err)
		}
		content, _ := os.ReadFile(configPath)
		if string(content) != existing {
			t.Error("existing config was modified")
		}
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, tracker, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != 3001 || cfg.MikroTik.Port != 8728 || cfg.MikroTik.ConnectTimeoutMS != 5000 {
		t.Errorf("defaults = %+v / %+v", cfg.Server, cfg.MikroTik)
	}
	if cfg.Security.SessionTTLMinutes != 7*24*60 {
		t.Errorf("session ttl = %d", cfg.Security.SessionTTLMinutes)
	}
	if len(tracker.EnvKeys) != 0 {
		t.Errorf("unexpected env keys: %v", tracker.EnvKeys)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	content := `
[server]
http_port = 4000
environment = "production"

[mikrotik]
host = "10.0.0.1"
user = "api"
password = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "5000")
	t.Setenv("MIKROTIK_PASS", "from-env")
	t.Setenv("MIKROTIK_CONNECT_TIMEOUT_MS", "1500")
	t.Setenv("ENABLE_SEED", "true")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, tracker, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPPort != 5000 {
		t.Errorf("http port = %d, want env value", cfg.Server.HTTPPort)
	}
	if cfg.MikroTik.Host != "10.0.0.1" || cfg.MikroTik.Password != "from-env" {
		t.Errorf("mikrotik = %+v", cfg.MikroTik)
	}
	if got := cfg.MikroTik.Address().Timeout(); got != 1500*time.Millisecond {
		t.Errorf("timeout = %v", got)
	}
	if !cfg.Seed.Enabled || cfg.Database.EffectiveDriver() != "postgres" {
		t.Errorf("seed=%v driver=%q", cfg.Seed.Enabled, cfg.Database.EffectiveDriver())
	}
	for _, key := range []string{"server.http_port", "mikrotik.password", "mikrotik.connect_timeout_ms", "seed.enabled"} {
		if !tracker.EnvKeys[key] {
			t.Errorf("tracker missing %s", key)
		}
	}
	if tracker.EnvKeys["mikrotik.host"] {
		t.Error("file-set key reported as env-set")
	}
}

func TestLoadConfig_ServerHTTPPortWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("SERVER_HTTP_PORT", "6000")

	cfg, _, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTPPort != 6000 {
		t.Errorf("http port = %d", cfg.Server.HTTPPort)
	}
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name    string
		nodeEnv string
		appEnv  string
		want    string
		mode    mikrotik.Mode
	}{
		{"NODE_ENV production", "production", "", "production", mikrotik.ModeMock},
		{"APP_ENV wins over NODE_ENV", "production", "development", "development", mikrotik.ModeReal},
		{"APP_ENV alone", "", "production", "production", mikrotik.ModeMock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NODE_ENV", tt.nodeEnv)
			t.Setenv("APP_ENV", tt.appEnv)
			t.Setenv("MIKROTIK_HOST", "10.0.0.1")
			t.Setenv("MIKROTIK_USER", "api")
			t.Setenv("MIKROTIK_PASS", "secret")
			t.Setenv("MIKROTIK_MODE", "")

			cfg, tracker, err := LoadConfig("")
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Server.Environment != tt.want {
				t.Errorf("environment = %q, want %q", cfg.Server.Environment, tt.want)
			}
			if !tracker.EnvKeys["server.environment"] {
				t.Error("tracker missing server.environment")
			}
			if got := cfg.ResolvedMode(); got != tt.mode {
				t.Errorf("ResolvedMode() = %q, want %q", got, tt.mode)
			}
		})
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := os.WriteFile(path, []byte("[server\nhttp_port = "), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigResolvedMode(t *testing.T) {
	t.Parallel()

	complete := MikroTikConfig{Host: "10.0.0.1", User: "api", Password: "secret"}

	tests := []struct {
		name string
		mode string
		env  string
		mt   MikroTikConfig
		want mikrotik.Mode
	}{
		{"explicit mock", "mock", "development", complete, mikrotik.ModeMock},
		{"explicit real complete", "REAL", "production", complete, mikrotik.ModeReal},
		{"explicit real incomplete", "real", "development", MikroTikConfig{Host: "10.0.0.1"}, mikrotik.ModeMock},
		{"production default", "", "production", complete, mikrotik.ModeMock},
		{"development default complete", "", "development", complete, mikrotik.ModeReal},
		{"development default incomplete", "", "development", MikroTikConfig{}, mikrotik.ModeMock},
		{"garbage mode treated as unset", "sometimes", "production", complete, mikrotik.ModeMock},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.Server.Environment = tt.env
			cfg.MikroTik = tt.mt
			cfg.MikroTik.Mode = tt.mode
			if got := cfg.ResolvedMode(); got != tt.want {
				t.Errorf("ResolvedMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityConfig_ValidatePassword(t *testing.T) {
	t.Parallel()

	sec := &SecurityConfig{PasswordMinLength: 10}
	if err := sec.ValidatePassword("short"); err == nil {
		t.Error("expected length error")
	}
	if err := sec.ValidatePassword("long-enough-pw"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	var nilSec *SecurityConfig
	if err := nilSec.ValidatePassword("12345678"); err != nil {
		t.Errorf("nil config default: %v", err)
	}
}
