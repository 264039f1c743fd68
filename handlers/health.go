package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// HealthAPI provides HTTP handlers for health checks and version information.
type HealthAPI struct {
	version      string
	buildTime    string
	gitCommit    string
	buildType    string
	processStart time.Time
	modeReporter func() string
}

// HealthAPIOptions configures the health API.
type HealthAPIOptions struct {
	Version      string
	BuildTime    string
	GitCommit    string
	BuildType    string
	ProcessStart time.Time
	// ModeReporter returns the resolved device mode (real or mock)
	ModeReporter func() string
}

// NewHealthAPI creates a new health API instance.
func NewHealthAPI(opts HealthAPIOptions) *HealthAPI {
	start := opts.ProcessStart
	if start.IsZero() {
		start = time.Now()
	}
	return &HealthAPI{
		version:      opts.Version,
		buildTime:    opts.BuildTime,
		gitCommit:    opts.GitCommit,
		buildType:    opts.BuildType,
		processStart: start,
		modeReporter: opts.ModeReporter,
	}
}

// RegisterRoutes registers the health and version routes.
func (api *HealthAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/health", api.HandleHealth)
	mux.HandleFunc("/api/health", api.HandleHealth)
	mux.HandleFunc("/api/version", api.HandleVersion)
}

// HandleHealth handles GET /health and /api/health. Public, for load
// balancers and the service manager.
func (api *HealthAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"status": "healthy",
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleVersion handles GET /api/version
func (api *HealthAPI) HandleVersion(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"version":    api.version,
		"build_time": api.buildTime,
		"git_commit": api.gitCommit,
		"build_type": api.buildType,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(api.processStart).Round(time.Second).String(),
	}
	if api.modeReporter != nil {
		resp["mikrotik_mode"] = api.modeReporter()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheckConfig contains configuration for health checks.
type HealthCheckConfig struct {
	BindAddress string
	HTTPPort    int
}

// RunHealthCheck probes the local /health endpoint.
// Returns nil on success; otherwise an error describing the failed attempt.
func RunHealthCheck(cfg HealthCheckConfig) error {
	host := strings.TrimSpace(cfg.BindAddress)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	port := cfg.HTTPPort
	if port <= 0 {
		port = 3001
	}
	endpoint := fmt.Sprintf("http://%s/health", joinHostPort(host, port))
	if err := probeHealthEndpoint(endpoint); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// probeHealthEndpoint sends a GET request to the health endpoint and validates the response.
func probeHealthEndpoint(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !payload.OK {
		return fmt.Errorf("server reported not ok")
	}
	return nil
}
