package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestHealthAPI_HandleHealth(t *testing.T) {
	t.Parallel()

	api := NewHealthAPI(HealthAPIOptions{Version: "1.0.0"})

	for _, path := range []string{"/health", "/api/health"} {
		mux := http.NewServeMux()
		api.RegisterRoutes(mux)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		var resp map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: failed to decode response: %v", path, err)
		}
		if ok, _ := resp["ok"].(bool); !ok {
			t.Errorf("%s: expected ok=true, got %v", path, resp["ok"])
		}
		ts, _ := resp["ts"].(string)
		if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
			t.Errorf("%s: ts %q is not RFC3339: %v", path, ts, err)
		}
	}
}

func TestHealthAPI_HandleVersion(t *testing.T) {
	t.Parallel()

	api := NewHealthAPI(HealthAPIOptions{
		Version:      "1.0.0",
		BuildTime:    "2025-01-01",
		GitCommit:    "abc123",
		BuildType:    "test",
		ProcessStart: time.Now(),
		ModeReporter: func() string { return "mock" },
	})

	w := httptest.NewRecorder()
	api.HandleVersion(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, field := range []string{"version", "build_time", "git_commit", "build_type", "go_version", "os", "arch", "uptime"} {
		if _, ok := resp[field]; !ok {
			t.Errorf("expected %s in response", field)
		}
	}
	if resp["mikrotik_mode"] != "mock" {
		t.Errorf("expected mikrotik_mode=mock, got %v", resp["mikrotik_mode"])
	}
}

func TestRunHealthCheck(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	NewHealthAPI(HealthAPIOptions{}).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	if err := RunHealthCheck(HealthCheckConfig{BindAddress: host, HTTPPort: port}); err != nil {
		t.Fatalf("RunHealthCheck: %v", err)
	}
}

func TestRunHealthCheck_Unhealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	if err := RunHealthCheck(HealthCheckConfig{BindAddress: host, HTTPPort: port}); err == nil {
		t.Fatal("expected error for a server reporting not ok")
	}
}
