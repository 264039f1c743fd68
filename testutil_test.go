package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jiconnect/server/mikrotik"
	"jiconnect/server/storage"
)

const (
	testAdminEmail    = "admin@jiconnect.co"
	testAdminPassword = "Admin123!"
)

// setupTestServer builds the full mux over an in-memory store and the mock
// appliance. Globals are swapped for the test's lifetime, so callers must
// not run in parallel.
func setupTestServer(t *testing.T, mutate func(*Config)) (*httptest.Server, storage.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Server.PublicDir = t.TempDir()
	cfg.Server.LiveRefreshSeconds = 1
	if mutate != nil {
		mutate(cfg)
	}

	prevStore, prevConfig, prevLimiter := serverStore, serverConfig, authRateLimiter
	serverStore = store
	serverConfig = cfg
	authRateLimiter = NewAuthRateLimiter(cfg.Security.RateLimitMaxAttempts,
		time.Duration(cfg.Security.RateLimitBlockMinutes)*time.Minute,
		time.Duration(cfg.Security.RateLimitWindowMinutes)*time.Minute)

	if _, err := seedAdmin(context.Background(), store, cfg.Seed); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	mux, err := newServerMux(serverDeps{
		Config:      cfg,
		Device:      mikrotik.NewDevice(cfg.ResolvedMode(), cfg.MikroTik.Address(), nil),
		Store:       store,
		ReceiptsDir: cfg.Server.PublicDir + "/receipts",
	})
	if err != nil {
		t.Fatalf("newServerMux: %v", err)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		authRateLimiter.Stop()
		store.Close()
		serverStore, serverConfig, authRateLimiter = prevStore, prevConfig, prevLimiter
	})
	return server, store
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, baseURL string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "", map[string]string{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d body=%v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}
