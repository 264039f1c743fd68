package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"jiconnect/server/mikrotik"
)

// StatusProber reports appliance reachability
type StatusProber interface {
	Status(ctx context.Context) mikrotik.RouterStatus
}

// RouterAPI serves the appliance status endpoints
type RouterAPI struct {
	prober  StatusProber
	timeout time.Duration
}

// NewRouterAPI builds the router status API. timeout bounds each probe.
func NewRouterAPI(prober StatusProber, timeout time.Duration) (*RouterAPI, error) {
	if prober == nil {
		return nil, errors.New("router API requires a device")
	}
	return &RouterAPI{prober: prober, timeout: timeout}, nil
}

// RegisterRoutes registers GET /api/router/status and its /api/status alias.
func (api *RouterAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/router/status", api.handleStatus)
	mux.HandleFunc("/api/status", api.handleStatus)
}

func (api *RouterAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	if api.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, api.timeout)
		defer cancel()
	}
	writeJSON(w, http.StatusOK, api.prober.Status(ctx))
}
