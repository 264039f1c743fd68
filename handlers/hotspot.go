package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jiconnect/server/hotspot"
	"jiconnect/server/mikrotik"
	"jiconnect/server/storage"
)

// SessionRegistry lists and kicks active hotspot sessions
type SessionRegistry interface {
	ListActive(ctx context.Context) ([]hotspot.Session, error)
	Disconnect(ctx context.Context, id string) (mikrotik.Outcome, error)
}

// HotspotAPIOptions configures the operator hotspot endpoints.
type HotspotAPIOptions struct {
	APIOptions
	// DeviceTimeout bounds each request's appliance work
	DeviceTimeout time.Duration
	// LiveInterval is the refresh period of the websocket feed
	LiveInterval time.Duration
	// TokenAuthenticator validates the ?token= of websocket clients, which
	// cannot send an Authorization header. It returns the operator label.
	TokenAuthenticator func(ctx context.Context, token string) (string, error)
}

// HotspotAPI serves "who is online" and "kick" to operators
type HotspotAPI struct {
	registry     SessionRegistry
	timeout      time.Duration
	liveInterval time.Duration
	tokenAuth    func(ctx context.Context, token string) (string, error)
	opts         APIOptions
}

const defaultLiveInterval = 5 * time.Second

// NewHotspotAPI builds the hotspot API.
func NewHotspotAPI(registry SessionRegistry, opts HotspotAPIOptions) (*HotspotAPI, error) {
	if registry == nil {
		return nil, errors.New("hotspot API requires a session registry")
	}
	interval := opts.LiveInterval
	if interval <= 0 {
		interval = defaultLiveInterval
	}
	return &HotspotAPI{
		registry:     registry,
		timeout:      opts.DeviceTimeout,
		liveInterval: interval,
		tokenAuth:    opts.TokenAuthenticator,
		opts:         opts.APIOptions,
	}, nil
}

// RegisterRoutes registers the authenticated hotspot endpoints.
func (api *HotspotAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/hotspot/active", api.opts.wrap(api.handleActive))
	mux.HandleFunc("/api/hotspot/disconnect", api.opts.wrap(api.handleDisconnect))
	mux.HandleFunc("/api/hotspot/live", api.handleLive)
}

func (api *HotspotAPI) deviceContext(parent context.Context) (context.Context, context.CancelFunc) {
	if api.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, api.timeout)
}

type activeResponse struct {
	Items []hotspot.Session `json:"items"`
	Count int               `json:"count"`
}

func (api *HotspotAPI) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx, cancel := api.deviceContext(r.Context())
	defer cancel()

	sessions, err := api.registry.ListActive(ctx)
	if err != nil {
		api.opts.logger().Warn("Listing active sessions failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Erreur serveur",
			"details": err.Error(),
		})
		return
	}
	if sessions == nil {
		sessions = []hotspot.Session{}
	}
	writeJSON(w, http.StatusOK, activeResponse{Items: sessions, Count: len(sessions)})
}

func (api *HotspotAPI) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Paramètre 'id' requis"})
		return
	}

	ctx, cancel := api.deviceContext(r.Context())
	defer cancel()

	out, err := api.registry.Disconnect(ctx, body.ID)
	if errors.Is(err, hotspot.ErrMissingSessionID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Paramètre 'id' requis"})
		return
	}
	if err != nil {
		api.opts.logger().Error("Disconnect failed", "id", body.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erreur serveur"})
		return
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "Echec déconnexion"
		}
		api.audit(r, body.ID, out, storage.AuditSeverityWarning)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
		return
	}

	api.audit(r, body.ID, out, storage.AuditSeverityInfo)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (api *HotspotAPI) audit(r *http.Request, id string, out mikrotik.Outcome, severity string) {
	details := "Disconnected hotspot session"
	if !out.Success {
		details = "Hotspot session disconnect failed"
	}
	api.opts.audit(r, &storage.AuditEntry{
		ActorName:  api.opts.actorLabel(r),
		Action:     "hotspot.disconnect",
		TargetType: "hotspot_session",
		TargetID:   id,
		Severity:   severity,
		Details:    details,
		Metadata: map[string]any{
			"simulated": out.Disabled,
			"error":     out.Error,
		},
	})
}
