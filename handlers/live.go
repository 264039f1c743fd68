package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"jiconnect/server/hotspot"
)

const (
	livePingInterval = 25 * time.Second
	livePongWait     = 60 * time.Second
	liveWriteWait    = 10 * time.Second
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type liveSnapshot struct {
	Items []hotspot.Session `json:"items"`
	Count int               `json:"count"`
	TS    string            `json:"ts"`
	Error string            `json:"error,omitempty"`
}

// handleLive streams active-session snapshots over a websocket. Browsers
// cannot set headers on the upgrade, so the session token rides in ?token=.
func (api *HotspotAPI) handleLive(w http.ResponseWriter, r *http.Request) {
	log := api.opts.logger()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}
	if api.tokenAuth == nil {
		http.Error(w, "live feed not configured", http.StatusServiceUnavailable)
		return
	}
	actor, err := api.tokenAuth(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Live feed upgrade failed", "actor", actor, "error", err)
		return
	}
	defer conn.Close()

	log.Info("Live feed connected", "actor", actor, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	// Reader: only control frames are expected; any read error ends the feed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	refresh := time.NewTicker(api.liveInterval)
	defer refresh.Stop()
	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	if err := api.sendSnapshot(ctx, conn); err != nil {
		log.Debug("Live feed write failed", "actor", actor, "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("Live feed closed", "actor", actor)
			return
		case <-refresh.C:
			if err := api.sendSnapshot(ctx, conn); err != nil {
				log.Debug("Live feed write failed", "actor", actor, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				log.Debug("Live feed ping failed", "actor", actor, "error", err)
				return
			}
		}
	}
}

func (api *HotspotAPI) sendSnapshot(parent context.Context, conn *websocket.Conn) error {
	ctx, cancel := api.deviceContext(parent)
	sessions, err := api.registry.ListActive(ctx)
	cancel()

	snap := liveSnapshot{Items: sessions, TS: time.Now().UTC().Format(time.RFC3339Nano)}
	if err != nil {
		snap.Error = err.Error()
	}
	if snap.Items == nil {
		snap.Items = []hotspot.Session{}
	}
	snap.Count = len(snap.Items)

	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(snap)
}
