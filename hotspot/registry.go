// Package hotspot exposes the appliance's active-session table in a
// normalized form and lets operators kick sessions.
package hotspot

import (
	"context"
	"errors"
	"strings"

	"jiconnect/server/mikrotik"
)

// ErrMissingSessionID is returned when a disconnect has no session id
var ErrMissingSessionID = errors.New("hotspot: missing session id")

// Session describes one active hotspot login
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IP       string `json:"ip"`
	MAC      string `json:"mac"`
	Uptime   string `json:"uptime"`
	BytesIn  string `json:"bytesIn"`
	BytesOut string `json:"bytesOut"`
	LoginBy  string `json:"loginBy"`
	Left     string `json:"left"`
}

// Logger is the subset of the server logger the registry needs
type Logger interface {
	Warn(msg string, args ...interface{})
	Info(msg string, args ...interface{})
}

// Registry lists and disconnects active sessions through the device
type Registry struct {
	device     mikrotik.Device
	production bool
	log        Logger
}

// NewRegistry creates a registry. In production deployments a failed listing
// falls back to the mock dataset instead of surfacing the error.
func NewRegistry(device mikrotik.Device, production bool, log Logger) *Registry {
	return &Registry{device: device, production: production, log: log}
}

// Mode reports the backend the registry talks to
func (r *Registry) Mode() mikrotik.Mode {
	return r.device.Mode()
}

// ListActive returns the current active sessions
func (r *Registry) ListActive(ctx context.Context) ([]Session, error) {
	rows, err := r.device.ActiveConnections(ctx)
	if err != nil {
		if !r.production {
			return nil, err
		}
		if r.log != nil {
			r.log.Warn("Listing active sessions failed, serving mock data", "error", err)
		}
		return MockSessions(), nil
	}
	return normalize(rows), nil
}

// Disconnect kicks the session with the given appliance id
func (r *Registry) Disconnect(ctx context.Context, id string) (mikrotik.Outcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return mikrotik.Outcome{}, ErrMissingSessionID
	}
	out := r.device.RemoveActive(ctx, id)
	if r.log != nil && out.Success {
		r.log.Info("Hotspot session disconnected", "id", id, "simulated", out.Disabled)
	}
	return out, nil
}

// MockSessions returns the fixed dataset served in mock mode
func MockSessions() []Session {
	return normalize(mikrotik.MockActiveRows())
}

func normalize(rows []map[string]string) []Session {
	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, Session{
			ID:       row[".id"],
			Username: row["user"],
			IP:       row["address"],
			MAC:      row["mac-address"],
			Uptime:   row["uptime"],
			BytesIn:  counter(row, "bytes-in"),
			BytesOut: counter(row, "bytes-out"),
			LoginBy:  row["login-by"],
			Left:     row["session-time-left"],
		})
	}
	return sessions
}

func counter(row map[string]string, key string) string {
	if v := row[key]; v != "" {
		return v
	}
	return "0"
}
