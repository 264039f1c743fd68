package mikrotik

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// API command paths used by the hotspot flows
const (
	cmdHotspotUserAdd     = "/ip/hotspot/user/add"
	cmdHotspotActivePrint = "/ip/hotspot/active/print"
	cmdHotspotActiveKick  = "/ip/hotspot/active/remove"
)

// HotspotUser is an account to create on the appliance
type HotspotUser struct {
	Name        string
	Password    string
	LimitUptime time.Duration
}

// Outcome is the result of a device operation. Device trouble is reported
// here rather than as an error so callers can degrade gracefully.
type Outcome struct {
	Success  bool   `json:"success"`
	Disabled bool   `json:"disabled,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Enrollment states recorded on sales
const (
	StateEnrolled = "enrolled"
	StateDisabled = "disabled"
	StateFailed   = "failed"
)

// State summarizes the outcome as enrolled, disabled or failed
func (o Outcome) State() string {
	switch {
	case !o.Success:
		return StateFailed
	case o.Disabled:
		return StateDisabled
	default:
		return StateEnrolled
	}
}

func failed(err error) Outcome {
	return Outcome{Success: false, Error: err.Error()}
}

// RouterStatus is the reachability summary exposed by the status endpoint
type RouterStatus struct {
	Online bool   `json:"online"`
	Mode   Mode   `json:"mode"`
	Error  string `json:"error,omitempty"`
}

// Device is the appliance capability. The server builds one at startup,
// either a RealDevice or a MockDevice, and injects it where needed.
type Device interface {
	Mode() Mode
	AddHotspotUser(ctx context.Context, user HotspotUser) Outcome
	ActiveConnections(ctx context.Context) ([]map[string]string, error)
	RemoveActive(ctx context.Context, id string) Outcome
	Status(ctx context.Context) RouterStatus
}

// NewDevice returns the backend for the resolved mode. dial may be nil.
func NewDevice(mode Mode, addr Address, dial Dialer) Device {
	if mode == ModeReal {
		return &RealDevice{client: NewClient(addr, dial)}
	}
	return &MockDevice{}
}

// RealDevice talks to the appliance through a Client
type RealDevice struct {
	client *Client
}

var _ Device = (*RealDevice)(nil)

// NewRealDevice wraps an existing client
func NewRealDevice(client *Client) *RealDevice {
	return &RealDevice{client: client}
}

func (d *RealDevice) Mode() Mode { return ModeReal }

// AddHotspotUser creates a time-limited hotspot account. Users without a
// time limit are refused: RouterOS treats a zero limit as unlimited access.
func (d *RealDevice) AddHotspotUser(ctx context.Context, user HotspotUser) Outcome {
	if user.LimitUptime <= 0 {
		logError("Refusing to add hotspot user without a time limit", "username", user.Name)
		return Outcome{Success: false, Error: "no access time granted for this plan"}
	}

	cmd := Command{
		Path: cmdHotspotUserAdd,
		Params: []Param{
			{Key: "name", Value: user.Name},
			{Key: "password", Value: user.Password},
			{Key: "limit-uptime", Value: FormatUptime(user.LimitUptime)},
		},
	}
	if _, err := d.client.Execute(ctx, cmd); err != nil {
		logError("Adding hotspot user failed", "username", user.Name, "error", err)
		return failed(err)
	}
	logInfo("Hotspot user added", "username", user.Name, "limit_uptime", FormatUptime(user.LimitUptime))
	return Outcome{Success: true}
}

// ActiveConnections returns the raw rows of the active hotspot table
func (d *RealDevice) ActiveConnections(ctx context.Context) ([]map[string]string, error) {
	rows, err := d.client.Execute(ctx, Command{Path: cmdHotspotActivePrint})
	if err != nil {
		return nil, fmt.Errorf("list active hotspot connections: %w", err)
	}
	return rows, nil
}

// RemoveActive kicks one active session by its appliance id
func (d *RealDevice) RemoveActive(ctx context.Context, id string) Outcome {
	cmd := Command{
		Path:   cmdHotspotActiveKick,
		Params: []Param{{Key: ".id", Value: id}},
	}
	if _, err := d.client.Execute(ctx, cmd); err != nil {
		logError("Removing active session failed", "id", id, "error", err)
		return failed(err)
	}
	logInfo("Active session removed", "id", id)
	return Outcome{Success: true}
}

// Status probes reachability with a connect-and-close
func (d *RealDevice) Status(ctx context.Context) RouterStatus {
	if err := d.client.Probe(ctx); err != nil {
		return RouterStatus{Online: false, Mode: ModeReal, Error: err.Error()}
	}
	return RouterStatus{Online: true, Mode: ModeReal}
}

// FormatUptime renders a duration in RouterOS time syntax, e.g. 1d, 7d, 1h30m
func FormatUptime(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)

	var b strings.Builder
	units := []struct {
		suffix string
		size   time.Duration
	}{
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}
	for _, u := range units {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.suffix)
			d -= n * u.size
		}
	}
	return b.String()
}
