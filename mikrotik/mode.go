// Package mikrotik controls the hotspot appliance over the RouterOS API.
//
// Every operation opens a fresh connection, runs one command under a
// deadline and closes the connection again. The package also provides the
// mock backend used when the appliance cannot be reached from where the
// server is deployed, and the resolver that picks between the two.
package mikrotik

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Mode selects the device backend
type Mode string

const (
	ModeReal Mode = "real"
	ModeMock Mode = "mock"
)

const (
	// DefaultPort is the plain-text RouterOS API port
	DefaultPort = 8728
	// DefaultConnectTimeout bounds connect and command round trips
	DefaultConnectTimeout = 5 * time.Second

	productionEnv = "production"
)

// ParseMode parses a configured mode. ok is false when the value is empty or
// unrecognized, which the resolver treats as "no explicit mode requested".
func ParseMode(s string) (mode Mode, ok bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReal:
		return ModeReal, true
	case ModeMock:
		return ModeMock, true
	default:
		return "", false
	}
}

// IsProduction reports whether the deployment environment name is production
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), productionEnv)
}

// ResolveMode decides which backend to use. A real appliance is only used
// when the address is complete; without an explicit request, production
// deployments default to the mock because the appliance normally sits on a
// private network the server cannot reach.
func ResolveMode(requested Mode, deploymentEnv string, haveCompleteAddress bool) Mode {
	switch requested {
	case ModeMock:
		return ModeMock
	case ModeReal:
		if haveCompleteAddress {
			return ModeReal
		}
		return ModeMock
	}

	if IsProduction(deploymentEnv) {
		return ModeMock
	}
	if haveCompleteAddress {
		return ModeReal
	}
	return ModeMock
}

// Address locates and authenticates against the appliance
type Address struct {
	Host           string
	Port           int
	User           string
	Password       string
	ConnectTimeout time.Duration
}

// Complete reports whether the address has everything needed to log in
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Host) != "" && a.User != "" && a.Password != ""
}

// HostPort returns host:port, applying the default API port
func (a Address) HostPort() string {
	port := a.Port
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(strings.TrimSpace(a.Host), strconv.Itoa(port))
}

// Timeout returns the configured connect timeout or the default
func (a Address) Timeout() time.Duration {
	if a.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return a.ConnectTimeout
}
