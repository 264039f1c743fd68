// Package handlers provides the HTTP API of the voucher server.
// Each API takes its collaborators as interfaces and registers its routes on
// a caller-supplied mux.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"jiconnect/server/storage"
)

// APIOptions provides cross-cutting infrastructure for the HTTP layer.
type APIOptions struct {
	// AuthMiddleware wraps handlers requiring an operator session
	AuthMiddleware func(http.HandlerFunc) http.HandlerFunc

	// ActorResolver returns the email of the authenticated operator
	ActorResolver func(*http.Request) string

	// AuditLogger records operator actions
	AuditLogger func(*http.Request, *storage.AuditEntry)

	Logger Logger
}

// Logger provides logging capabilities.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

func (o APIOptions) wrap(handler http.HandlerFunc) http.HandlerFunc {
	if o.AuthMiddleware == nil {
		return handler
	}
	return o.AuthMiddleware(handler)
}

func (o APIOptions) actorLabel(r *http.Request) string {
	if o.ActorResolver == nil {
		return "system"
	}
	if name := strings.TrimSpace(o.ActorResolver(r)); name != "" {
		return name
	}
	return "system"
}

func (o APIOptions) audit(r *http.Request, entry *storage.AuditEntry) {
	if o.AuditLogger == nil || entry == nil {
		return
	}
	o.AuditLogger(r, entry)
}

func (o APIOptions) logger() Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
