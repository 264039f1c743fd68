package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jiconnect/server/storage"
)

type contextKey string

const userContextKey contextKey = "user"

var errInvalidToken = errors.New("invalid or expired session token")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// authenticateToken resolves a raw session token to its user
func authenticateToken(ctx context.Context, token string) (*storage.User, error) {
	if serverStore == nil || token == "" {
		return nil, errInvalidToken
	}
	sess, err := serverStore.GetSessionByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logWarn("Session lookup failed", "error", err)
		}
		return nil, errInvalidToken
	}
	user, err := serverStore.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, errInvalidToken
	}
	user.PasswordHash = ""
	return user, nil
}

// requireAuth rejects requests without a valid Bearer session token and
// stores the authenticated user in the request context.
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token manquant"})
			return
		}
		user, err := authenticateToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token invalide"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

func getUserFromContext(ctx context.Context) *storage.User {
	if u, ok := ctx.Value(userContextKey).(*storage.User); ok {
		return u
	}
	return nil
}

func actorFromRequest(r *http.Request) string {
	if u := getUserFromContext(r.Context()); u != nil {
		return u.Email
	}
	return ""
}

// logAuditEntry fills request metadata and persists the entry. Failures are
// logged only; auditing never fails the operation it records.
func logAuditEntry(r *http.Request, entry *storage.AuditEntry) {
	if entry == nil || serverStore == nil {
		return
	}
	if u := getUserFromContext(r.Context()); u != nil {
		if entry.ActorID == "" {
			entry.ActorID = u.Email
		}
		if entry.ActorName == "" {
			entry.ActorName = u.Name
		}
	}
	if entry.IPAddress == "" {
		entry.IPAddress = extractIPFromAddr(r.RemoteAddr)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = r.UserAgent()
	}
	if entry.Severity == "" {
		entry.Severity = storage.AuditSeverityInfo
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := serverStore.SaveAuditEntry(ctx, entry); err != nil {
		logWarn("Failed to save audit entry", "action", entry.Action, "error", err)
	}
}

func sessionTTLMinutes() int {
	if serverConfig != nil && serverConfig.Security.SessionTTLMinutes > 0 {
		return serverConfig.Security.SessionTTLMinutes
	}
	return 7 * 24 * 60
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      struct {
		Email string       `json:"email"`
		Role  storage.Role `json:"role"`
	} `json:"user"`
}

// handleAuthLogin handles POST /api/auth/login
func handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email et password requis"})
		return
	}

	ip := extractIPFromAddr(r.RemoteAddr)
	if authRateLimiter != nil {
		if blocked, until := authRateLimiter.IsBlocked(ip, body.Email); blocked {
			w.Header().Set("Retry-After", retryAfterSeconds(until))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Trop de tentatives, réessayez plus tard"})
			return
		}
	}

	user, err := serverStore.AuthenticateUser(r.Context(), body.Email, body.Password)
	if err != nil {
		if authRateLimiter != nil {
			if blocked, count := authRateLimiter.RecordFailure(ip, body.Email); blocked {
				logWarn("Login blocked after repeated failures", "ip", ip, "email", body.Email, "attempts", count)
			}
		}
		logAuditEntry(r, &storage.AuditEntry{
			ActorID:    strings.ToLower(strings.TrimSpace(body.Email)),
			Action:     "auth.login_failed",
			TargetType: "user",
			TargetID:   strings.ToLower(strings.TrimSpace(body.Email)),
			Severity:   storage.AuditSeverityWarning,
			Details:    "Invalid credentials",
		})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Identifiants invalides"})
		return
	}
	if authRateLimiter != nil {
		authRateLimiter.RecordSuccess(ip, body.Email)
	}

	sess, err := serverStore.CreateSession(r.Context(), user.ID, sessionTTLMinutes())
	if err != nil {
		logError("Failed to create session", "user", user.Email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erreur serveur"})
		return
	}

	logAuditEntry(r, &storage.AuditEntry{
		ActorID:    user.Email,
		ActorName:  user.Name,
		Action:     "auth.login",
		TargetType: "user",
		TargetID:   user.Email,
		Details:    "Operator signed in",
	})

	var resp loginResponse
	resp.Token = sess.Token
	resp.ExpiresAt = sess.ExpiresAt
	resp.User.Email = user.Email
	resp.User.Role = user.Role
	writeJSON(w, http.StatusOK, resp)
}

func retryAfterSeconds(until time.Time) string {
	secs := int(time.Until(until).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// handleAuthMe handles GET /api/auth/me
func handleAuthMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token invalide"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	})
}

// handleAuthChangePassword handles POST /api/auth/change-password
func handleAuthChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	user := getUserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token invalide"})
		return
	}

	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 8<<10)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CurrentPassword == "" || body.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Champs requis"})
		return
	}

	var security *SecurityConfig
	if serverConfig != nil {
		security = &serverConfig.Security
	}
	if err := security.ValidatePassword(body.NewPassword); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := serverStore.AuthenticateUser(r.Context(), user.Email, body.CurrentPassword); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Mot de passe actuel incorrect"})
		return
	}
	if err := serverStore.UpdateUserPassword(r.Context(), user.ID, body.NewPassword); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Admin introuvable"})
			return
		}
		logError("Password change failed", "user", user.Email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Erreur serveur"})
		return
	}

	logAuditEntry(r, &storage.AuditEntry{
		Action:     "auth.change_password",
		TargetType: "user",
		TargetID:   user.Email,
		Details:    "Password changed",
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleAuthLogout handles POST /api/auth/logout
func handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if err := serverStore.DeleteSession(r.Context(), bearerToken(r)); err != nil {
		logWarn("Failed to delete session", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSeedAdmin (re)creates the configured admin account. Only registered
// when seeding is enabled; a configured token must match ?token= or the
// JSON body's token.
func handleSeedAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if serverConfig == nil || !serverConfig.Seed.Enabled {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"ok": false, "error": "seed_disabled"})
		return
	}

	provided := r.URL.Query().Get("token")
	if r.Method == http.MethodPost {
		var body struct {
			Token string `json:"token"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
		_ = json.NewDecoder(r.Body).Decode(&body)
		provided = body.Token
	}
	if expected := serverConfig.Seed.Token; expected != "" &&
		subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "bad_token"})
		return
	}

	user, err := seedAdmin(r.Context(), serverStore, serverConfig.Seed)
	if err != nil {
		logError("Seeding admin failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	logAuditEntry(r, &storage.AuditEntry{
		ActorID:    "seed",
		Action:     "auth.seed_admin",
		TargetType: "user",
		TargetID:   user.Email,
		Severity:   storage.AuditSeverityWarning,
		Details:    "Admin account (re)created through the seed route",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"email":    user.Email,
		"password": serverConfig.Seed.AdminPassword,
	})
}

// seedAdmin creates the configured admin or resets its password
func seedAdmin(ctx context.Context, store storage.Store, seed SeedConfig) (*storage.User, error) {
	if store == nil {
		return nil, errors.New("store not initialized")
	}
	if strings.TrimSpace(seed.AdminEmail) == "" || seed.AdminPassword == "" {
		return nil, errors.New("seed admin email and password must be configured")
	}
	user := &storage.User{
		Email: seed.AdminEmail,
		Name:  seed.AdminName,
		Role:  storage.RoleAdmin,
	}
	if err := store.EnsureUser(ctx, user, seed.AdminPassword); err != nil {
		return nil, err
	}
	return user, nil
}
