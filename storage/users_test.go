package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: " Admin@JiConnect.co ", Role: RoleAdmin, Name: "Super Admin"}
	if err := s.CreateUser(ctx, u, "Admin123!"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected user ID to be set")
	}
	if u.Email != "admin@jiconnect.co" {
		t.Errorf("email not normalized: %q", u.Email)
	}

	got, err := s.GetUserByEmail(ctx, "ADMIN@jiconnect.co")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Role != RoleAdmin {
		t.Errorf("GetUserByEmail = %+v", got)
	}
	if !strings.HasPrefix(got.PasswordHash, "$argon2id$") {
		t.Errorf("password not hashed with argon2id: %q", got.PasswordHash)
	}

	if _, err := s.AuthenticateUser(ctx, "admin@jiconnect.co", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := s.AuthenticateUser(ctx, "nobody@jiconnect.co", "Admin123!"); err == nil {
		t.Error("unknown user accepted")
	}
	authed, err := s.AuthenticateUser(ctx, "admin@jiconnect.co", "Admin123!")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if authed.PasswordHash != "" {
		t.Error("AuthenticateUser should not return the hash")
	}

	if err := s.UpdateUserPassword(ctx, u.ID, "N3wPassword"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	if _, err := s.AuthenticateUser(ctx, "admin@jiconnect.co", "Admin123!"); err == nil {
		t.Error("old password still valid")
	}
	if _, err := s.AuthenticateUser(ctx, "admin@jiconnect.co", "N3wPassword"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	if err := s.UpdateUserPassword(ctx, 9999, "whatever"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUserPassword(missing) = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, &User{}, "pw"); err == nil {
		t.Error("user without email accepted")
	}
	if err := s.CreateUser(ctx, &User{Email: "a@b.c"}, ""); err == nil {
		t.Error("empty password accepted")
	}
	if err := s.CreateUser(ctx, &User{Email: "a@b.c"}, "pw"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, &User{Email: "A@B.C"}, "pw"); err == nil {
		t.Error("duplicate email accepted")
	}
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	first := &User{Email: "admin@jiconnect.co", Role: RoleAdmin, Name: "Super Admin"}
	if err := s.EnsureUser(ctx, first, "Admin123!"); err != nil {
		t.Fatalf("EnsureUser create: %v", err)
	}

	again := &User{Email: "admin@jiconnect.co", Role: RoleAdmin}
	if err := s.EnsureUser(ctx, again, "Other456!"); err != nil {
		t.Fatalf("EnsureUser reset: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("EnsureUser created a second account: %d vs %d", again.ID, first.ID)
	}
	if again.Name != "Super Admin" {
		t.Errorf("name = %q, want kept", again.Name)
	}
	if _, err := s.AuthenticateUser(ctx, "admin@jiconnect.co", "Other456!"); err != nil {
		t.Errorf("password not reset: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "ops@jiconnect.co", Role: RoleOperator}
	if err := s.CreateUser(ctx, u, "password123"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ses, err := s.CreateSession(ctx, u.ID, 60)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ses.Token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := s.GetSessionByToken(ctx, ses.Token)
	if err != nil {
		t.Fatalf("GetSessionByToken: %v", err)
	}
	if got.UserID != u.ID || got.Email != "ops@jiconnect.co" {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Token != TokenHash(ses.Token) {
		t.Error("stored token should be the SHA-256 hash of the raw token")
	}

	if err := s.DeleteSession(ctx, ses.Token); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSessionByToken(ctx, ses.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session lookup = %v, want ErrNotFound", err)
	}
}

func TestExpiredSessions(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	u := &User{Email: "ops@jiconnect.co"}
	if err := s.CreateUser(ctx, u, "password123"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	expired, err := s.CreateSession(ctx, u.ID, -5)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := s.GetSessionByToken(ctx, expired.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session lookup = %v, want ErrNotFound", err)
	}

	live, err := s.CreateSession(ctx, u.ID, 60)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	n, err := s.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d sessions, want 1", n)
	}
	if _, err := s.GetSessionByToken(ctx, live.Token); err != nil {
		t.Errorf("live session purged: %v", err)
	}
}

func TestAuditLog(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Minute)

	entries := []*AuditEntry{
		{ActorID: "1", ActorName: "admin@jiconnect.co", Action: "hotspot.disconnect", TargetType: "hotspot_session", TargetID: "*1", Metadata: map[string]any{"simulated": true}},
		{ActorID: "2", ActorName: "ops@jiconnect.co", Action: "auth.change_password"},
	}
	for _, e := range entries {
		if err := s.SaveAuditEntry(ctx, e); err != nil {
			t.Fatalf("SaveAuditEntry: %v", err)
		}
		if e.ID == 0 {
			t.Error("audit id not set")
		}
	}
	if err := s.SaveAuditEntry(ctx, &AuditEntry{ActorID: "1"}); err == nil {
		t.Error("entry without action accepted")
	}

	mine, err := s.GetAuditLog(ctx, "1", since)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(mine) != 1 || mine[0].Action != "hotspot.disconnect" || mine[0].Severity != AuditSeverityInfo {
		t.Fatalf("GetAuditLog(actor) = %+v", mine)
	}
	if mine[0].Metadata["simulated"] != true {
		t.Errorf("metadata = %v", mine[0].Metadata)
	}

	all, err := s.GetAuditLog(ctx, "", since)
	if err != nil {
		t.Fatalf("GetAuditLog(all): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

func TestArgonHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := hashArgon("s3cret")
	if err != nil {
		t.Fatalf("hashArgon: %v", err)
	}
	ok, err := verifyArgonHash("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("verify correct secret = %v, %v", ok, err)
	}
	ok, err = verifyArgonHash("other", hash)
	if err != nil || ok {
		t.Fatalf("verify wrong secret = %v, %v", ok, err)
	}
	if _, err := verifyArgonHash("s3cret", "$2a$10$bcrypt"); err == nil {
		t.Error("non-argon hash accepted")
	}
}
