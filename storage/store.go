// Package storage persists the sales ledger, dashboard accounts, login
// sessions and the operator audit log in SQLite or PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"time"

	"jiconnect/server/config"
)

// Store is the persistence interface used by the server
type Store interface {
	// Sales
	CreateSale(ctx context.Context, sale *Sale) error
	GetSale(ctx context.Context, id string) (*Sale, error)
	ListSales(ctx context.Context, limit int) ([]*Sale, error)

	// Users
	CreateUser(ctx context.Context, user *User, rawPassword string) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	AuthenticateUser(ctx context.Context, email, rawPassword string) (*User, error)
	UpdateUserPassword(ctx context.Context, userID int64, rawPassword string) error
	EnsureUser(ctx context.Context, user *User, rawPassword string) error

	// Sessions
	CreateSession(ctx context.Context, userID int64, ttlMinutes int) (*Session, error)
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Audit
	SaveAuditEntry(ctx context.Context, entry *AuditEntry) error
	GetAuditLog(ctx context.Context, actorID string, since time.Time) ([]*AuditEntry, error)

	Close() error
}

// NewStore opens the backend selected by the database configuration.
// SQLite is the default; PostgreSQL is used when the driver or DSN says so.
func NewStore(cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}

	driver := cfg.EffectiveDriver()

	switch driver {
	case "sqlite", "sqlite3", "modernc":
		path := cfg.Path
		if path == "" {
			path = GetDefaultDBPath()
		}
		return NewSQLiteStore(path)

	case "postgres", "postgresql", "pgx":
		return NewPostgresStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported database driver: %q (supported: sqlite, postgres)", driver)
	}
}
