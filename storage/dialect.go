package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// Name returns "sqlite" or "postgres"
	Name() string

	// Placeholder returns the parameter placeholder for a 1-based index.
	// SQLite uses ?, PostgreSQL uses $1, $2, etc.
	Placeholder(index int) string

	// AutoIncrement returns the column type for auto-incrementing primary keys.
	AutoIncrement(big bool) string

	// TimestampType returns the column type for timestamps.
	TimestampType() string

	// RealType returns the column type for floating point amounts.
	RealType() string

	// LimitOffset returns the LIMIT/OFFSET clause, or "" when both are zero.
	LimitOffset(limit, offset int) string
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) AutoIncrement(big bool) string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d *SQLiteDialect) TimestampType() string {
	return "DATETIME"
}

func (d *SQLiteDialect) RealType() string {
	return "REAL"
}

func (d *SQLiteDialect) LimitOffset(limit, offset int) string {
	return limitOffset(limit, offset)
}

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) AutoIncrement(big bool) string {
	if big {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "SERIAL PRIMARY KEY"
}

func (d *PostgresDialect) TimestampType() string {
	return "TIMESTAMPTZ"
}

func (d *PostgresDialect) RealType() string {
	return "DOUBLE PRECISION"
}

func (d *PostgresDialect) LimitOffset(limit, offset int) string {
	return limitOffset(limit, offset)
}

func limitOffset(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if offset <= 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if limit <= 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

// ConvertPlaceholders converts SQLite-style ? placeholders to PostgreSQL-style $n placeholders.
func ConvertPlaceholders(query string) string {
	var result strings.Builder
	result.Grow(len(query) + 10)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			result.WriteByte(query[i])
		}
	}
	return result.String()
}

// schemaStatements returns the DDL for every table, rendered for the dialect.
func schemaStatements(d Dialect) []string {
	ts := d.TimestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at ` + ts + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone_number TEXT NOT NULL DEFAULT '',
			plan_name TEXT NOT NULL,
			amount ` + d.RealType() + ` NOT NULL DEFAULT 0,
			duration TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL,
			password TEXT NOT NULL,
			receipt_id TEXT NOT NULL,
			pdf_path TEXT NOT NULL,
			enrollment TEXT NOT NULL,
			enrollment_error TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_username ON sales(username)`,

		`CREATE TABLE IF NOT EXISTS users (
			id ` + d.AutoIncrement(true) + `,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'operator',
			created_at ` + ts + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at ` + ts + ` NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id ` + d.AutoIncrement(true) + `,
			timestamp ` + ts + ` NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			actor_name TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			target_type TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'info',
			details TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp)`,
	}
}
