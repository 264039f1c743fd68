package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BaseStore provides the database operations shared by SQLite and PostgreSQL.
//
// Queries are written with SQLite-style ? placeholders and converted at
// runtime when the dialect is PostgreSQL.
type BaseStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewBaseStore creates a BaseStore over an open connection.
func NewBaseStore(db *sql.DB, dialect Dialect) *BaseStore {
	return &BaseStore{db: db, dialect: dialect}
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect being used.
func (s *BaseStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *BaseStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BaseStore) query(q string) string {
	if s.dialect.Name() == "postgres" {
		return ConvertPlaceholders(q)
	}
	return q
}

func (s *BaseStore) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.query(query), args...)
}

func (s *BaseStore) queryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.query(query), args...)
}

const schemaVersion = 1

// initSchema creates missing tables and records the schema version.
func (s *BaseStore) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	var current int
	if err := s.queryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}
	if current < schemaVersion {
		if _, err := s.execContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`, schemaVersion, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		logDebug("Schema initialized", "dialect", s.dialect.Name(), "version", schemaVersion)
	}
	return nil
}

// ============================================================================
// Sales Ledger
// ============================================================================

const saleColumns = `id, full_name, phone_number, plan_name, amount, duration, username, password,
	receipt_id, pdf_path, enrollment, enrollment_error, method, transaction_id, created_at`

// CreateSale inserts a sale record
func (s *BaseStore) CreateSale(ctx context.Context, sale *Sale) error {
	if sale == nil {
		return fmt.Errorf("sale required")
	}
	if sale.ID == "" {
		return fmt.Errorf("sale id required")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Method == "" {
		sale.Method = PaymentMethodSandbox
	}
	sale.Date = sale.CreatedAt

	query := `INSERT INTO sales (` + saleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.execContext(ctx, query,
		sale.ID, sale.FullName, sale.PhoneNumber, sale.PlanName, sale.Amount, sale.Duration,
		sale.Username, sale.Password, sale.ReceiptID, sale.PDFPath, sale.Enrollment,
		sale.EnrollmentError, sale.Method, sale.TransactionID, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// GetSale retrieves one sale by id
func (s *BaseStore) GetSale(ctx context.Context, id string) (*Sale, error) {
	row := s.queryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sale, err
}

// ListSales returns sales newest first. A limit <= 0 returns all rows.
func (s *BaseStore) ListSales(ctx context.Context, limit int) ([]*Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales ORDER BY created_at DESC, id DESC`
	if clause := s.dialect.LimitOffset(limit, 0); clause != "" {
		query += " " + clause
	}

	rows, err := s.queryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []*Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row rowScanner) (*Sale, error) {
	var sale Sale
	err := row.Scan(&sale.ID, &sale.FullName, &sale.PhoneNumber, &sale.PlanName, &sale.Amount,
		&sale.Duration, &sale.Username, &sale.Password, &sale.ReceiptID, &sale.PDFPath,
		&sale.Enrollment, &sale.EnrollmentError, &sale.Method, &sale.TransactionID, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.Date = sale.CreatedAt
	return &sale, nil
}

// ============================================================================
// User Management
// ============================================================================

// CreateUser creates a new user with a hashed password
func (s *BaseStore) CreateUser(ctx context.Context, user *User, rawPassword string) error {
	if user == nil {
		return fmt.Errorf("user required")
	}
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" {
		return fmt.Errorf("email required")
	}
	if rawPassword == "" {
		return fmt.Errorf("password required")
	}

	hash, err := hashArgon(rawPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = RoleOperator
	}

	query := `INSERT INTO users (email, name, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := s.queryRowContext(ctx, query, user.Email, user.Name, hash, string(user.Role), user.CreatedAt).Scan(&user.ID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, password_hash, role, created_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = NormalizeRole(role)
	return &u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *BaseStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.queryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
}

// GetUserByID retrieves a user by ID
func (s *BaseStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.queryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// UpdateUserPassword replaces a user's password hash
func (s *BaseStore) UpdateUserPassword(ctx context.Context, userID int64, rawPassword string) error {
	if rawPassword == "" {
		return fmt.Errorf("password required")
	}
	hash, err := hashArgon(rawPassword)
	if err != nil {
		return err
	}
	res, err := s.execContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AuthenticateUser verifies email/password and returns the user if valid
func (s *BaseStore) AuthenticateUser(ctx context.Context, email, rawPassword string) (*User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	ok, verr := verifyArgonHash(rawPassword, u.PasswordHash)
	if verr != nil {
		return nil, verr
	}
	if !ok {
		return nil, fmt.Errorf("invalid credentials")
	}
	u.PasswordHash = ""
	return u, nil
}

// EnsureUser creates the user or, when the email already exists, resets its
// password, applies the requested role and fills in a missing name.
func (s *BaseStore) EnsureUser(ctx context.Context, user *User, rawPassword string) error {
	existing, err := s.GetUserByEmail(ctx, user.Email)
	if errors.Is(err, ErrNotFound) {
		return s.CreateUser(ctx, user, rawPassword)
	}
	if err != nil {
		return err
	}

	if err := s.UpdateUserPassword(ctx, existing.ID, rawPassword); err != nil {
		return err
	}
	name := existing.Name
	if name == "" {
		name = user.Name
	}
	role := existing.Role
	if user.Role != "" {
		role = user.Role
	}
	if name != existing.Name || role != existing.Role {
		if _, err := s.execContext(ctx, `UPDATE users SET name = ?, role = ? WHERE id = ?`, name, string(role), existing.ID); err != nil {
			return err
		}
		existing.Name = name
		existing.Role = role
	}
	existing.PasswordHash = ""
	*user = *existing
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ============================================================================
// Session Management
// ============================================================================

// CreateSession creates a new session and returns it with the raw token.
// Only the SHA-256 hash of the token is stored.
func (s *BaseStore) CreateSession(ctx context.Context, userID int64, ttlMinutes int) (*Session, error) {
	rawToken, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	tokenHash := hashSHA256(rawToken)

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(time.Duration(ttlMinutes) * time.Minute)

	query := `INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.execContext(ctx, query, tokenHash, userID, expiresAt, createdAt); err != nil {
		return nil, err
	}

	return &Session{
		Token:     rawToken,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// GetSessionByToken retrieves an unexpired session by raw token
func (s *BaseStore) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	query := `
		SELECT s.token, s.user_id, s.expires_at, s.created_at, u.email
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`

	var sess Session
	err := s.queryRowContext(ctx, query, hashSHA256(token), time.Now().UTC()).Scan(
		&sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt, &sess.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session by raw token
func (s *BaseStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.execContext(ctx, `DELETE FROM sessions WHERE token = ?`, hashSHA256(token))
	return err
}

// DeleteExpiredSessions purges sessions that expired before now
func (s *BaseStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ============================================================================
// Audit Log
// ============================================================================

// SaveAuditEntry saves an audit log entry
func (s *BaseStore) SaveAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("entry required")
	}
	if entry.Action == "" {
		return fmt.Errorf("audit action required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = AuditSeverityInfo
	}

	metadata, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			timestamp, actor_id, actor_name, action, target_type, target_id,
			severity, details, metadata, ip_address, user_agent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id
	`
	return s.queryRowContext(ctx, query,
		entry.Timestamp, entry.ActorID, entry.ActorName, entry.Action, entry.TargetType,
		entry.TargetID, entry.Severity, entry.Details, metadata, entry.IPAddress,
		entry.UserAgent).Scan(&entry.ID)
}

// GetAuditLog retrieves audit entries newest first. An empty actorID
// matches every actor.
func (s *BaseStore) GetAuditLog(ctx context.Context, actorID string, since time.Time) ([]*AuditEntry, error) {
	query := `
		SELECT id, timestamp, actor_id, actor_name, action, target_type, target_id,
		       severity, details, metadata, ip_address, user_agent
		FROM audit_log
		WHERE timestamp >= ?`
	args := []interface{}{since.UTC()}
	if actorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, actorID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.ActorName, &e.Action,
			&e.TargetType, &e.TargetID, &e.Severity, &e.Details, &metadata,
			&e.IPAddress, &e.UserAgent); err != nil {
			return nil, err
		}
		e.Metadata = decodeMetadata(metadata)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func encodeMetadata(meta map[string]any) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMetadata(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(raw.String), &result); err != nil {
		return nil
	}
	return result
}
