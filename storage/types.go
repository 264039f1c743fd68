package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("storage: not found")

// Payment method recorded for simulated payments
const PaymentMethodSandbox = "sandbox"

// Sale is one provisioned voucher. Rows are written once and never updated.
type Sale struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	PhoneNumber     string    `json:"phoneNumber"`
	PlanName        string    `json:"planName"`
	Amount          float64   `json:"amount"`
	Duration        string    `json:"duration"`
	Username        string    `json:"username"`
	Password        string    `json:"password"`
	ReceiptID       string    `json:"receiptId"`
	PDFPath         string    `json:"pdfPath"`
	Enrollment      string    `json:"enrollment"`
	EnrollmentError string    `json:"enrollmentError,omitempty"`
	Method          string    `json:"method"`
	TransactionID   string    `json:"transactionId"`
	CreatedAt       time.Time `json:"createdAt"`
	// Date mirrors CreatedAt for dashboards that group sales by day
	Date time.Time `json:"date"`
}

// Role is an administrative role
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// NormalizeRole maps stored values to a known role, defaulting to operator
func NormalizeRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleOperator
	}
}

// User is a dashboard account
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a login session. Token holds the raw token only when the
// session was just created; stored sessions carry the SHA-256 hash.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit severities
const (
	AuditSeverityInfo    = "info"
	AuditSeverityWarning = "warning"
)

// AuditEntry records an operator action
type AuditEntry struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	ActorID    string         `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Severity   string         `json:"severity"`
	Details    string         `json:"details"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
}
