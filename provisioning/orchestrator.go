// Package provisioning turns a payment into hotspot credentials, a receipt
// and a sale record.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"jiconnect/server/mikrotik"
	"jiconnect/server/receipt"
	"jiconnect/server/storage"
)

var (
	// ErrInvalidRequest means the caller sent missing or invalid fields.
	// Nothing has been attempted when it is returned.
	ErrInvalidRequest = errors.New("provisioning: invalid request")

	// ErrReceiptGeneration means no receipt could be produced; no sale was
	// recorded.
	ErrReceiptGeneration = errors.New("provisioning: receipt generation failed")

	// ErrPersistence means the sale record could not be written.
	ErrPersistence = errors.New("provisioning: sale could not be saved")
)

// Request is one paid voucher order
type Request struct {
	FullName    string  `json:"fullName"`
	PhoneNumber string  `json:"phoneNumber"`
	PlanName    string  `json:"planName"`
	Amount      float64 `json:"amount"`
	Duration    string  `json:"duration"`
}

// Validate checks the fields a receipt and sale cannot do without
func (r Request) Validate() error {
	var problems []string
	if strings.TrimSpace(r.FullName) == "" {
		problems = append(problems, "fullName is required")
	}
	if strings.TrimSpace(r.PlanName) == "" {
		problems = append(problems, "planName is required")
	}
	if r.Amount < 0 || math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		problems = append(problems, "amount must be a non-negative number")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Result is what the customer gets back
type Result struct {
	Credential Credential
	ReceiptURL string
	Enrollment mikrotik.Outcome
	Sale       *storage.Sale
}

// ReceiptGenerator produces the receipt artifact
type ReceiptGenerator interface {
	Generate(d receipt.Data) (*receipt.Receipt, error)
}

// SaleWriter persists sale records
type SaleWriter interface {
	CreateSale(ctx context.Context, sale *storage.Sale) error
}

// Logger provides logging capabilities.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Options carries the optional collaborators of an Orchestrator
type Options struct {
	Issuer CredentialIssuer
	Now    func() time.Time
	NewID  func() string
	Logger Logger
}

// Orchestrator runs the provisioning workflow
type Orchestrator struct {
	device   mikrotik.Device
	receipts ReceiptGenerator
	sales    SaleWriter
	issuer   CredentialIssuer
	now      func() time.Time
	newID    func() string
	log      Logger
}

// NewOrchestrator wires the workflow to its device, receipt and ledger
// backends.
func NewOrchestrator(device mikrotik.Device, receipts ReceiptGenerator, sales SaleWriter, opts Options) *Orchestrator {
	o := &Orchestrator{
		device:   device,
		receipts: receipts,
		sales:    sales,
		issuer:   opts.Issuer,
		now:      opts.Now,
		newID:    opts.NewID,
		log:      opts.Logger,
	}
	if o.issuer == nil {
		o.issuer = RandomIssuer{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}
	if o.log == nil {
		o.log = nopLogger{}
	}
	return o
}

// Provision issues credentials, enrolls them on the appliance, renders the
// receipt and records the sale, in that order. Enrollment trouble is
// recorded on the sale and never aborts; receipt and ledger failures do.
func (o *Orchestrator) Provision(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.PlanName = strings.TrimSpace(req.PlanName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	cred := o.issuer.Issue()

	validity, known := PlanDuration(req.Duration)
	if !known {
		o.log.Warn("Unknown plan duration, no access time granted", "duration", req.Duration, "plan", req.PlanName)
	}

	enrollment := o.device.AddHotspotUser(ctx, mikrotik.HotspotUser{
		Name:        cred.Username,
		Password:    cred.Password,
		LimitUptime: validity,
	})
	if !enrollment.Success {
		o.log.Warn("Device enrollment failed, continuing without it",
			"stage", "device", "username", cred.Username, "mode", o.device.Mode(), "error", enrollment.Error)
	}

	issuedAt := o.now()
	rcpt, err := o.receipts.Generate(receipt.Data{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		PlanName:    req.PlanName,
		Amount:      req.Amount,
		Username:    cred.Username,
		Password:    cred.Password,
		Validity:    validity,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		o.log.Error("Receipt generation failed", "stage", "receipt", "username", cred.Username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReceiptGeneration, err)
	}

	sale := &storage.Sale{
		ID:              o.newID(),
		FullName:        req.FullName,
		PhoneNumber:     req.PhoneNumber,
		PlanName:        req.PlanName,
		Amount:          req.Amount,
		Duration:        req.Duration,
		Username:        cred.Username,
		Password:        cred.Password,
		ReceiptID:       rcpt.ID,
		PDFPath:         rcpt.URL,
		Enrollment:      enrollment.State(),
		EnrollmentError: enrollment.Error,
		Method:          storage.PaymentMethodSandbox,
		TransactionID:   "TEST-" + strconv.FormatInt(issuedAt.UnixMilli(), 10),
		CreatedAt:       issuedAt.UTC(),
	}
	if err := o.sales.CreateSale(ctx, sale); err != nil {
		o.log.Error("Sale not recorded; credentials and receipt were issued without a ledger entry",
			"stage", "persistence", "username", cred.Username, "receipt", rcpt.ID, "enrollment", enrollment.State(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	o.log.Info("Voucher provisioned", "sale", sale.ID, "username", cred.Username,
		"plan", req.PlanName, "amount", receipt.FormatAmount(req.Amount), "enrollment", sale.Enrollment)

	return &Result{
		Credential: cred,
		ReceiptURL: rcpt.URL,
		Enrollment: enrollment,
		Sale:       sale,
	}, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
