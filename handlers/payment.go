package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jiconnect/server/provisioning"
)

const (
	paySuccessMessage = "Paiement simulé réussi et utilisateur ajouté"
	payFailureMessage = "Erreur lors du traitement"
	payInvalidMessage = "Requête invalide"

	maxPayBodyBytes = 64 << 10
)

// Provisioner runs the voucher workflow
type Provisioner interface {
	Provision(ctx context.Context, req provisioning.Request) (*provisioning.Result, error)
}

// PaymentAPIOptions configures the payment API.
type PaymentAPIOptions struct {
	APIOptions
	// RequestTimeout bounds the whole provisioning run, device calls included
	RequestTimeout time.Duration
}

// PaymentAPI serves the sandbox checkout endpoint
type PaymentAPI struct {
	provisioner Provisioner
	timeout     time.Duration
	opts        APIOptions
}

// NewPaymentAPI builds a payment API around a provisioner.
func NewPaymentAPI(p Provisioner, opts PaymentAPIOptions) (*PaymentAPI, error) {
	if p == nil {
		return nil, errors.New("payment API requires a provisioner")
	}
	return &PaymentAPI{provisioner: p, timeout: opts.RequestTimeout, opts: opts.APIOptions}, nil
}

// RegisterRoutes registers POST /api/pay. The checkout is public.
func (api *PaymentAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/pay", api.handlePay)
}

type payResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	ReceiptURL string `json:"receiptUrl,omitempty"`
	Error      string `json:"error,omitempty"`
}

// payRequest accepts the amount as a JSON number or a numeric string,
// as posted by the captive portal form.
type payRequest struct {
	FullName    string     `json:"fullName"`
	PhoneNumber string     `json:"phoneNumber"`
	PlanName    string     `json:"planName"`
	Amount      flexAmount `json:"amount"`
	Duration    string     `json:"duration"`
}

type flexAmount float64

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = 0
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount: %q is not a number", s)
	}
	*a = flexAmount(v)
	return nil
}

func (api *PaymentAPI) handlePay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	log := api.opts.logger()

	var body payRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxPayBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, payResponse{Success: false, Message: payInvalidMessage, Error: "invalid JSON body"})
		return
	}

	ctx := r.Context()
	if api.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, api.timeout)
		defer cancel()
	}

	res, err := api.provisioner.Provision(ctx, provisioning.Request{
		FullName:    body.FullName,
		PhoneNumber: body.PhoneNumber,
		PlanName:    body.PlanName,
		Amount:      float64(body.Amount),
		Duration:    body.Duration,
	})
	if err != nil {
		if errors.Is(err, provisioning.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, payResponse{Success: false, Message: payInvalidMessage, Error: err.Error()})
			return
		}
		log.Error("Payment processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, payResponse{Success: false, Message: payFailureMessage, Error: publicPayError(err)})
		return
	}

	writeJSON(w, http.StatusOK, payResponse{
		Success:    true,
		Message:    paySuccessMessage,
		Username:   res.Credential.Username,
		Password:   res.Credential.Password,
		ReceiptURL: res.ReceiptURL,
	})
}

// publicPayError keeps internal detail such as paths and driver messages out
// of the response body.
func publicPayError(err error) string {
	switch {
	case errors.Is(err, provisioning.ErrReceiptGeneration):
		return "receipt could not be generated"
	case errors.Is(err, provisioning.ErrPersistence):
		return "sale could not be recorded"
	default:
		return "internal error"
	}
}
