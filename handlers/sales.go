package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"jiconnect/server/storage"
)

// SalesStore is the read side of the sales ledger
type SalesStore interface {
	GetSale(ctx context.Context, id string) (*storage.Sale, error)
	ListSales(ctx context.Context, limit int) ([]*storage.Sale, error)
}

// SalesAPI exposes the ledger to the dashboard
type SalesAPI struct {
	store SalesStore
	opts  APIOptions
}

// NewSalesAPI builds the sales API.
func NewSalesAPI(store SalesStore, opts APIOptions) (*SalesAPI, error) {
	if store == nil {
		return nil, errors.New("sales API requires a store")
	}
	return &SalesAPI{store: store, opts: opts}, nil
}

// RegisterRoutes registers GET /api/ventes and GET /api/ventes/{id}.
func (api *SalesAPI) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		mux = http.DefaultServeMux
	}
	mux.HandleFunc("/api/ventes", api.handleList)
	mux.HandleFunc("/api/ventes/", api.handleGet)
}

func (api *SalesAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid limit"})
			return
		}
		limit = n
	}

	sales, err := api.store.ListSales(r.Context(), limit)
	if err != nil {
		api.opts.logger().Error("Listing sales failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Erreur serveur"})
		return
	}
	if sales == nil {
		sales = []*storage.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (api *SalesAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/ventes/"), "/")
	if id == "" {
		api.handleList(w, r)
		return
	}

	sale, err := api.store.GetSale(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "sale not found"})
		return
	}
	if err != nil {
		api.opts.logger().Error("Loading sale failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Erreur serveur"})
		return
	}
	writeJSON(w, http.StatusOK, sale)
}
