package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jiconnect/server/mikrotik"
	"jiconnect/server/storage"
)

func seedSales(t *testing.T, store storage.Store, n int) {
	t.Helper()
	base := time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sale := &storage.Sale{
			ID:            fmt.Sprintf("sale-%d", i),
			FullName:      "Asha Mnyonge",
			PlanName:      "1 DAY",
			Amount:        1000,
			Duration:      "1d",
			Username:      fmt.Sprintf("u000%d", i),
			Password:      "abcdef",
			Enrollment:    mikrotik.StateDisabled,
			Method:        storage.PaymentMethodSandbox,
			TransactionID: fmt.Sprintf("TEST-%d", i),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateSale(context.Background(), sale); err != nil {
			t.Fatalf("CreateSale: %v", err)
		}
	}
}

func newSalesMux(t *testing.T) (*http.ServeMux, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	api, err := NewSalesAPI(store, APIOptions{})
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux, store
}

func TestSalesList_NewestFirst(t *testing.T) {
	t.Parallel()

	mux, store := newSalesMux(t)
	seedSales(t, store, 3)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sales []storage.Sale
	if err := json.NewDecoder(w.Body).Decode(&sales); err != nil {
		t.Fatal(err)
	}
	if len(sales) != 3 {
		t.Fatalf("len = %d", len(sales))
	}
	if sales[0].ID != "sale-2" || sales[2].ID != "sale-0" {
		t.Errorf("order = %s, %s, %s", sales[0].ID, sales[1].ID, sales[2].ID)
	}
}

func TestSalesList_LimitAndEmpty(t *testing.T) {
	t.Parallel()

	mux, store := newSalesMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes", nil))
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("empty ledger body = %q", got)
	}

	seedSales(t, store, 3)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes?limit=1", nil))
	var sales []storage.Sale
	_ = json.NewDecoder(w.Body).Decode(&sales)
	if len(sales) != 1 || sales[0].ID != "sale-2" {
		t.Errorf("limited = %+v", sales)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestSalesGet(t *testing.T) {
	t.Parallel()

	mux, store := newSalesMux(t)
	seedSales(t, store, 1)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes/sale-0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sale storage.Sale
	_ = json.NewDecoder(w.Body).Decode(&sale)
	if sale.Username != "u0000" || sale.Enrollment != mikrotik.StateDisabled {
		t.Errorf("sale = %+v", sale)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ventes/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}
