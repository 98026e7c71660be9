package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/config"
)

func TestYooKassaCreatePayment(t *testing.T) {
	purchaseID := uuid.New()
	var got createPaymentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/payments" {
			t.Errorf("request = %s %s, want POST /v3/payments", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "shop" || pass != "secret" {
			t.Errorf("basic auth = %q:%q, want shop:secret", user, pass)
		}
		if key := r.Header.Get("Idempotence-Key"); key != purchaseID.String() {
			t.Errorf("Idempotence-Key = %q, want %q", key, purchaseID)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example/1"}}`))
	}))
	defer srv.Close()

	y := NewYooKassa(config.PaymentsConfig{
		BaseURL:   srv.URL + "/v3/",
		ShopID:    "shop",
		SecretKey: "secret",
		ReturnURL: "https://shop.example/done",
		Timeout:   time.Second,
	})
	p, err := y.CreatePayment(context.Background(), CreateRequest{
		PurchaseID:  purchaseID,
		Amount:      decimal.RequireFromString("150"),
		Description: "photo",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if p.ID != "pay-1" || p.ConfirmationURL != "https://pay.example/1" || p.Status != "pending" {
		t.Errorf("payment = %+v", p)
	}
	if got.Amount.Value != "150.00" || got.Amount.Currency != "RUB" || !got.Capture {
		t.Errorf("request amount = %+v, capture = %v", got.Amount, got.Capture)
	}
	if got.Confirmation.ReturnURL != "https://shop.example/done" || got.Metadata["purchase_id"] != purchaseID.String() {
		t.Errorf("request confirmation = %+v, metadata = %v", got.Confirmation, got.Metadata)
	}
}

func TestYooKassaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","code":"invalid_credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	y := NewYooKassa(config.PaymentsConfig{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := y.CreatePayment(context.Background(), CreateRequest{PurchaseID: uuid.New(), Amount: decimal.NewFromInt(1)}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestYooKassaGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v3/payments/pay-7" {
			t.Errorf("request = %s %s, want GET /v3/payments/pay-7", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "shop" || pass != "secret" {
			t.Errorf("basic auth = %q:%q, want shop:secret", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay-7","status":"succeeded"}`))
	}))
	defer srv.Close()

	y := NewYooKassa(config.PaymentsConfig{BaseURL: srv.URL + "/v3", ShopID: "shop", SecretKey: "secret", Timeout: time.Second})
	p, err := y.GetPayment(context.Background(), "pay-7")
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if p.ID != "pay-7" || p.Status != StatusSucceeded {
		t.Errorf("payment = %+v, want pay-7 succeeded", p)
	}

	for _, id := range []string{"", "../refunds", "pay?x=1"} {
		if _, err := y.GetPayment(context.Background(), id); err == nil {
			t.Errorf("GetPayment(%q) should be rejected", id)
		}
	}
}
