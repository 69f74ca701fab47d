package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

func TestCreateIntentSendsAmountAndIdempotencyKey(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		form    map[string]string
		idemKey string
		reqPath string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		reqPath = r.URL.Path
		idemKey = r.Header.Get("Idempotency-Key")
		form = map[string]string{
			"amount":               r.PostForm.Get("amount"),
			"currency":             r.PostForm.Get("currency"),
			"metadata[invoice_id]": r.PostForm.Get("metadata[invoice_id]"),
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","payment_method_types":["card"]}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{SecretKey: "sk_test_123", APIURL: srv.URL})
	created, err := g.CreateIntent(context.Background(), ports.CreateIntentRequest{
		AmountMinor:    2550,
		Currency:       "usd",
		Metadata:       map[string]string{"invoice_id": "inv-1"},
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if created.GatewayIntentID != "pi_123" || created.ClientSecret != "pi_123_secret_abc" {
		t.Fatalf("unexpected intent: %+v", created)
	}
	if len(created.PaymentMethodTypes) != 1 || created.PaymentMethodTypes[0] != "card" {
		t.Fatalf("unexpected method types: %v", created.PaymentMethodTypes)
	}

	mu.Lock()
	defer mu.Unlock()
	if reqPath != "/v1/payment_intents" {
		t.Fatalf("unexpected path %q", reqPath)
	}
	if form["amount"] != "2550" || form["currency"] != "usd" || form["metadata[invoice_id]"] != "inv-1" {
		t.Fatalf("unexpected form: %v", form)
	}
	if idemKey != "idem-1" {
		t.Fatalf("unexpected idempotency key %q", idemKey)
	}
}

func TestCreateIntentWrapsGatewayErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 50 cents"}}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{SecretKey: "sk_test_123", APIURL: srv.URL})
	_, err := g.CreateIntent(context.Background(), ports.CreateIntentRequest{AmountMinor: 1, Currency: "usd"})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGatewayWithoutKeyIsNotReady(t *testing.T) {
	t.Parallel()

	g := NewGateway(GatewayConfig{})
	if err := g.Ready(); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := g.RetrievePaymentMethod(context.Background(), "pm_1"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRetrievePaymentMethodReturnsType(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_methods/pm_1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pm_1","object":"payment_method","type":"us_bank_account"}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{SecretKey: "sk_test_123", APIURL: srv.URL})
	label, err := g.RetrievePaymentMethod(context.Background(), "pm_1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if label != "us_bank_account" {
		t.Fatalf("unexpected label %q", label)
	}
}
