package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/memory"
	stripeadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/stripe"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

const webhookSecret = "whsec_application_test"

type fakeGateway struct {
	mu          sync.Mutex
	readyErr    error
	createErr   error
	lookupErr   error
	lookupDelay time.Duration
	label       string
	requests    []ports.CreateIntentRequest
	lookups     int
}

func (g *fakeGateway) Ready() error { return g.readyErr }

func (g *fakeGateway) CreateIntent(_ context.Context, req ports.CreateIntentRequest) (ports.CreatedIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return ports.CreatedIntent{}, g.createErr
	}
	return ports.CreatedIntent{
		GatewayIntentID:    fmt.Sprintf("pi_%d", len(g.requests)),
		ClientSecret:       fmt.Sprintf("pi_%d_secret", len(g.requests)),
		PaymentMethodTypes: []string{"card"},
	}, nil
}

func (g *fakeGateway) RetrievePaymentMethod(ctx context.Context, _ string) (string, error) {
	g.mu.Lock()
	g.lookups++
	delay, err, label := g.lookupDelay, g.lookupErr, g.label
	g.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}
	return label, nil
}

type fixture struct {
	svc     *application.Service
	repos   *memory.Repositories
	gateway *fakeGateway

	mu    sync.Mutex
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, application.Config{}, nil)
}

func newFixtureWith(t *testing.T, cfg application.Config, gateway ports.PaymentGateway) *fixture {
	t.Helper()
	return newFixtureWithDeps(t, cfg, gateway, nil)
}

// newFixtureWithDeps lets a test wrap the wired dependencies before the service is built.
func newFixtureWithDeps(t *testing.T, cfg application.Config, gateway ports.PaymentGateway, override func(*application.Dependencies)) *fixture {
	t.Helper()
	f := &fixture{
		repos:   memory.NewRepositories(),
		gateway: &fakeGateway{label: "card"},
		clock:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if gateway == nil {
		gateway = f.gateway
	}
	deps := application.Dependencies{
		Config:         cfg,
		Invoices:       f.repos.Invoices,
		PaymentIntents: f.repos.PaymentIntents,
		Clients:        f.repos.Clients,
		Catalog:        f.repos.Services,
		Outbox:         f.repos.Outbox,
		EventDedup:     f.repos.EventDedup,
		Gateway:        gateway,
		Webhooks:       stripeadapter.NewWebhookVerifier(webhookSecret, 5*time.Minute),
		Now:            f.now,
	}
	if override != nil {
		override(&deps)
	}
	f.svc = application.NewService(deps)
	return f
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

func (f *fixture) outboxCount(eventType string) int {
	n := 0
	for _, rec := range f.repos.Outbox.Records() {
		if rec.EventType == eventType {
			n++
		}
	}
	return n
}

type catalog struct {
	clientID string
	design   string
	hosting  string
}

func seedCatalog(t *testing.T, f *fixture) catalog {
	t.Helper()
	ctx := context.Background()
	name, email := "Acme Corp", "ap@acme.test"
	client, err := f.svc.CreateClient(ctx, application.ClientInput{Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	newService := func(name, price string) string {
		p := decimal.RequireFromString(price)
		svc, err := f.svc.CreateCatalogService(ctx, application.ServiceInput{Name: &name, Price: &p})
		if err != nil {
			t.Fatalf("create service %s: %v", name, err)
		}
		return svc.ServiceID
	}
	return catalog{
		clientID: client.ClientID,
		design:   newService("Design", "50.00"),
		hosting:  newService("Hosting", "30.00"),
	}
}

// scenarioInvoice creates the invoice [{qty:2, price:50}, {qty:1, price:30}].
func scenarioInvoice(t *testing.T, f *fixture, c catalog, status string) domain.Invoice {
	t.Helper()
	now := f.now()
	invoice, err := f.svc.CreateInvoice(context.Background(), application.CreateInvoiceInput{
		ClientID: c.clientID,
		Date:     now,
		DueDate:  now.Add(14 * 24 * time.Hour),
		Status:   status,
		Items: []application.ItemInput{
			{ServiceID: c.design, Quantity: 2},
			{ServiceID: c.hosting, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return invoice
}

func createIntent(t *testing.T, f *fixture, invoiceID, amount string) domain.PaymentIntent {
	t.Helper()
	intent, err := f.svc.CreatePaymentIntent(context.Background(), application.CreatePaymentIntentInput{
		InvoiceID: invoiceID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("create payment intent: %v", err)
	}
	return intent
}

func intentEvent(eventID, eventType, gatewayIntentID, invoiceID string, extra string) []byte {
	metadata := "{}"
	if invoiceID != "" {
		metadata = fmt.Sprintf(`{"invoice_id":%q}`, invoiceID)
	}
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":1772359200,"data":{"object":{"id":%q,"object":"payment_intent","metadata":%s%s}}}`,
		eventID, eventType, gatewayIntentID, metadata, extra))
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func deliver(t *testing.T, f *fixture, payload []byte) application.ReconcileOutcome {
	t.Helper()
	outcome, err := f.svc.HandleGatewayEvent(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("handle gateway event: %v", err)
	}
	return outcome
}

func mustInvoice(t *testing.T, f *fixture, invoiceID string) domain.Invoice {
	t.Helper()
	invoice, err := f.svc.GetInvoice(context.Background(), invoiceID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	return invoice
}

func mustIntent(t *testing.T, f *fixture, paymentIntentID string) domain.PaymentIntent {
	t.Helper()
	intent, err := f.svc.GetPaymentIntent(context.Background(), paymentIntentID)
	if err != nil {
		t.Fatalf("get payment intent: %v", err)
	}
	return intent
}
