package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type Config struct {
	ServiceName                string
	DefaultCurrency            string
	WebhookTimeout             time.Duration
	PaymentMethodLookupTimeout time.Duration
	EventDedupTTL              time.Duration
}

type ItemInput struct {
	ServiceID   string
	Description string
	Quantity    int
	// Price overrides the catalog price of the referenced service when set.
	Price *decimal.Decimal
}

type CreateInvoiceInput struct {
	ClientID       string
	Number         string
	Date           time.Time
	DueDate        time.Time
	Status         string
	ContactEmail   string
	BillingAddress string
	Notes          string
	Items          []ItemInput
}

type UpdateInvoiceInput struct {
	ClientID       *string
	Number         *string
	Date           *time.Time
	DueDate        *time.Time
	Status         *string
	ContactEmail   *string
	BillingAddress *string
	Notes          *string
	Items          *[]ItemInput
}

type CreatePaymentIntentInput struct {
	InvoiceID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

type ClientInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

type ServiceInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
}

// ReconcileOutcome describes how an authenticated webhook delivery was handled.
// Every outcome is acknowledged to the sender.
type ReconcileOutcome string

const (
	ReconcileOutcomeApplied   ReconcileOutcome = "applied"
	ReconcileOutcomeDuplicate ReconcileOutcome = "duplicate"
	ReconcileOutcomeMiss      ReconcileOutcome = "miss"
	ReconcileOutcomeIgnored   ReconcileOutcome = "ignored"
)

type Service struct {
	cfg            Config
	invoices       ports.InvoiceRepository
	paymentIntents ports.PaymentIntentRepository
	clients        ports.ClientRepository
	catalog        ports.ServiceRepository
	outbox         ports.OutboxRepository
	eventDedup     ports.EventDedupRepository
	gateway        ports.PaymentGateway
	webhooks       ports.WebhookVerifier
	nowFn          func() time.Time
}

type Dependencies struct {
	Config         Config
	Invoices       ports.InvoiceRepository
	PaymentIntents ports.PaymentIntentRepository
	Clients        ports.ClientRepository
	Catalog        ports.ServiceRepository
	Outbox         ports.OutboxRepository
	EventDedup     ports.EventDedupRepository
	Gateway        ports.PaymentGateway
	Webhooks       ports.WebhookVerifier
	// Now overrides the clock; tests use it to pin timestamps.
	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M46-Invoice-Reconciliation-Service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = 10 * time.Second
	}
	if cfg.PaymentMethodLookupTimeout <= 0 {
		cfg.PaymentMethodLookupTimeout = 2 * time.Second
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:            cfg,
		invoices:       deps.Invoices,
		paymentIntents: deps.PaymentIntents,
		clients:        deps.Clients,
		catalog:        deps.Catalog,
		outbox:         deps.Outbox,
		eventDedup:     deps.EventDedup,
		gateway:        deps.Gateway,
		webhooks:       deps.Webhooks,
		nowFn:          nowFn,
	}
}

type MarkOverdueResult struct {
	Scanned int
	Marked  int
	Skipped int
}

type ListInvoicesOutput struct {
	Invoices   []domain.Invoice
	Pagination contracts.Pagination
}

type ListPaymentIntentsOutput struct {
	PaymentIntents []domain.PaymentIntent
	Pagination     contracts.Pagination
}

type ListClientsOutput struct {
	Clients    []domain.Client
	Pagination contracts.Pagination
}

type ListServicesOutput struct {
	Services   []domain.Service
	Pagination contracts.Pagination
}
