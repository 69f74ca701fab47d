package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

type InvoiceQuery struct {
	ClientID  string
	Status    domain.InvoiceStatus
	DueBefore *time.Time
	Limit     int
	Offset    int
}

type PageQuery struct {
	Limit  int
	Offset int
}

// InvoiceUpdate is one locked read-modify-write of an invoice row.
// Mutate sees the current invoice with its items loaded. When ReplaceItems is
// set the stored item set is deleted and replaced by the mutated Items in the
// same transaction as the invoice row update.
type InvoiceUpdate struct {
	ReplaceItems bool
	Mutate       func(*domain.Invoice) error
}

type InvoiceRepository interface {
	// Create persists the invoice and all of its items as one unit.
	Create(ctx context.Context, invoice domain.Invoice) error
	GetByID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	List(ctx context.Context, query InvoiceQuery) ([]domain.Invoice, int, error)
	Update(ctx context.Context, invoiceID string, update InvoiceUpdate) (domain.Invoice, error)
	// Delete removes items first, then the invoice. ErrNotFound if the invoice is absent.
	Delete(ctx context.Context, invoiceID string) error
	NextInvoiceSequence(ctx context.Context, day time.Time) (int, error)
}

type PaymentIntentRepository interface {
	// Create returns domain.ErrConflict when the gateway intent id is already stored.
	Create(ctx context.Context, intent domain.PaymentIntent) error
	GetByID(ctx context.Context, paymentIntentID string) (domain.PaymentIntent, error)
	GetByGatewayID(ctx context.Context, gatewayIntentID string) (domain.PaymentIntent, error)
	List(ctx context.Context, query PageQuery) ([]domain.PaymentIntent, int, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]domain.PaymentIntent, error)
	// UpdateByGatewayID locks the row matched by gateway id and applies mutate.
	UpdateByGatewayID(ctx context.Context, gatewayIntentID string, mutate func(*domain.PaymentIntent) error) (domain.PaymentIntent, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client domain.Client) error
	GetByID(ctx context.Context, clientID string) (domain.Client, error)
	List(ctx context.Context, query PageQuery) ([]domain.Client, int, error)
	Update(ctx context.Context, client domain.Client) error
	Delete(ctx context.Context, clientID string) error
}

type ServiceRepository interface {
	Create(ctx context.Context, service domain.Service) error
	GetByID(ctx context.Context, serviceID string) (domain.Service, error)
	List(ctx context.Context, query PageQuery) ([]domain.Service, int, error)
	Update(ctx context.Context, service domain.Service) error
	Delete(ctx context.Context, serviceID string) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}
