// Package memory is the in-process Ledger Store used by tests and by local runs
// without a database. All repositories share one lock so cross-entity checks see
// a consistent snapshot.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

type store struct {
	mu             sync.RWMutex
	invoices       map[string]domain.Invoice
	dailySequence  map[string]int
	paymentIntents map[string]domain.PaymentIntent
	gatewayIndex   map[string]string
	clients        map[string]domain.Client
	services       map[string]domain.Service
}

type Repositories struct {
	Invoices       *InvoiceRepository
	PaymentIntents *PaymentIntentRepository
	Clients        *ClientRepository
	Services       *ServiceRepository
	Outbox         *OutboxRepository
	EventDedup     *EventDedupRepository
}

func NewRepositories() *Repositories {
	s := &store{
		invoices:       make(map[string]domain.Invoice),
		dailySequence:  make(map[string]int),
		paymentIntents: make(map[string]domain.PaymentIntent),
		gatewayIndex:   make(map[string]string),
		clients:        make(map[string]domain.Client),
		services:       make(map[string]domain.Service),
	}
	return &Repositories{
		Invoices:       &InvoiceRepository{s: s},
		PaymentIntents: &PaymentIntentRepository{s: s},
		Clients:        &ClientRepository{s: s},
		Services:       &ServiceRepository{s: s},
		Outbox:         NewOutboxRepository(),
		EventDedup:     NewEventDedupRepository(),
	}
}

func cloneInvoice(in domain.Invoice) domain.Invoice {
	out := in
	out.Items = slices.Clone(in.Items)
	out.PaidAt = cloneTime(in.PaidAt)
	return out
}

func cloneIntent(in domain.PaymentIntent) domain.PaymentIntent {
	out := in
	out.PaymentMethodTypes = slices.Clone(in.PaymentMethodTypes)
	out.PaidAt = cloneTime(in.PaidAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
