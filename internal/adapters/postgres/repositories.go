package postgres

import (
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Invoices       ports.InvoiceRepository
	PaymentIntents ports.PaymentIntentRepository
	Clients        ports.ClientRepository
	Services       ports.ServiceRepository
	Outbox         ports.OutboxRepository
	EventDedup     ports.EventDedupRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Invoices:       &invoiceRepository{db: db},
		PaymentIntents: &paymentIntentRepository{db: db},
		Clients:        &clientRepository{db: db},
		Services:       &serviceRepository{db: db},
		Outbox:         &outboxRepository{db: db},
		EventDedup:     &eventDedupRepository{db: db},
	}
}
