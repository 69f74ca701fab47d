package memory

import (
	"context"
	"slices"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type InvoiceRepository struct {
	s *store
}

func (r *InvoiceRepository) NextInvoiceSequence(_ context.Context, day time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := day.UTC().Format("2006-01-02")
	r.s.dailySequence[key]++
	return r.s.dailySequence[key], nil
}

func (r *InvoiceRepository) Create(_ context.Context, invoice domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.invoices[invoice.InvoiceID]; exists {
		return domain.ErrConflict
	}
	r.s.invoices[invoice.InvoiceID] = cloneInvoice(invoice)
	return nil
}

func (r *InvoiceRepository) GetByID(_ context.Context, invoiceID string) (domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	invoice, ok := r.s.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return cloneInvoice(invoice), nil
}

func (r *InvoiceRepository) List(_ context.Context, query ports.InvoiceQuery) ([]domain.Invoice, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	filtered := make([]domain.Invoice, 0)
	for _, invoice := range r.s.invoices {
		if query.ClientID != "" && invoice.ClientID != query.ClientID {
			continue
		}
		if query.Status != "" && invoice.Status != query.Status {
			continue
		}
		if query.DueBefore != nil && !invoice.DueDate.Before(*query.DueBefore) {
			continue
		}
		filtered = append(filtered, cloneInvoice(invoice))
	}
	slices.SortFunc(filtered, func(a, b domain.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(filtered, query.Limit, query.Offset), len(filtered), nil
}

// Update applies the mutation to a copy and stores it only on success, which
// gives the same all-or-nothing outcome as the postgres transaction.
func (r *InvoiceRepository) Update(_ context.Context, invoiceID string, update ports.InvoiceUpdate) (domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, domain.ErrNotFound
	}
	next := cloneInvoice(current)
	if update.Mutate != nil {
		if err := update.Mutate(&next); err != nil {
			return domain.Invoice{}, err
		}
	}
	if !update.ReplaceItems {
		next.Items = slices.Clone(current.Items)
	}
	next.InvoiceID = invoiceID
	r.s.invoices[invoiceID] = cloneInvoice(next)
	return next, nil
}

func (r *InvoiceRepository) Delete(_ context.Context, invoiceID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[invoiceID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.invoices, invoiceID)
	return nil
}

// ItemCount reports how many stored items reference the invoice.
func (r *InvoiceRepository) ItemCount(invoiceID string) int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.invoices[invoiceID].Items)
}
