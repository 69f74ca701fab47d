package memory

import (
	"context"
	"slices"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type PaymentIntentRepository struct {
	s *store
}

func (r *PaymentIntentRepository) Create(_ context.Context, intent domain.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.gatewayIndex[intent.GatewayIntentID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.s.paymentIntents[intent.PaymentIntentID]; exists {
		return domain.ErrConflict
	}
	r.s.paymentIntents[intent.PaymentIntentID] = cloneIntent(intent)
	r.s.gatewayIndex[intent.GatewayIntentID] = intent.PaymentIntentID
	return nil
}

func (r *PaymentIntentRepository) GetByID(_ context.Context, paymentIntentID string) (domain.PaymentIntent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	intent, ok := r.s.paymentIntents[paymentIntentID]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	return cloneIntent(intent), nil
}

func (r *PaymentIntentRepository) GetByGatewayID(_ context.Context, gatewayIntentID string) (domain.PaymentIntent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.gatewayIndex[gatewayIntentID]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	return cloneIntent(r.s.paymentIntents[id]), nil
}

func (r *PaymentIntentRepository) List(_ context.Context, query ports.PageQuery) ([]domain.PaymentIntent, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]domain.PaymentIntent, 0, len(r.s.paymentIntents))
	for _, intent := range r.s.paymentIntents {
		all = append(all, cloneIntent(intent))
	}
	sortIntentsNewestFirst(all)
	return paginate(all, query.Limit, query.Offset), len(all), nil
}

func (r *PaymentIntentRepository) ListByInvoice(_ context.Context, invoiceID string) ([]domain.PaymentIntent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.PaymentIntent, 0)
	for _, intent := range r.s.paymentIntents {
		if intent.InvoiceID == invoiceID {
			out = append(out, cloneIntent(intent))
		}
	}
	sortIntentsNewestFirst(out)
	return out, nil
}

func (r *PaymentIntentRepository) UpdateByGatewayID(_ context.Context, gatewayIntentID string, mutate func(*domain.PaymentIntent) error) (domain.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.gatewayIndex[gatewayIntentID]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	next := cloneIntent(r.s.paymentIntents[id])
	if err := mutate(&next); err != nil {
		return domain.PaymentIntent{}, err
	}
	next.PaymentIntentID = id
	next.GatewayIntentID = gatewayIntentID
	r.s.paymentIntents[id] = cloneIntent(next)
	return next, nil
}

func sortIntentsNewestFirst(intents []domain.PaymentIntent) {
	slices.SortFunc(intents, func(a, b domain.PaymentIntent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.PaymentIntentID < b.PaymentIntentID {
			return -1
		}
		if a.PaymentIntentID > b.PaymentIntentID {
			return 1
		}
		return 0
	})
}
