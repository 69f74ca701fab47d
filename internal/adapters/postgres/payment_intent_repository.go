package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentIntentRepository struct {
	db *gorm.DB
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent domain.PaymentIntent) error {
	row := toPaymentIntentModel(intent)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *paymentIntentRepository) GetByID(ctx context.Context, paymentIntentID string) (domain.PaymentIntent, error) {
	if err := checkKey(paymentIntentID); err != nil {
		return domain.PaymentIntent{}, err
	}
	var row paymentIntentModel
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).Take(&row).Error; err != nil {
		return domain.PaymentIntent{}, notFoundOr(err)
	}
	return toDomainPaymentIntent(row), nil
}

func (r *paymentIntentRepository) GetByGatewayID(ctx context.Context, gatewayIntentID string) (domain.PaymentIntent, error) {
	var row paymentIntentModel
	if err := r.db.WithContext(ctx).Where("gateway_intent_id = ?", gatewayIntentID).Take(&row).Error; err != nil {
		return domain.PaymentIntent{}, notFoundOr(err)
	}
	return toDomainPaymentIntent(row), nil
}

func (r *paymentIntentRepository) List(ctx context.Context, query ports.PageQuery) ([]domain.PaymentIntent, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&paymentIntentModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []paymentIntentModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("payment_intent_id ASC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.PaymentIntent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPaymentIntent(row))
	}
	return out, int(total), nil
}

func (r *paymentIntentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]domain.PaymentIntent, error) {
	if checkKey(invoiceID) != nil {
		return []domain.PaymentIntent{}, nil
	}
	var rows []paymentIntentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PaymentIntent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPaymentIntent(row))
	}
	return out, nil
}

func (r *paymentIntentRepository) UpdateByGatewayID(ctx context.Context, gatewayIntentID string, mutate func(*domain.PaymentIntent) error) (domain.PaymentIntent, error) {
	var result domain.PaymentIntent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row paymentIntentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_intent_id = ?", gatewayIntentID).
			Take(&row).Error; err != nil {
			return notFoundOr(err)
		}
		current := toDomainPaymentIntent(row)
		if err := mutate(&current); err != nil {
			return err
		}
		next := toPaymentIntentModel(current)
		if err := tx.Model(&paymentIntentModel{}).
			Where("payment_intent_id = ?", row.PaymentIntentID).
			Updates(map[string]any{
				"status":         next.Status,
				"payment_method": next.PaymentMethod,
				"failure_reason": next.FailureReason,
				"paid_at":        next.PaidAt,
				"updated_at":     next.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		current.PaymentIntentID = row.PaymentIntentID
		current.GatewayIntentID = row.GatewayIntentID
		result = current
		return nil
	})
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	return result, nil
}
