package postgres

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type invoiceRepository struct {
	db *gorm.DB
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *invoiceRepository) Create(ctx context.Context, invoice domain.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toInvoiceModel(invoice)
		if err := tx.Omit("Items").Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return err
		}
		return insertItems(tx, invoice.InvoiceID, invoice.Items)
	})
}

func (r *invoiceRepository) GetByID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if err := checkKey(invoiceID); err != nil {
		return domain.Invoice{}, err
	}
	var row invoiceModel
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("invoice_id = ?", invoiceID).
		Take(&row).Error
	if err != nil {
		return domain.Invoice{}, notFoundOr(err)
	}
	return toDomainInvoice(row), nil
}

func (r *invoiceRepository) List(ctx context.Context, query ports.InvoiceQuery) ([]domain.Invoice, int, error) {
	if query.ClientID != "" && checkKey(query.ClientID) != nil {
		return []domain.Invoice{}, 0, nil
	}
	q := r.db.WithContext(ctx).Model(&invoiceModel{})
	if query.ClientID != "" {
		q = q.Where("client_id = ?", query.ClientID)
	}
	if query.Status != "" {
		q = q.Where("status = ?", string(query.Status))
	}
	if query.DueBefore != nil {
		q = q.Where("due_date < ?", *query.DueBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []invoiceModel
	if err := q.Preload("Items", orderedItems).
		Order("created_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainInvoice(row))
	}
	return out, int(total), nil
}

// Update locks the invoice row for the lifetime of the mutation so concurrent
// webhook and API writers serialize on it.
func (r *invoiceRepository) Update(ctx context.Context, invoiceID string, update ports.InvoiceUpdate) (domain.Invoice, error) {
	if err := checkKey(invoiceID); err != nil {
		return domain.Invoice{}, err
	}
	var result domain.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row invoiceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("invoice_id = ?", invoiceID).
			Take(&row).Error; err != nil {
			return notFoundOr(err)
		}
		if err := tx.Where("invoice_id = ?", invoiceID).Order("position ASC").Find(&row.Items).Error; err != nil {
			return err
		}

		current := toDomainInvoice(row)
		if update.Mutate != nil {
			if err := update.Mutate(&current); err != nil {
				return err
			}
		}
		current.InvoiceID = invoiceID

		next := toInvoiceModel(current)
		if err := tx.Model(&invoiceModel{}).
			Where("invoice_id = ?", invoiceID).
			Updates(map[string]any{
				"number":          next.Number,
				"client_id":       next.ClientID,
				"invoice_date":    next.InvoiceDate,
				"due_date":        next.DueDate,
				"status":          next.Status,
				"total":           next.Total,
				"contact_email":   next.ContactEmail,
				"billing_address": next.BillingAddress,
				"notes":           next.Notes,
				"payment_method":  next.PaymentMethod,
				"paid_at":         next.PaidAt,
				"updated_at":      next.UpdatedAt,
			}).Error; err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return err
		}

		if update.ReplaceItems {
			if err := tx.Where("invoice_id = ?", invoiceID).Delete(&invoiceItemModel{}).Error; err != nil {
				return err
			}
			if err := insertItems(tx, invoiceID, current.Items); err != nil {
				return err
			}
		} else {
			current.Items = toDomainInvoice(row).Items
		}
		result = current
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}

func (r *invoiceRepository) Delete(ctx context.Context, invoiceID string) error {
	if err := checkKey(invoiceID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&invoiceItemModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("invoice_id = ?", invoiceID).Delete(&invoiceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *invoiceRepository) NextInvoiceSequence(ctx context.Context, day time.Time) (int, error) {
	var next int
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO invoice_sequences (day, value) VALUES (?, 1)
		 ON CONFLICT (day) DO UPDATE SET value = invoice_sequences.value + 1
		 RETURNING value`,
		day.UTC().Format("2006-01-02"),
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func insertItems(tx *gorm.DB, invoiceID string, items []domain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := toItemModels(invoiceID, items)
	if err := tx.Create(&rows).Error; err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}
