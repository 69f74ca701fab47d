package postgres

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"gorm.io/gorm"
)

// pgInvalidTextRepresentation is raised when a key is not a well-formed uuid.
const pgInvalidTextRepresentation = "22P02"

func mapperLogger() *slog.Logger {
	return slog.Default().With("module", "postgres", "layer", "adapter")
}

func toDomainClient(row clientModel) domain.Client {
	return domain.Client{
		ClientID:  row.ClientID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Address:   row.Address,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toClientModel(c domain.Client) clientModel {
	return clientModel{
		ClientID:  c.ClientID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toDomainService(row serviceModel) domain.Service {
	return domain.Service{
		ServiceID:   row.ServiceID,
		Name:        row.Name,
		Description: row.Description,
		Price:       row.Price,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toServiceModel(s domain.Service) serviceModel {
	return serviceModel{
		ServiceID:   s.ServiceID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toDomainInvoice(row invoiceModel) domain.Invoice {
	items := make([]domain.InvoiceItem, 0, len(row.Items))
	for _, it := range row.Items {
		items = append(items, domain.InvoiceItem{
			ItemID:      it.ItemID,
			InvoiceID:   it.InvoiceID,
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Total:       it.Total,
		})
	}
	return domain.Invoice{
		InvoiceID:      row.InvoiceID,
		Number:         row.Number,
		ClientID:       row.ClientID,
		Date:           row.InvoiceDate,
		DueDate:        row.DueDate,
		Status:         domain.InvoiceStatus(row.Status),
		Total:          row.Total,
		ContactEmail:   row.ContactEmail,
		BillingAddress: row.BillingAddress,
		Notes:          row.Notes,
		PaymentMethod:  row.PaymentMethod,
		PaidAt:         row.PaidAt,
		Items:          items,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// toInvoiceModel leaves Items empty; item rows are written separately so the
// invoice row update never cascades through gorm associations.
func toInvoiceModel(inv domain.Invoice) invoiceModel {
	return invoiceModel{
		InvoiceID:      inv.InvoiceID,
		Number:         inv.Number,
		ClientID:       inv.ClientID,
		InvoiceDate:    inv.Date,
		DueDate:        inv.DueDate,
		Status:         string(inv.Status),
		Total:          inv.Total,
		ContactEmail:   inv.ContactEmail,
		BillingAddress: inv.BillingAddress,
		Notes:          inv.Notes,
		PaymentMethod:  inv.PaymentMethod,
		PaidAt:         inv.PaidAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toItemModels(invoiceID string, items []domain.InvoiceItem) []invoiceItemModel {
	out := make([]invoiceItemModel, 0, len(items))
	for i, it := range items {
		out = append(out, invoiceItemModel{
			ItemID:      it.ItemID,
			InvoiceID:   invoiceID,
			ServiceID:   it.ServiceID,
			Position:    i,
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Total:       it.Total,
		})
	}
	return out
}

func toDomainPaymentIntent(row paymentIntentModel) domain.PaymentIntent {
	var types []string
	if row.PaymentMethodTypes != "" {
		if err := json.Unmarshal([]byte(row.PaymentMethodTypes), &types); err != nil {
			mapperLogger().Warn("stored payment method types are not valid json",
				"operation", "decode_payment_intent",
				"outcome", "degraded",
				"payment_intent_id", row.PaymentIntentID,
				"error", err,
			)
			types = nil
		}
	}
	return domain.PaymentIntent{
		PaymentIntentID:    row.PaymentIntentID,
		GatewayIntentID:    row.GatewayIntentID,
		InvoiceID:          row.InvoiceID,
		Amount:             row.Amount,
		Currency:           row.Currency,
		Status:             domain.PaymentIntentStatus(row.Status),
		ClientSecret:       row.ClientSecret,
		PaymentMethod:      row.PaymentMethod,
		PaymentMethodTypes: types,
		FailureReason:      row.FailureReason,
		PaidAt:             row.PaidAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toPaymentIntentModel(p domain.PaymentIntent) paymentIntentModel {
	types := p.PaymentMethodTypes
	if types == nil {
		types = []string{}
	}
	raw, err := json.Marshal(types)
	if err != nil {
		mapperLogger().Warn("payment method types could not be encoded",
			"operation", "encode_payment_intent",
			"outcome", "degraded",
			"payment_intent_id", p.PaymentIntentID,
			"error", err,
		)
		raw = []byte("[]")
	}
	return paymentIntentModel{
		PaymentIntentID:    p.PaymentIntentID,
		GatewayIntentID:    p.GatewayIntentID,
		InvoiceID:          p.InvoiceID,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             string(p.Status),
		ClientSecret:       p.ClientSecret,
		PaymentMethod:      p.PaymentMethod,
		PaymentMethodTypes: string(raw),
		FailureReason:      p.FailureReason,
		PaidAt:             p.PaidAt,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isForeignKeyViolation(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}

// notFoundOr maps a missing row, or a key the uuid columns cannot hold, to
// domain.ErrNotFound.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return domain.ErrNotFound
	}
	return err
}

// checkKey fails with domain.ErrNotFound before a malformed id reaches a uuid
// column.
func checkKey(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return nil
}
