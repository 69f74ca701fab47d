package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

// CreatePaymentIntent opens a gateway-side charge for the invoice and stores its
// local shadow. Nothing is persisted when the gateway call fails.
func (s *Service) CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (domain.PaymentIntent, error) {
	if err := s.gateway.Ready(); err != nil {
		return domain.PaymentIntent{}, err
	}
	if strings.TrimSpace(input.InvoiceID) == "" {
		return domain.PaymentIntent{}, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	invoice, err := s.invoices.GetByID(ctx, input.InvoiceID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if invoice.Status == domain.InvoiceStatusPaid {
		return domain.PaymentIntent{}, domain.ErrInvoiceAlreadyPaid
	}

	currency := domain.NormalizeCurrency(input.Currency, s.cfg.DefaultCurrency)
	amountMinor, err := domain.ToMinorUnits(input.Amount, currency)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	_, total, err := domain.ComputeTotal(invoice.Items)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if !input.Amount.Equal(total) {
		return domain.PaymentIntent{}, fmt.Errorf("%w: amount %s does not match invoice total %s", domain.ErrInvalidAmount, input.Amount, total)
	}

	created, err := s.gateway.CreateIntent(ctx, ports.CreateIntentRequest{
		AmountMinor:    amountMinor,
		Currency:       currency,
		Metadata:       map[string]string{"invoice_id": invoice.InvoiceID},
		IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
	})
	if err != nil {
		s.logger().WarnContext(ctx, "gateway intent creation failed",
			"operation", "create_payment_intent",
			"outcome", "failure",
			"invoice_id", invoice.InvoiceID,
			"error", err,
		)
		return domain.PaymentIntent{}, err
	}

	paymentMethod := domain.DefaultPaymentMethod
	if len(created.PaymentMethodTypes) > 0 && created.PaymentMethodTypes[0] != "" {
		paymentMethod = created.PaymentMethodTypes[0]
	}
	now := s.nowFn()
	intent := domain.PaymentIntent{
		PaymentIntentID:    uuid.NewString(),
		GatewayIntentID:    created.GatewayIntentID,
		InvoiceID:          invoice.InvoiceID,
		Amount:             input.Amount,
		Currency:           currency,
		Status:             domain.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret:       created.ClientSecret,
		PaymentMethod:      paymentMethod,
		PaymentMethodTypes: created.PaymentMethodTypes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.paymentIntents.Create(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Same idempotency key replayed: the gateway handed back the intent we already store.
			if existing, getErr := s.paymentIntents.GetByGatewayID(ctx, created.GatewayIntentID); getErr == nil {
				return existing, nil
			}
		}
		s.logOperationFailure(ctx, "create_payment_intent", err,
			"invoice_id", invoice.InvoiceID,
			"gateway_intent_id", created.GatewayIntentID,
		)
		return domain.PaymentIntent{}, err
	}
	if err := s.enqueuePaymentIntentEvent(ctx, contracts.EventTypePaymentIntentCreated, intent.GatewayIntentID, intent); err != nil {
		s.logOperationFailure(ctx, "create_payment_intent", err, "gateway_intent_id", intent.GatewayIntentID)
	}
	s.logger().InfoContext(ctx, "payment intent created",
		"operation", "create_payment_intent",
		"outcome", "success",
		"invoice_id", invoice.InvoiceID,
		"gateway_intent_id", intent.GatewayIntentID,
		"amount_minor", amountMinor,
		"currency", currency,
	)
	return intent, nil
}

func (s *Service) GetPaymentIntent(ctx context.Context, paymentIntentID string) (domain.PaymentIntent, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return domain.PaymentIntent{}, fmt.Errorf("%w: payment_intent_id is required", domain.ErrInvalidInput)
	}
	return s.paymentIntents.GetByID(ctx, paymentIntentID)
}

// ListPaymentIntents returns intents newest first.
func (s *Service) ListPaymentIntents(ctx context.Context, query ports.PageQuery) (ListPaymentIntentsOutput, error) {
	query = normalizePageQuery(query)
	intents, total, err := s.paymentIntents.List(ctx, query)
	if err != nil {
		return ListPaymentIntentsOutput{}, err
	}
	return ListPaymentIntentsOutput{
		PaymentIntents: intents,
		Pagination: contracts.Pagination{
			Limit:  query.Limit,
			Offset: query.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) ListPaymentIntentsByInvoice(ctx context.Context, invoiceID string) ([]domain.PaymentIntent, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return nil, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	return s.paymentIntents.ListByInvoice(ctx, invoiceID)
}
