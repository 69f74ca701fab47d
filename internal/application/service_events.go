package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

// outboxNamespace seeds deterministic event ids so that re-applying the same
// transition enqueues the same outbox row.
var outboxNamespace = uuid.MustParse("6f1c9a52-3e0b-4d7c-9a61-2b8f0e4d5c13")

func outboxEventID(eventType, seed string) uuid.UUID {
	if seed == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(outboxNamespace, []byte(eventType+":"+seed))
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, partitionKey, seed string, data any, occurredAt time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	eventID := outboxEventID(eventType, seed)
	envelope := contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		EventClass:       contracts.EventClassDomain,
		OccurredAt:       occurredAt,
		PartitionKey:     partitionKey,
		PartitionKeyPath: contracts.PartitionKeyPathInvoiceID,
		SourceService:    s.cfg.ServiceName,
		TraceID:          uuid.NewString(),
		SchemaVersion:    contracts.EventSchemaVersion,
		Data:             raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	err = s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		OccurredAt:   occurredAt,
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) enqueueInvoicePaid(ctx context.Context, invoice domain.Invoice, source, gatewayIntentID string) error {
	paidAt := s.nowFn()
	if invoice.PaidAt != nil {
		paidAt = *invoice.PaidAt
	}
	return s.enqueueEvent(ctx, contracts.EventTypeInvoicePaid, invoice.InvoiceID, invoice.InvoiceID, contracts.InvoicePaidPayload{
		InvoiceID:       invoice.InvoiceID,
		Number:          invoice.Number,
		ClientID:        invoice.ClientID,
		Total:           invoice.Total.StringFixed(2),
		PaidAt:          paidAt.Format(time.RFC3339),
		Source:          source,
		GatewayIntentID: gatewayIntentID,
	}, paidAt)
}

func (s *Service) enqueuePaymentIntentEvent(ctx context.Context, eventType, seed string, intent domain.PaymentIntent) error {
	occurredAt := intent.UpdatedAt
	if occurredAt.IsZero() {
		occurredAt = s.nowFn()
	}
	return s.enqueueEvent(ctx, eventType, intent.InvoiceID, seed, contracts.PaymentIntentPayload{
		PaymentIntentID: intent.PaymentIntentID,
		GatewayIntentID: intent.GatewayIntentID,
		InvoiceID:       intent.InvoiceID,
		Amount:          intent.Amount.String(),
		Currency:        intent.Currency,
		Status:          string(intent.Status),
		PaymentMethod:   intent.PaymentMethod,
		FailureReason:   intent.FailureReason,
		OccurredAt:      occurredAt.Format(time.RFC3339),
	}, occurredAt)
}
