package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

// HandleGatewayEvent authenticates a raw webhook delivery and applies it.
//
// The returned error decides the acknowledgement: domain.ErrSignatureInvalid
// must be answered with a client error, any other error with a server error so
// the gateway redelivers. Misses and unrecognized kinds return a nil error.
func (s *Service) HandleGatewayEvent(ctx context.Context, payload []byte, signatureHeader string) (ReconcileOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WebhookTimeout)
	defer cancel()

	event, err := s.webhooks.Verify(payload, signatureHeader)
	if err != nil {
		s.logger().WarnContext(ctx, "webhook rejected",
			"operation", "handle_gateway_event",
			"outcome", "rejected",
			"payload_bytes", len(payload),
			"error", err,
		)
		return "", err
	}
	meta := event.Meta()

	now := s.nowFn()
	if meta.EventID != "" {
		dup, err := s.eventDedup.IsDuplicate(ctx, meta.EventID, now)
		if err != nil {
			// Transitions and outbox ids are idempotent, so applying again is safe.
			s.logger().WarnContext(ctx, "event dedup unavailable; applying without it",
				"operation", "handle_gateway_event",
				"outcome", "degraded",
				"event_id", meta.EventID,
				"event_type", meta.Type,
				"error", err,
			)
			dup = false
		}
		if dup {
			s.logger().InfoContext(ctx, "duplicate webhook delivery acknowledged",
				"operation", "handle_gateway_event",
				"outcome", string(ReconcileOutcomeDuplicate),
				"event_id", meta.EventID,
				"event_type", meta.Type,
			)
			return ReconcileOutcomeDuplicate, nil
		}
	}

	var outcome ReconcileOutcome
	switch e := event.(type) {
	case domain.PaymentSucceeded:
		outcome, err = s.applyPaymentSucceeded(ctx, e)
	case domain.PaymentFailed:
		reason := strings.TrimSpace(e.FailureMessage)
		if reason == "" {
			reason = domain.FailureReasonDefault
		}
		outcome, err = s.applyPaymentCanceled(ctx, e.EventMeta, e.GatewayIntentID, reason, contracts.EventTypePaymentIntentFailed)
	case domain.PaymentCanceled:
		outcome, err = s.applyPaymentCanceled(ctx, e.EventMeta, e.GatewayIntentID, domain.FailureReasonCanceled, contracts.EventTypePaymentIntentCanceled)
	default:
		s.logger().InfoContext(ctx, "unhandled webhook event kind",
			"operation", "handle_gateway_event",
			"outcome", string(ReconcileOutcomeIgnored),
			"event_id", meta.EventID,
			"event_type", meta.Type,
		)
		return ReconcileOutcomeIgnored, nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrReconciliationMiss) {
			s.logger().WarnContext(ctx, "webhook matched no local record",
				"operation", "handle_gateway_event",
				"outcome", string(ReconcileOutcomeMiss),
				"event_id", meta.EventID,
				"event_type", meta.Type,
				"error", err,
			)
			return ReconcileOutcomeMiss, nil
		}
		s.logOperationFailure(ctx, "handle_gateway_event", err,
			"event_id", meta.EventID,
			"event_type", meta.Type,
		)
		return "", err
	}

	if meta.EventID != "" {
		if err := s.eventDedup.MarkProcessed(ctx, meta.EventID, meta.Type, now.Add(s.cfg.EventDedupTTL)); err != nil {
			s.logger().WarnContext(ctx, "failed to record processed webhook",
				"operation", "handle_gateway_event",
				"outcome", "degraded",
				"event_id", meta.EventID,
				"error", err,
			)
		}
	}
	s.logger().InfoContext(ctx, "webhook applied",
		"operation", "handle_gateway_event",
		"outcome", string(outcome),
		"event_id", meta.EventID,
		"event_type", meta.Type,
	)
	return outcome, nil
}

func (s *Service) applyPaymentSucceeded(ctx context.Context, e domain.PaymentSucceeded) (ReconcileOutcome, error) {
	if strings.TrimSpace(e.GatewayIntentID) == "" {
		return "", fmt.Errorf("%w: event carries no payment intent id", domain.ErrReconciliationMiss)
	}
	current, err := s.paymentIntents.GetByGatewayID(ctx, e.GatewayIntentID)
	if err != nil {
		return "", missOr(err, "payment intent "+e.GatewayIntentID)
	}

	label := current.PaymentMethod
	if current.Status != domain.PaymentIntentStatusSucceeded {
		label = s.lookupPaymentMethod(ctx, e.PaymentMethodID)
	}
	now := s.nowFn()
	intent, err := s.paymentIntents.UpdateByGatewayID(ctx, e.GatewayIntentID, func(p *domain.PaymentIntent) error {
		p.MarkSucceeded(now, label)
		return nil
	})
	if err != nil {
		return "", missOr(err, "payment intent "+e.GatewayIntentID)
	}
	if err := s.enqueuePaymentIntentEvent(ctx, contracts.EventTypePaymentIntentSucceeded, intent.GatewayIntentID, intent); err != nil {
		return "", err
	}

	if e.InvoiceID == "" {
		return ReconcileOutcomeApplied, nil
	}
	if intent.InvoiceID != e.InvoiceID {
		s.logger().WarnContext(ctx, "webhook invoice correlation differs from stored intent",
			"operation", "handle_gateway_event",
			"outcome", "mismatch",
			"gateway_intent_id", e.GatewayIntentID,
			"event_invoice_id", e.InvoiceID,
			"stored_invoice_id", intent.InvoiceID,
		)
	}
	invoice, err := s.invoices.Update(ctx, e.InvoiceID, ports.InvoiceUpdate{
		Mutate: func(inv *domain.Invoice) error {
			inv.MarkPaid(now)
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger().WarnContext(ctx, "paid invoice no longer exists",
				"operation", "handle_gateway_event",
				"outcome", string(ReconcileOutcomeMiss),
				"invoice_id", e.InvoiceID,
				"gateway_intent_id", e.GatewayIntentID,
			)
			return ReconcileOutcomeApplied, nil
		}
		return "", fmt.Errorf("mark invoice %s paid: %w", e.InvoiceID, err)
	}
	if err := s.enqueueInvoicePaid(ctx, invoice, "gateway", intent.GatewayIntentID); err != nil {
		return "", err
	}
	return ReconcileOutcomeApplied, nil
}

func (s *Service) applyPaymentCanceled(ctx context.Context, meta domain.EventMeta, gatewayIntentID, reason, eventType string) (ReconcileOutcome, error) {
	if strings.TrimSpace(gatewayIntentID) == "" {
		return "", fmt.Errorf("%w: event carries no payment intent id", domain.ErrReconciliationMiss)
	}
	now := s.nowFn()
	intent, err := s.paymentIntents.UpdateByGatewayID(ctx, gatewayIntentID, func(p *domain.PaymentIntent) error {
		p.MarkCanceled(now, reason)
		return nil
	})
	if err != nil {
		return "", missOr(err, "payment intent "+gatewayIntentID)
	}
	if intent.Status == domain.PaymentIntentStatusSucceeded {
		s.logger().InfoContext(ctx, "late failure ignored for settled intent",
			"operation", "handle_gateway_event",
			"outcome", string(ReconcileOutcomeIgnored),
			"event_id", meta.EventID,
			"gateway_intent_id", gatewayIntentID,
		)
		return ReconcileOutcomeIgnored, nil
	}
	seed := gatewayIntentID + ":" + meta.EventID
	if err := s.enqueuePaymentIntentEvent(ctx, eventType, seed, intent); err != nil {
		return "", err
	}
	return ReconcileOutcomeApplied, nil
}

// lookupPaymentMethod enriches the method label under its own short deadline.
// Any failure falls back to the default label.
func (s *Service) lookupPaymentMethod(ctx context.Context, paymentMethodID string) string {
	if strings.TrimSpace(paymentMethodID) == "" {
		return domain.DefaultPaymentMethod
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentMethodLookupTimeout)
	defer cancel()
	label, err := s.gateway.RetrievePaymentMethod(lookupCtx, paymentMethodID)
	if err != nil || strings.TrimSpace(label) == "" {
		s.logger().WarnContext(ctx, "payment method lookup failed; using default label",
			"operation", "lookup_payment_method",
			"outcome", "fallback",
			"payment_method_id", paymentMethodID,
			"error", err,
		)
		return domain.DefaultPaymentMethod
	}
	return label
}

func missOr(err error, subject string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrReconciliationMiss, subject)
	}
	return err
}
