package application_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	stripeadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/stripe"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

func TestCreatePaymentIntentRecordsGatewayShadow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")

	if intent.Status != domain.PaymentIntentStatusRequiresPaymentMethod {
		t.Fatalf("expected REQUIRES_PAYMENT_METHOD, got %s", intent.Status)
	}
	if intent.GatewayIntentID != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("gateway reply not recorded: %+v", intent)
	}
	if len(f.gateway.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(f.gateway.requests))
	}
	req := f.gateway.requests[0]
	if req.AmountMinor != 13000 || req.Currency != "usd" || req.Metadata["invoice_id"] != invoice.InvoiceID {
		t.Fatalf("unexpected gateway request: %+v", req)
	}
	stored := mustIntent(t, f, intent.PaymentIntentID)
	if stored.GatewayIntentID != "pi_1" || stored.InvoiceID != invoice.InvoiceID {
		t.Fatalf("unexpected stored intent: %+v", stored)
	}
	if n := f.outboxCount(contracts.EventTypePaymentIntentCreated); n != 1 {
		t.Fatalf("expected one payment_intent.created event, got %d", n)
	}
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	ctx := context.Background()

	_, err := f.svc.CreatePaymentIntent(ctx, application.CreatePaymentIntentInput{InvoiceID: "missing", Amount: decimal.NewFromInt(130)})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = f.svc.CreatePaymentIntent(ctx, application.CreatePaymentIntentInput{InvoiceID: invoice.InvoiceID, Amount: decimal.NewFromInt(100)})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for a mismatched amount, got %v", err)
	}
	_, err = f.svc.CreatePaymentIntent(ctx, application.CreatePaymentIntentInput{InvoiceID: invoice.InvoiceID, Amount: decimal.Zero})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}

	if _, err := f.svc.MarkInvoicePaid(ctx, invoice.InvoiceID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	_, err = f.svc.CreatePaymentIntent(ctx, application.CreatePaymentIntentInput{InvoiceID: invoice.InvoiceID, Amount: decimal.NewFromInt(130)})
	if !errors.Is(err, domain.ErrInvoiceAlreadyPaid) {
		t.Fatalf("expected ErrInvoiceAlreadyPaid, got %v", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatalf("gateway must not be called for rejected requests, got %d calls", len(f.gateway.requests))
	}
}

func TestCreatePaymentIntentWithoutGatewayKeyIsConfigurationError(t *testing.T) {
	t.Parallel()

	f := newFixtureWith(t, application.Config{}, stripeadapter.NewGateway(stripeadapter.GatewayConfig{}))
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))

	_, err := f.svc.CreatePaymentIntent(context.Background(), application.CreatePaymentIntentInput{
		InvoiceID: invoice.InvoiceID,
		Amount:    decimal.NewFromInt(130),
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	// Non-payment functionality keeps working without gateway configuration.
	if _, err := f.svc.SendInvoice(context.Background(), invoice.InvoiceID); err != nil {
		t.Fatalf("send invoice: %v", err)
	}
}

func TestGatewayErrorLeavesNoLocalState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	f.gateway.createErr = fmt.Errorf("%w: card_declined", domain.ErrGateway)

	_, err := f.svc.CreatePaymentIntent(context.Background(), application.CreatePaymentIntentInput{
		InvoiceID: invoice.InvoiceID,
		Amount:    decimal.NewFromInt(130),
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
	intents, err := f.svc.ListPaymentIntentsByInvoice(context.Background(), invoice.InvoiceID)
	if err != nil || len(intents) != 0 {
		t.Fatalf("expected no local intent, got %d (%v)", len(intents), err)
	}
	if n := len(f.repos.Outbox.Records()); n != 0 {
		t.Fatalf("expected empty outbox, got %d records", n)
	}
}

func TestSucceededEventSettlesIntentAndInvoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	f.gateway.label = "us_bank_account"
	f.advance(time.Minute)
	settledAt := f.now()

	payload := intentEvent("evt_1", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, `,"payment_method":"pm_1"`)
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	gotIntent := mustIntent(t, f, intent.PaymentIntentID)
	if gotIntent.Status != domain.PaymentIntentStatusSucceeded || !gotIntent.PaidAt.Equal(settledAt) {
		t.Fatalf("unexpected intent: %+v", gotIntent)
	}
	if gotIntent.PaymentMethod != "us_bank_account" {
		t.Fatalf("expected enriched method label, got %q", gotIntent.PaymentMethod)
	}
	gotInvoice := mustInvoice(t, f, invoice.InvoiceID)
	if gotInvoice.Status != domain.InvoiceStatusPaid || !gotInvoice.PaidAt.Equal(settledAt) {
		t.Fatalf("unexpected invoice: %+v", gotInvoice)
	}

	// Identical redelivery is acknowledged as a duplicate.
	f.advance(time.Hour)
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}
	// A second event id for the same intent re-applies the same target state.
	replay := intentEvent("evt_1b", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, `,"payment_method":"pm_2"`)
	if outcome := deliver(t, f, replay); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected applied replay, got %s", outcome)
	}

	afterIntent := mustIntent(t, f, intent.PaymentIntentID)
	afterInvoice := mustInvoice(t, f, invoice.InvoiceID)
	if !afterIntent.PaidAt.Equal(*gotIntent.PaidAt) || afterIntent.PaymentMethod != gotIntent.PaymentMethod || !afterIntent.UpdatedAt.Equal(gotIntent.UpdatedAt) {
		t.Fatalf("replay changed the intent: before %+v after %+v", gotIntent, afterIntent)
	}
	if !afterInvoice.PaidAt.Equal(*gotInvoice.PaidAt) || afterInvoice.Status != domain.InvoiceStatusPaid || !afterInvoice.UpdatedAt.Equal(gotInvoice.UpdatedAt) {
		t.Fatalf("replay changed the invoice: before %+v after %+v", gotInvoice, afterInvoice)
	}
	if f.gateway.lookups != 1 {
		t.Fatalf("expected a single payment method lookup, got %d", f.gateway.lookups)
	}
	if n := f.outboxCount(contracts.EventTypeInvoicePaid); n != 1 {
		t.Fatalf("expected one invoice.paid event, got %d", n)
	}
	if n := f.outboxCount(contracts.EventTypePaymentIntentSucceeded); n != 1 {
		t.Fatalf("expected one payment_intent.succeeded event, got %d", n)
	}
}

func TestSucceededEventWithoutCorrelationLeavesInvoice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")

	deliver(t, f, intentEvent("evt_nometa", "payment_intent.succeeded", intent.GatewayIntentID, "", ""))
	if got := mustIntent(t, f, intent.PaymentIntentID); got.Status != domain.PaymentIntentStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", got.Status)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusSent {
		t.Fatalf("invoice must stay SENT without correlation id, got %s", got.Status)
	}
}

func TestUnknownGatewayIntentIsAcknowledgedMiss(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	outboxBefore := len(f.repos.Outbox.Records())

	payload := intentEvent("evt_unknown", "payment_intent.succeeded", "pi_does_not_exist", invoice.InvoiceID, "")
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeMiss {
		t.Fatalf("expected miss, got %s", outcome)
	}
	if got := mustIntent(t, f, intent.PaymentIntentID); got.Status != domain.PaymentIntentStatusRequiresPaymentMethod {
		t.Fatalf("unrelated intent mutated: %s", got.Status)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusSent {
		t.Fatalf("invoice mutated by a miss: %s", got.Status)
	}
	if n := len(f.repos.Outbox.Records()); n != outboxBefore {
		t.Fatalf("miss enqueued events: %d -> %d", outboxBefore, n)
	}
}

func TestUnrecognizedEventKindIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")

	payload := intentEvent("evt_refund", "charge.refunded", intent.GatewayIntentID, invoice.InvoiceID, "")
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
	if got := mustIntent(t, f, intent.PaymentIntentID); got.Status != domain.PaymentIntentStatusRequiresPaymentMethod {
		t.Fatalf("intent mutated: %s", got.Status)
	}
}

func TestTamperedWebhookIsRejectedWithoutStateChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	outboxBefore := len(f.repos.Outbox.Records())

	original := intentEvent("evt_tamper", "payment_intent.payment_failed", intent.GatewayIntentID, invoice.InvoiceID, "")
	header := sign(original)
	tampered := intentEvent("evt_tamper", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, "")

	_, err := f.svc.HandleGatewayEvent(context.Background(), tampered, header)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if got := mustIntent(t, f, intent.PaymentIntentID); got.Status != domain.PaymentIntentStatusRequiresPaymentMethod {
		t.Fatalf("intent mutated by rejected webhook: %s", got.Status)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusSent {
		t.Fatalf("invoice mutated by rejected webhook: %s", got.Status)
	}
	if n := len(f.repos.Outbox.Records()); n != outboxBefore {
		t.Fatalf("rejected webhook enqueued events: %d -> %d", outboxBefore, n)
	}
	// The untouched original still verifies, so the event was not marked processed.
	if outcome := deliver(t, f, original); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected original to apply, got %s", outcome)
	}
}

func TestWebhookWithoutSigningSecretIsConfigurationError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := application.NewService(application.Dependencies{
		Invoices:       f.repos.Invoices,
		PaymentIntents: f.repos.PaymentIntents,
		Clients:        f.repos.Clients,
		Catalog:        f.repos.Services,
		Outbox:         f.repos.Outbox,
		EventDedup:     f.repos.EventDedup,
		Gateway:        f.gateway,
		Webhooks:       stripeadapter.NewWebhookVerifier("", 0),
	})
	payload := intentEvent("evt_cfg", "payment_intent.succeeded", "pi_1", "", "")
	if _, err := svc.HandleGatewayEvent(context.Background(), payload, sign(payload)); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestFailedAndCanceledEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")

	deliver(t, f, intentEvent("evt_f1", "payment_intent.payment_failed", intent.GatewayIntentID, invoice.InvoiceID,
		`,"last_payment_error":{"message":"Your card has insufficient funds."}`))
	got := mustIntent(t, f, intent.PaymentIntentID)
	if got.Status != domain.PaymentIntentStatusCanceled || got.FailureReason != "Your card has insufficient funds." {
		t.Fatalf("unexpected failed intent: %+v", got)
	}
	if inv := mustInvoice(t, f, invoice.InvoiceID); inv.Status != domain.InvoiceStatusSent {
		t.Fatalf("failed charge must not touch the invoice, got %s", inv.Status)
	}

	deliver(t, f, intentEvent("evt_f2", "payment_intent.payment_failed", intent.GatewayIntentID, "", ""))
	if got := mustIntent(t, f, intent.PaymentIntentID); got.FailureReason != domain.FailureReasonDefault {
		t.Fatalf("expected default failure reason, got %q", got.FailureReason)
	}

	deliver(t, f, intentEvent("evt_c1", "payment_intent.canceled", intent.GatewayIntentID, "", ""))
	if got := mustIntent(t, f, intent.PaymentIntentID); got.FailureReason != domain.FailureReasonCanceled {
		t.Fatalf("expected canceled reason, got %q", got.FailureReason)
	}

	// A success after a failure settles the charge; a later failure does not revert it.
	deliver(t, f, intentEvent("evt_s1", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, ""))
	if outcome := deliver(t, f, intentEvent("evt_f3", "payment_intent.payment_failed", intent.GatewayIntentID, "", "")); outcome != application.ReconcileOutcomeIgnored {
		t.Fatalf("expected late failure to be ignored, got %s", outcome)
	}
	if got := mustIntent(t, f, intent.PaymentIntentID); got.Status != domain.PaymentIntentStatusSucceeded || got.FailureReason != "" {
		t.Fatalf("late failure reverted the intent: %+v", got)
	}
	if n := f.outboxCount(contracts.EventTypePaymentIntentFailed); n != 2 {
		t.Fatalf("expected two payment_intent.failed events, got %d", n)
	}
	if n := f.outboxCount(contracts.EventTypePaymentIntentCanceled); n != 1 {
		t.Fatalf("expected one payment_intent.canceled event, got %d", n)
	}
}

func TestSlowPaymentMethodLookupFallsBackToDefault(t *testing.T) {
	t.Parallel()

	f := newFixtureWith(t, application.Config{PaymentMethodLookupTimeout: 20 * time.Millisecond}, nil)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	f.gateway.label = "sepa_debit"
	f.gateway.lookupDelay = 2 * time.Second

	deliver(t, f, intentEvent("evt_slow", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, `,"payment_method":"pm_slow"`))
	got := mustIntent(t, f, intent.PaymentIntentID)
	if got.Status != domain.PaymentIntentStatusSucceeded || got.PaymentMethod != domain.DefaultPaymentMethod {
		t.Fatalf("expected settled intent with default label, got %+v", got)
	}
}

func TestFailedPaymentMethodLookupFallsBackToDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	f.gateway.lookupErr = fmt.Errorf("%w: no such payment_method", domain.ErrGateway)

	deliver(t, f, intentEvent("evt_lookup", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, `,"payment_method":"pm_gone"`))
	if got := mustIntent(t, f, intent.PaymentIntentID); got.PaymentMethod != domain.DefaultPaymentMethod {
		t.Fatalf("expected default label, got %q", got.PaymentMethod)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusPaid {
		t.Fatalf("lookup failure must not block settlement, got %s", got.Status)
	}
}
