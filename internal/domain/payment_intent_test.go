package domain

import (
	"testing"
	"time"
)

func TestMarkSucceededKeepsFirstSettlement(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := PaymentIntent{Status: PaymentIntentStatusRequiresPaymentMethod}
	if !p.MarkSucceeded(at, "") {
		t.Fatal("expected first success to apply")
	}
	if p.PaymentMethod != DefaultPaymentMethod || !p.PaidAt.Equal(at) {
		t.Fatalf("unexpected intent: %+v", p)
	}
	if p.MarkSucceeded(at.Add(time.Minute), "sepa_debit") {
		t.Fatal("expected replay to be a no-op")
	}
	if p.PaymentMethod != DefaultPaymentMethod || !p.PaidAt.Equal(at) {
		t.Fatalf("replay changed the intent: %+v", p)
	}
}

func TestMarkCanceledNeverRevertsSuccess(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := PaymentIntent{Status: PaymentIntentStatusSucceeded}
	if p.MarkCanceled(at, FailureReasonDefault) {
		t.Fatal("late failure must not revert a succeeded intent")
	}
	if p.Status != PaymentIntentStatusSucceeded {
		t.Fatalf("unexpected status %s", p.Status)
	}
}

func TestCanceledIntentCanStillSucceed(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := PaymentIntent{Status: PaymentIntentStatusRequiresPaymentMethod}
	if !p.MarkCanceled(at, "Your card was declined.") {
		t.Fatal("expected failure to apply")
	}
	if p.MarkCanceled(at, "Your card was declined.") {
		t.Fatal("expected identical failure to be a no-op")
	}
	if !p.MarkSucceeded(at.Add(time.Minute), "card") {
		t.Fatal("expected a later success to apply")
	}
	if p.FailureReason != "" || p.Status != PaymentIntentStatusSucceeded {
		t.Fatalf("unexpected intent: %+v", p)
	}
}
