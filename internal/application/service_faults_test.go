package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

var errStoreDown = errors.New("store unavailable")

// faultSwitch is shared by the wrappers below; while on, the wrapped call fails.
type faultSwitch struct {
	mu sync.Mutex
	on bool
}

func (s *faultSwitch) set(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
}

func (s *faultSwitch) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on {
		return errStoreDown
	}
	return nil
}

type faultyIntents struct {
	ports.PaymentIntentRepository
	fault *faultSwitch
}

func (r faultyIntents) UpdateByGatewayID(ctx context.Context, gatewayIntentID string, mutate func(*domain.PaymentIntent) error) (domain.PaymentIntent, error) {
	if err := r.fault.err(); err != nil {
		return domain.PaymentIntent{}, err
	}
	return r.PaymentIntentRepository.UpdateByGatewayID(ctx, gatewayIntentID, mutate)
}

type faultyDedup struct {
	ports.EventDedupRepository
	fault *faultSwitch
}

func (r faultyDedup) IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error) {
	if err := r.fault.err(); err != nil {
		return false, err
	}
	return r.EventDedupRepository.IsDuplicate(ctx, eventID, now)
}

func TestStoreFailureDuringSettlementIsRetryable(t *testing.T) {
	t.Parallel()

	fault := &faultSwitch{}
	f := newFixtureWithDeps(t, application.Config{}, nil, func(deps *application.Dependencies) {
		deps.PaymentIntents = faultyIntents{PaymentIntentRepository: deps.PaymentIntents, fault: fault}
	})
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	payload := intentEvent("evt_store_down", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, "")

	fault.set(true)
	outcome, err := f.svc.HandleGatewayEvent(context.Background(), payload, sign(payload))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the store error to surface, got outcome %q err %v", outcome, err)
	}
	if errors.Is(err, domain.ErrReconciliationMiss) || errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("store failure must not look like a miss or a bad signature: %v", err)
	}
	dup, err := f.repos.EventDedup.IsDuplicate(context.Background(), "evt_store_down", f.now())
	if err != nil || dup {
		t.Fatalf("failed delivery must not be marked processed (dup=%v, err=%v)", dup, err)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusSent {
		t.Fatalf("invoice changed by a failed delivery: %s", got.Status)
	}

	fault.set(false)
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected redelivery to apply, got %s", outcome)
	}
	if got := mustInvoice(t, f, invoice.InvoiceID); got.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected PAID after redelivery, got %s", got.Status)
	}
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeDuplicate {
		t.Fatalf("expected duplicate once applied, got %s", outcome)
	}
}

func TestDedupOutageStillAppliesEvents(t *testing.T) {
	t.Parallel()

	fault := &faultSwitch{on: true}
	f := newFixtureWithDeps(t, application.Config{}, nil, func(deps *application.Dependencies) {
		deps.EventDedup = faultyDedup{EventDedupRepository: deps.EventDedup, fault: fault}
	})
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")
	payload := intentEvent("evt_no_dedup", "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, "")

	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected applied without dedup, got %s", outcome)
	}
	first := mustInvoice(t, f, invoice.InvoiceID)
	if first.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected PAID, got %s", first.Status)
	}

	f.advance(time.Hour)
	if outcome := deliver(t, f, payload); outcome != application.ReconcileOutcomeApplied {
		t.Fatalf("expected redelivery to re-apply, got %s", outcome)
	}
	again := mustInvoice(t, f, invoice.InvoiceID)
	if !again.PaidAt.Equal(*first.PaidAt) {
		t.Fatalf("redelivery moved PaidAt from %s to %s", first.PaidAt, again.PaidAt)
	}
	if n := f.outboxCount(contracts.EventTypeInvoicePaid); n != 1 {
		t.Fatalf("expected one invoice.paid event, got %d", n)
	}
}

func TestConcurrentSettlementWritersSerialize(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	invoice := scenarioInvoice(t, f, seedCatalog(t, f), string(domain.InvoiceStatusSent))
	intent := createIntent(t, f, invoice.InvoiceID, "130")

	const writers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.advance(time.Second)
			if i%2 == 0 {
				if _, err := f.svc.MarkInvoicePaid(context.Background(), invoice.InvoiceID); err != nil {
					errCh <- fmt.Errorf("mark paid %d: %w", i, err)
				}
				return
			}
			payload := intentEvent(fmt.Sprintf("evt_concurrent_%d", i), "payment_intent.succeeded", intent.GatewayIntentID, invoice.InvoiceID, "")
			if _, err := f.svc.HandleGatewayEvent(context.Background(), payload, sign(payload)); err != nil {
				errCh <- fmt.Errorf("webhook %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent writer failed: %v", err)
	}

	got := mustInvoice(t, f, invoice.InvoiceID)
	if got.Status != domain.InvoiceStatusPaid || got.PaidAt == nil {
		t.Fatalf("expected PAID with a timestamp, got %+v", got)
	}
	settled := mustIntent(t, f, intent.PaymentIntentID)
	if settled.Status != domain.PaymentIntentStatusSucceeded || settled.PaidAt == nil {
		t.Fatalf("expected SUCCEEDED with a timestamp, got %+v", settled)
	}
	if n := f.outboxCount(contracts.EventTypeInvoicePaid); n != 1 {
		t.Fatalf("expected one invoice.paid event, got %d", n)
	}
	if n := f.outboxCount(contracts.EventTypePaymentIntentSucceeded); n != 1 {
		t.Fatalf("expected one payment_intent.succeeded event, got %d", n)
	}

	// The single event must carry the PaidAt the ledger kept, so no later writer overwrote it.
	for _, rec := range f.repos.Outbox.Records() {
		if rec.EventType != contracts.EventTypeInvoicePaid {
			continue
		}
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal(rec.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		var paid contracts.InvoicePaidPayload
		if err := json.Unmarshal(envelope.Data, &paid); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if paid.PaidAt != got.PaidAt.Format(time.RFC3339) {
			t.Fatalf("event paid_at %s differs from stored %s", paid.PaidAt, got.PaidAt.Format(time.RFC3339))
		}
	}
}
