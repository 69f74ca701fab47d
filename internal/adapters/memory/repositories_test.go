package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

func TestPaymentIntentGatewayIDIsUnique(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	ctx := context.Background()
	first := domain.PaymentIntent{PaymentIntentID: "pi-local-1", GatewayIntentID: "pi_123", InvoiceID: "inv-1"}
	if err := repos.PaymentIntents.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second := domain.PaymentIntent{PaymentIntentID: "pi-local-2", GatewayIntentID: "pi_123", InvoiceID: "inv-1"}
	if err := repos.PaymentIntents.Create(ctx, second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, err := repos.PaymentIntents.GetByGatewayID(ctx, "pi_123")
	if err != nil {
		t.Fatalf("get by gateway id: %v", err)
	}
	if got.PaymentIntentID != "pi-local-1" {
		t.Fatalf("unexpected intent: %+v", got)
	}
}

func TestInvoiceUpdateDiscardsFailedMutation(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	ctx := context.Background()
	invoice := domain.Invoice{
		InvoiceID: "inv-1",
		ClientID:  "client-1",
		Status:    domain.InvoiceStatusDraft,
		Total:     decimal.RequireFromString("10"),
		Items: []domain.InvoiceItem{
			{ItemID: "item-1", InvoiceID: "inv-1", ServiceID: "svc-1", Quantity: 1, Price: decimal.RequireFromString("10"), Total: decimal.RequireFromString("10")},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := repos.Invoices.Create(ctx, invoice); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	_, err := repos.Invoices.Update(ctx, "inv-1", ports.InvoiceUpdate{
		ReplaceItems: true,
		Mutate: func(inv *domain.Invoice) error {
			inv.Items = nil
			inv.Status = domain.InvoiceStatusSent
			return domain.ErrInvalidInput
		},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	stored, err := repos.Invoices.GetByID(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if stored.Status != domain.InvoiceStatusDraft || len(stored.Items) != 1 {
		t.Fatalf("invoice changed after failed mutation: %+v", stored)
	}
}

func TestServiceDeleteRefusedWhileReferenced(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	ctx := context.Background()
	if err := repos.Services.Create(ctx, domain.Service{ServiceID: "svc-1", Name: "Design"}); err != nil {
		t.Fatalf("create service: %v", err)
	}
	if err := repos.Invoices.Create(ctx, domain.Invoice{
		InvoiceID: "inv-1",
		Items:     []domain.InvoiceItem{{ItemID: "item-1", ServiceID: "svc-1", Quantity: 1}},
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if err := repos.Services.Delete(ctx, "svc-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := repos.Invoices.Delete(ctx, "inv-1"); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}
	if err := repos.Services.Delete(ctx, "svc-1"); err != nil {
		t.Fatalf("delete service after invoice removal: %v", err)
	}
}

func TestOutboxEnqueueIgnoresDuplicateIDs(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	ctx := context.Background()
	event := ports.OutboxEvent{EventType: "invoice.paid", PartitionKey: "inv-1", Payload: []byte(`{}`), OccurredAt: time.Now().UTC()}
	if err := repos.Outbox.Enqueue(ctx, event); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repos.Outbox.Enqueue(ctx, event); err != nil {
		t.Fatalf("enqueue replay: %v", err)
	}
	claimed, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-1", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected one claimed record, got %d", len(claimed))
	}
	again, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-2", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("record claimed twice")
	}
}

func TestEventDedupExpires(t *testing.T) {
	t.Parallel()

	repos := memory.NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := repos.EventDedup.MarkProcessed(ctx, "evt_1", "payment_intent.succeeded", now.Add(time.Hour)); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	dup, err := repos.EventDedup.IsDuplicate(ctx, "evt_1", now)
	if err != nil || !dup {
		t.Fatalf("expected duplicate, got dup=%v err=%v", dup, err)
	}
	dup, err = repos.EventDedup.IsDuplicate(ctx, "evt_1", now.Add(2*time.Hour))
	if err != nil || dup {
		t.Fatalf("expected expiry, got dup=%v err=%v", dup, err)
	}
}
