package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (domain.Invoice, error) {
	now := s.nowFn()
	if input.Date.IsZero() {
		input.Date = now
	}
	status := domain.InvoiceStatusDraft
	if strings.TrimSpace(input.Status) != "" {
		parsed, err := domain.ParseInvoiceStatus(input.Status)
		if err != nil {
			return domain.Invoice{}, err
		}
		status = parsed
	}
	if status != domain.InvoiceStatusDraft && status != domain.InvoiceStatusSent {
		return domain.Invoice{}, fmt.Errorf("%w: invoices are created as DRAFT or SENT", domain.ErrInvalidInput)
	}
	if err := domain.ValidateInvoiceFields(input.ClientID, input.Date, input.DueDate, input.ContactEmail, itemShapes(input.Items)); err != nil {
		return domain.Invoice{}, err
	}
	if _, err := s.clients.GetByID(ctx, input.ClientID); err != nil {
		return domain.Invoice{}, fmt.Errorf("resolve client %s: %w", input.ClientID, err)
	}
	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return domain.Invoice{}, err
	}

	number := strings.TrimSpace(input.Number)
	if number == "" {
		sequence, err := s.invoices.NextInvoiceSequence(ctx, now)
		if err != nil {
			return domain.Invoice{}, err
		}
		number = fmt.Sprintf("INV-%s-%06d", now.Format("20060102"), sequence)
	}

	invoice := domain.Invoice{
		InvoiceID:      uuid.NewString(),
		Number:         number,
		ClientID:       input.ClientID,
		Date:           input.Date.UTC(),
		DueDate:        input.DueDate.UTC(),
		Status:         status,
		ContactEmail:   strings.TrimSpace(input.ContactEmail),
		BillingAddress: input.BillingAddress,
		Notes:          input.Notes,
		PaymentMethod:  domain.DefaultPaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := invoice.ReplaceItems(items); err != nil {
		return domain.Invoice{}, err
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	return s.invoices.GetByID(ctx, invoiceID)
}

func (s *Service) ListInvoices(ctx context.Context, query ports.InvoiceQuery) (ListInvoicesOutput, error) {
	query.Limit, query.Offset = normalizePage(query.Limit, query.Offset)
	invoices, total, err := s.invoices.List(ctx, query)
	if err != nil {
		return ListInvoicesOutput{}, err
	}
	return ListInvoicesOutput{
		Invoices: invoices,
		Pagination: contracts.Pagination{
			Limit:  query.Limit,
			Offset: query.Offset,
			Total:  total,
		},
	}, nil
}

// UpdateInvoice merges the present fields into the invoice. A present Items
// slice replaces the whole item set and recomputes the total in the same
// store transaction.
func (s *Service) UpdateInvoice(ctx context.Context, invoiceID string, input UpdateInvoiceInput) (domain.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	var nextStatus *domain.InvoiceStatus
	if input.Status != nil {
		parsed, err := domain.ParseInvoiceStatus(*input.Status)
		if err != nil {
			return domain.Invoice{}, err
		}
		nextStatus = &parsed
	}
	if input.ClientID != nil {
		if _, err := s.clients.GetByID(ctx, *input.ClientID); err != nil {
			return domain.Invoice{}, fmt.Errorf("resolve client %s: %w", *input.ClientID, err)
		}
	}
	if input.ContactEmail != nil {
		if err := domain.ValidateContactEmail(*input.ContactEmail); err != nil {
			return domain.Invoice{}, err
		}
	}
	var replacement []domain.InvoiceItem
	if input.Items != nil {
		if err := domain.ValidateItems(itemShapes(*input.Items)); err != nil {
			return domain.Invoice{}, err
		}
		resolved, err := s.resolveItems(ctx, *input.Items)
		if err != nil {
			return domain.Invoice{}, err
		}
		replacement = resolved
	}

	now := s.nowFn()
	becamePaid := false
	updated, err := s.invoices.Update(ctx, invoiceID, ports.InvoiceUpdate{
		ReplaceItems: input.Items != nil,
		Mutate: func(inv *domain.Invoice) error {
			if input.ClientID != nil {
				inv.ClientID = *input.ClientID
			}
			if input.Number != nil && strings.TrimSpace(*input.Number) != "" {
				inv.Number = strings.TrimSpace(*input.Number)
			}
			if input.Date != nil {
				inv.Date = input.Date.UTC()
			}
			if input.DueDate != nil {
				inv.DueDate = input.DueDate.UTC()
			}
			if input.ContactEmail != nil {
				inv.ContactEmail = strings.TrimSpace(*input.ContactEmail)
			}
			if input.BillingAddress != nil {
				inv.BillingAddress = *input.BillingAddress
			}
			if input.Notes != nil {
				inv.Notes = *input.Notes
			}
			if inv.DueDate.Before(inv.Date) {
				return fmt.Errorf("%w: due_date must not precede date", domain.ErrInvalidInput)
			}
			if nextStatus != nil {
				if !inv.Status.CanTransitionTo(*nextStatus) {
					return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, inv.Status, *nextStatus)
				}
				if *nextStatus == domain.InvoiceStatusPaid {
					becamePaid = inv.MarkPaid(now)
				} else {
					inv.Status = *nextStatus
				}
			}
			if input.Items != nil {
				if err := inv.ReplaceItems(replacement); err != nil {
					return err
				}
			}
			inv.UpdatedAt = now
			return nil
		},
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if becamePaid {
		if err := s.enqueueInvoicePaid(ctx, updated, "manual", ""); err != nil {
			s.logOperationFailure(ctx, "update_invoice", err, "invoice_id", invoiceID)
		}
	}
	return updated, nil
}

// DeleteInvoice removes the invoice and its items. Payment intents that
// reference it are kept for audit.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID string) error {
	if strings.TrimSpace(invoiceID) == "" {
		return fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	return s.invoices.Delete(ctx, invoiceID)
}

func (s *Service) SendInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	now := s.nowFn()
	return s.invoices.Update(ctx, invoiceID, ports.InvoiceUpdate{
		Mutate: func(inv *domain.Invoice) error {
			if inv.Status == domain.InvoiceStatusSent {
				return nil
			}
			if !inv.Status.CanTransitionTo(domain.InvoiceStatusSent) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, inv.Status, domain.InvoiceStatusSent)
			}
			inv.Status = domain.InvoiceStatusSent
			inv.UpdatedAt = now
			return nil
		},
	})
}

// MarkInvoicePaid is the manual override path. It accepts any current status
// and does not compare against payment history.
func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput)
	}
	now := s.nowFn()
	changed := false
	invoice, err := s.invoices.Update(ctx, invoiceID, ports.InvoiceUpdate{
		Mutate: func(inv *domain.Invoice) error {
			changed = inv.MarkPaid(now)
			return nil
		},
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if changed {
		if err := s.enqueueInvoicePaid(ctx, invoice, "manual", ""); err != nil {
			s.logOperationFailure(ctx, "mark_invoice_paid", err, "invoice_id", invoiceID)
		}
	}
	return invoice, nil
}

func (s *Service) resolveItems(ctx context.Context, inputs []ItemInput) ([]domain.InvoiceItem, error) {
	items := make([]domain.InvoiceItem, 0, len(inputs))
	for _, in := range inputs {
		svc, err := s.catalog.GetByID(ctx, in.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("resolve service %s: %w", in.ServiceID, err)
		}
		price := svc.Price
		if in.Price != nil {
			price = *in.Price
		}
		description := strings.TrimSpace(in.Description)
		if description == "" {
			description = svc.Name
		}
		items = append(items, domain.InvoiceItem{
			ItemID:      uuid.NewString(),
			ServiceID:   in.ServiceID,
			Description: description,
			Quantity:    in.Quantity,
			Price:       price,
		})
	}
	return items, nil
}

func itemShapes(inputs []ItemInput) []domain.InvoiceItem {
	shapes := make([]domain.InvoiceItem, 0, len(inputs))
	for _, in := range inputs {
		shapes = append(shapes, domain.InvoiceItem{ServiceID: in.ServiceID, Quantity: in.Quantity})
	}
	return shapes
}

// MarkOverdueInvoices moves every SENT invoice due before asOf to OVERDUE. It is
// driven by an external scheduler; the lifecycle itself is never time-driven.
func (s *Service) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (MarkOverdueResult, error) {
	var ids []string
	query := ports.InvoiceQuery{
		Status:    domain.InvoiceStatusSent,
		DueBefore: &asOf,
		Limit:     maxPageLimit,
	}
	for {
		page, total, err := s.invoices.List(ctx, query)
		if err != nil {
			return MarkOverdueResult{}, err
		}
		for _, inv := range page {
			ids = append(ids, inv.InvoiceID)
		}
		query.Offset += len(page)
		if len(page) == 0 || query.Offset >= total {
			break
		}
	}

	result := MarkOverdueResult{Scanned: len(ids)}
	overdue := string(domain.InvoiceStatusOverdue)
	for _, id := range ids {
		if _, err := s.UpdateInvoice(ctx, id, UpdateInvoiceInput{Status: &overdue}); err != nil {
			// Paid between the scan and the update; nothing to do.
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("mark invoice %s overdue: %w", id, err)
		}
		result.Marked++
	}
	s.logger().InfoContext(ctx, "overdue sweep completed",
		"operation", "mark_overdue_invoices",
		"outcome", "success",
		"as_of", asOf.Format(time.RFC3339),
		"scanned", result.Scanned,
		"marked", result.Marked,
		"skipped", result.Skipped,
	)
	return result, nil
}
