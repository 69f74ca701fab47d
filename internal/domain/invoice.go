package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"

	DefaultPaymentMethod = "card"
)

func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	switch s := InvoiceStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInput, raw)
	}
}

// CanTransitionTo reports whether a lifecycle update may move an invoice from s to next.
// Reconciliation and manual mark-paid bypass this table.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case InvoiceStatusDraft:
		return next == InvoiceStatusSent
	case InvoiceStatusSent:
		return next == InvoiceStatusPaid || next == InvoiceStatusOverdue
	default:
		return false
	}
}

type InvoiceItem struct {
	ItemID      string          `json:"item_id"`
	InvoiceID   string          `json:"invoice_id"`
	ServiceID   string          `json:"service_id"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type Invoice struct {
	InvoiceID      string          `json:"invoice_id"`
	Number         string          `json:"number"`
	ClientID       string          `json:"client_id"`
	Date           time.Time       `json:"date"`
	DueDate        time.Time       `json:"due_date"`
	Status         InvoiceStatus   `json:"status"`
	Total          decimal.Decimal `json:"total"`
	ContactEmail   string          `json:"contact_email,omitempty"`
	BillingAddress string          `json:"billing_address,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	Items          []InvoiceItem   `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReplaceItems swaps the whole item set and recomputes Total from it.
func (inv *Invoice) ReplaceItems(items []InvoiceItem) error {
	computed, total, err := ComputeTotal(items)
	if err != nil {
		return err
	}
	for i := range computed {
		computed[i].InvoiceID = inv.InvoiceID
	}
	inv.Items = computed
	inv.Total = total
	return nil
}

// MarkPaid moves the invoice to PAID. It reports false when the invoice was
// already PAID, in which case nothing changes.
func (inv *Invoice) MarkPaid(at time.Time) bool {
	if inv.Status == InvoiceStatusPaid {
		return false
	}
	inv.Status = InvoiceStatusPaid
	paidAt := at
	inv.PaidAt = &paidAt
	inv.UpdatedAt = at
	return true
}

func ValidateInvoiceFields(clientID string, date, dueDate time.Time, contactEmail string, items []InvoiceItem) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if dueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", ErrInvalidInput)
	}
	if dueDate.Before(date) {
		return fmt.Errorf("%w: due_date must not precede date", ErrInvalidInput)
	}
	if err := ValidateContactEmail(contactEmail); err != nil {
		return err
	}
	return ValidateItems(items)
}

func ValidateContactEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: contact_email is malformed", ErrInvalidInput)
	}
	return nil
}

func ValidateItems(items []InvoiceItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ServiceID) == "" {
			return fmt.Errorf("%w: item %d service_id is required", ErrInvalidInput, i)
		}
	}
	return nil
}
