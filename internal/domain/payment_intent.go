package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentIntentStatus string

const (
	PaymentIntentStatusRequiresPaymentMethod PaymentIntentStatus = "REQUIRES_PAYMENT_METHOD"
	PaymentIntentStatusSucceeded             PaymentIntentStatus = "SUCCEEDED"
	PaymentIntentStatusCanceled              PaymentIntentStatus = "CANCELED"

	FailureReasonDefault  = "Payment failed"
	FailureReasonCanceled = "Payment was canceled"
)

// PaymentIntent is the local shadow of a gateway-side charge attempt.
// GatewayIntentID is immutable and is the only key webhooks are matched on.
type PaymentIntent struct {
	PaymentIntentID    string              `json:"payment_intent_id"`
	GatewayIntentID    string              `json:"gateway_intent_id"`
	InvoiceID          string              `json:"invoice_id"`
	Amount             decimal.Decimal     `json:"amount"`
	Currency           string              `json:"currency"`
	Status             PaymentIntentStatus `json:"status"`
	ClientSecret       string              `json:"client_secret,omitempty"`
	PaymentMethod      string              `json:"payment_method"`
	PaymentMethodTypes []string            `json:"payment_method_types"`
	FailureReason      string              `json:"failure_reason,omitempty"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// MarkSucceeded applies a succeeded notification. An intent that already
// succeeded keeps its original paid timestamp and method label.
func (p *PaymentIntent) MarkSucceeded(at time.Time, paymentMethod string) bool {
	if p.Status == PaymentIntentStatusSucceeded {
		return false
	}
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}
	p.Status = PaymentIntentStatusSucceeded
	paidAt := at
	p.PaidAt = &paidAt
	p.PaymentMethod = paymentMethod
	p.FailureReason = ""
	p.UpdatedAt = at
	return true
}

// MarkCanceled applies a failed or canceled notification. SUCCEEDED is terminal,
// so a late failure for a settled intent is ignored.
func (p *PaymentIntent) MarkCanceled(at time.Time, reason string) bool {
	if p.Status == PaymentIntentStatusSucceeded {
		return false
	}
	if p.Status == PaymentIntentStatusCanceled && p.FailureReason == reason {
		return false
	}
	p.Status = PaymentIntentStatusCanceled
	p.FailureReason = reason
	p.UpdatedAt = at
	return true
}
