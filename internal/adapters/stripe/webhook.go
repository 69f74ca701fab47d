package stripe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
	eventPaymentCanceled  = "payment_intent.canceled"
)

type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookVerifier{secret: strings.TrimSpace(secret), tolerance: tolerance}
}

// Verify checks the Stripe-Signature header against the raw body and decodes
// the payment intent notifications the reconciler acts on.
func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (domain.GatewayEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is not set", domain.ErrConfiguration)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: decode webhook event: %v", domain.ErrInvalidInput, err)
	}
	return decodeEvent(event)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

type intentObject struct {
	ID               string            `json:"id"`
	Metadata         map[string]string `json:"metadata"`
	PaymentMethod    json.RawMessage   `json:"payment_method"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func decodeEvent(event stripeapi.Event) (domain.GatewayEvent, error) {
	meta := domain.EventMeta{
		EventID:    event.ID,
		Type:       string(event.Type),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	switch meta.Type {
	case eventPaymentSucceeded, eventPaymentFailed, eventPaymentCanceled:
	default:
		return domain.UnrecognizedEvent{EventMeta: meta}, nil
	}

	var obj intentObject
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", domain.ErrInvalidInput, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: decode payment intent: %v", domain.ErrInvalidInput, err)
	}

	switch meta.Type {
	case eventPaymentSucceeded:
		return domain.PaymentSucceeded{
			EventMeta:       meta,
			GatewayIntentID: obj.ID,
			InvoiceID:       strings.TrimSpace(obj.Metadata["invoice_id"]),
			PaymentMethodID: paymentMethodID(obj.PaymentMethod),
		}, nil
	case eventPaymentFailed:
		failed := domain.PaymentFailed{EventMeta: meta, GatewayIntentID: obj.ID}
		if obj.LastPaymentError != nil {
			failed.FailureMessage = obj.LastPaymentError.Message
		}
		return failed, nil
	default:
		return domain.PaymentCanceled{EventMeta: meta, GatewayIntentID: obj.ID}, nil
	}
}

// paymentMethodID accepts both the bare id and the expanded object form.
func paymentMethodID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}
