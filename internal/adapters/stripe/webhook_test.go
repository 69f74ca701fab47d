package stripe

import (
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

func signedHeader(t *testing.T, payload []byte) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestVerifyDecodesSucceededEvent(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"created": 1760000000,
		"data": {"object": {
			"id": "pi_123",
			"object": "payment_intent",
			"metadata": {"invoice_id": "inv-1"},
			"payment_method": "pm_123"
		}}
	}`)
	v := NewWebhookVerifier(testWebhookSecret, 5*time.Minute)
	event, err := v.Verify(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	succeeded, ok := event.(domain.PaymentSucceeded)
	if !ok {
		t.Fatalf("unexpected event type %T", event)
	}
	if succeeded.EventID != "evt_1" || succeeded.GatewayIntentID != "pi_123" || succeeded.InvoiceID != "inv-1" || succeeded.PaymentMethodID != "pm_123" {
		t.Fatalf("unexpected decoded event: %+v", succeeded)
	}
}

func TestVerifyDecodesFailureMessageAndExpandedMethod(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"id": "evt_2",
		"object": "event",
		"type": "payment_intent.payment_failed",
		"created": 1760000000,
		"data": {"object": {
			"id": "pi_456",
			"object": "payment_intent",
			"payment_method": {"id": "pm_9", "type": "card"},
			"last_payment_error": {"message": "Your card was declined."}
		}}
	}`)
	v := NewWebhookVerifier(testWebhookSecret, 0)
	event, err := v.Verify(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	failed, ok := event.(domain.PaymentFailed)
	if !ok {
		t.Fatalf("unexpected event type %T", event)
	}
	if failed.GatewayIntentID != "pi_456" || failed.FailureMessage != "Your card was declined." {
		t.Fatalf("unexpected decoded event: %+v", failed)
	}
	if got := paymentMethodID([]byte(`{"id":"pm_9","type":"card"}`)); got != "pm_9" {
		t.Fatalf("expanded payment method id: got %q", got)
	}
}

func TestVerifyReturnsUnrecognizedForOtherTypes(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"evt_3","object":"event","type":"customer.created","created":1760000000,"data":{"object":{"id":"cus_1"}}}`)
	v := NewWebhookVerifier(testWebhookSecret, 0)
	event, err := v.Verify(payload, signedHeader(t, payload))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, ok := event.(domain.UnrecognizedEvent); !ok {
		t.Fatalf("unexpected event type %T", event)
	}
	if event.Meta().Type != "customer.created" {
		t.Fatalf("unexpected meta: %+v", event.Meta())
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"evt_4","object":"event","type":"payment_intent.canceled","created":1760000000,"data":{"object":{"id":"pi_1"}}}`)
	header := signedHeader(t, payload)
	tampered := []byte(`{"id":"evt_4","object":"event","type":"payment_intent.canceled","created":1760000000,"data":{"object":{"id":"pi_2"}}}`)

	v := NewWebhookVerifier(testWebhookSecret, 0)
	if _, err := v.Verify(tampered, header); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if _, err := v.Verify(payload, ""); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature error for missing header, got %v", err)
	}
}

func TestVerifyWithoutSecretIsConfigurationError(t *testing.T) {
	t.Parallel()

	v := NewWebhookVerifier("  ", 0)
	if _, err := v.Verify([]byte(`{}`), "t=1,v1=abc"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
