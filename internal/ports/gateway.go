package ports

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

type CreateIntentRequest struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type CreatedIntent struct {
	GatewayIntentID    string
	ClientSecret       string
	PaymentMethodTypes []string
}

// PaymentGateway is the outbound charge-intent API. Ready reports
// domain.ErrConfiguration when the gateway credential is missing.
type PaymentGateway interface {
	Ready() error
	CreateIntent(ctx context.Context, req CreateIntentRequest) (CreatedIntent, error)
	RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (string, error)
}

// WebhookVerifier authenticates a raw webhook body against its signature header
// and decodes it into a domain.GatewayEvent variant.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (domain.GatewayEvent, error)
}
