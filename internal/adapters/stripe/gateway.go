// Package stripe adapts the Stripe API to the payment gateway ports.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type GatewayConfig struct {
	SecretKey string
	// APIURL overrides the Stripe API base, used against stripe-mock and in tests.
	APIURL     string
	HTTPClient *http.Client
}

type Gateway struct {
	client *stripeapi.Client
	logger *slog.Logger
}

// NewGateway builds a gateway even without a secret key; calls then fail with
// domain.ErrConfiguration so the process can still serve webhooks and reads.
func NewGateway(cfg GatewayConfig) *Gateway {
	g := &Gateway{
		logger: slog.Default().With("module", "stripe", "layer", "adapter"),
	}
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return g
	}
	var opts []stripeapi.ClientOption
	if cfg.APIURL != "" || cfg.HTTPClient != nil {
		backendCfg := &stripeapi.BackendConfig{MaxNetworkRetries: stripeapi.Int64(0)}
		if cfg.APIURL != "" {
			backendCfg.URL = stripeapi.String(strings.TrimRight(cfg.APIURL, "/"))
		}
		if cfg.HTTPClient != nil {
			backendCfg.HTTPClient = cfg.HTTPClient
		}
		opts = append(opts, stripeapi.WithBackends(&stripeapi.Backends{
			API: stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
		}))
	}
	g.client = stripeapi.NewClient(key, opts...)
	return g
}

func (g *Gateway) Ready() error {
	if g.client == nil {
		return fmt.Errorf("%w: stripe secret key is not set", domain.ErrConfiguration)
	}
	return nil
}

func (g *Gateway) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (ports.CreatedIntent, error) {
	if err := g.Ready(); err != nil {
		return ports.CreatedIntent{}, err
	}
	params := &stripeapi.PaymentIntentCreateParams{
		Amount:   stripeapi.Int64(req.AmountMinor),
		Currency: stripeapi.String(req.Currency),
		Metadata: req.Metadata,
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripeapi.String(req.IdempotencyKey)
	}
	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		g.logger.WarnContext(ctx, "stripe create payment intent failed",
			"operation", "create_payment_intent",
			"outcome", "failure",
			"error", err,
		)
		return ports.CreatedIntent{}, gatewayError("create payment intent", err)
	}
	return ports.CreatedIntent{
		GatewayIntentID:    intent.ID,
		ClientSecret:       intent.ClientSecret,
		PaymentMethodTypes: intent.PaymentMethodTypes,
	}, nil
}

// RetrievePaymentMethod returns the method type label, e.g. "card".
func (g *Gateway) RetrievePaymentMethod(ctx context.Context, paymentMethodID string) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}
	pm, err := g.client.V1PaymentMethods.Retrieve(ctx, paymentMethodID, nil)
	if err != nil {
		return "", gatewayError("retrieve payment method", err)
	}
	return string(pm.Type), nil
}

func gatewayError(op string, err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return fmt.Errorf("%w: %s: %s", domain.ErrGateway, op, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrGateway, op, err)
}
