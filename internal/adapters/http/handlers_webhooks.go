package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

const maxWebhookBodyBytes = 1 << 20

// stripeWebhook hands the exact request bytes to the reconciler; the signature
// covers the raw body so it must not be re-encoded.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logHTTPOperationError(r.Context(), "stripe_webhook", http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "webhook body too large", err)
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "webhook body too large")
			return
		}
		writeMappedError(r.Context(), w, "stripe_webhook", fmt.Errorf("%w: read body: %v", domain.ErrInvalidInput, err))
		return
	}

	outcome, err := h.service.HandleGatewayEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeMappedError(r.Context(), w, "stripe_webhook", err)
		return
	}
	w.Header().Set("X-Reconcile-Outcome", string(outcome))
	writeJSON(w, http.StatusOK, contracts.WebhookAck{Received: true})
}
