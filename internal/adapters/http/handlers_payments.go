package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
)

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreatePaymentIntentRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, "create_payment_intent", err)
		return
	}
	if strings.TrimSpace(req.InvoiceID) == "" {
		writeMappedError(r.Context(), w, "create_payment_intent", fmt.Errorf("%w: invoice_id is required", domain.ErrInvalidInput))
		return
	}
	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		writeMappedError(r.Context(), w, "create_payment_intent", err)
		return
	}
	intent, err := h.service.CreatePaymentIntent(r.Context(), application.CreatePaymentIntentInput{
		InvoiceID:      strings.TrimSpace(req.InvoiceID),
		Amount:         amount,
		Currency:       req.Currency,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "create_payment_intent", err)
		return
	}
	writeSuccess(w, http.StatusCreated, intent)
}

func (h *Handler) listPaymentIntents(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListPaymentIntents(r.Context(), pageQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_payment_intents", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"payment_intents": out.PaymentIntents,
		"pagination":      out.Pagination,
	})
}

func (h *Handler) getPaymentIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.service.GetPaymentIntent(r.Context(), chi.URLParam(r, "payment_intent_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_payment_intent", err)
		return
	}
	writeSuccess(w, http.StatusOK, intent)
}
