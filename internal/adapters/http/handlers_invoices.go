package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, "create_invoice", err)
		return
	}
	items, err := toItemInputs(req.Items)
	if err != nil {
		writeMappedError(r.Context(), w, "create_invoice", err)
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), application.CreateInvoiceInput{
		ClientID:       req.ClientID,
		Number:         req.Number,
		Date:           req.Date,
		DueDate:        req.DueDate,
		Status:         req.Status,
		ContactEmail:   req.ContactEmail,
		BillingAddress: req.BillingAddress,
		Notes:          req.Notes,
		Items:          items,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "create_invoice", err)
		return
	}
	writeSuccess(w, http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageQuery(r)
	query := ports.InvoiceQuery{
		ClientID: strings.TrimSpace(q.Get("client_id")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseInvoiceStatus(raw)
		if err != nil {
			writeMappedError(r.Context(), w, "list_invoices", err)
			return
		}
		query.Status = status
	}
	if raw := q.Get("due_before"); raw != "" {
		dueBefore, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeMappedError(r.Context(), w, "list_invoices", fmt.Errorf("%w: due_before must be RFC3339", domain.ErrInvalidInput))
			return
		}
		query.DueBefore = &dueBefore
	}
	out, err := h.service.ListInvoices(r.Context(), query)
	if err != nil {
		writeMappedError(r.Context(), w, "list_invoices", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"invoices":   out.Invoices,
		"pagination": out.Pagination,
	})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "invoice_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_invoice", err)
		return
	}
	writeSuccess(w, http.StatusOK, invoice)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var req contracts.UpdateInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, "update_invoice", err)
		return
	}
	input := application.UpdateInvoiceInput{
		ClientID:       req.ClientID,
		Number:         req.Number,
		Date:           req.Date,
		DueDate:        req.DueDate,
		Status:         req.Status,
		ContactEmail:   req.ContactEmail,
		BillingAddress: req.BillingAddress,
		Notes:          req.Notes,
	}
	if req.Items != nil {
		items, err := toItemInputs(*req.Items)
		if err != nil {
			writeMappedError(r.Context(), w, "update_invoice", err)
			return
		}
		input.Items = &items
	}
	invoice, err := h.service.UpdateInvoice(r.Context(), chi.URLParam(r, "invoice_id"), input)
	if err != nil {
		writeMappedError(r.Context(), w, "update_invoice", err)
		return
	}
	writeSuccess(w, http.StatusOK, invoice)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "invoice_id")); err != nil {
		writeMappedError(r.Context(), w, "delete_invoice", err)
		return
	}
	writeMessage(w, http.StatusOK, "invoice deleted")
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.SendInvoice(r.Context(), chi.URLParam(r, "invoice_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "send_invoice", err)
		return
	}
	writeSuccess(w, http.StatusOK, invoice)
}

func (h *Handler) markInvoicePaid(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoice_id")
	invoice, err := h.service.MarkInvoicePaid(r.Context(), invoiceID)
	if err != nil {
		writeMappedError(r.Context(), w, "mark_invoice_paid", err)
		return
	}
	actor := ""
	if claims, ok := claimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	httpLogger().InfoContext(r.Context(), "invoice marked paid manually",
		"operation", "mark_invoice_paid",
		"outcome", "success",
		"invoice_id", invoiceID,
		"actor", actor,
		"request_id", requestIDFromContext(r.Context()),
	)
	writeSuccess(w, http.StatusOK, invoice)
}

func (h *Handler) listInvoicePaymentIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := h.service.ListPaymentIntentsByInvoice(r.Context(), chi.URLParam(r, "invoice_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "list_invoice_payment_intents", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"payment_intents": intents})
}

func toItemInputs(items []contracts.InvoiceItemDTO) ([]application.ItemInput, error) {
	out := make([]application.ItemInput, 0, len(items))
	for i, it := range items {
		price, err := parseOptionalMoney(fmt.Sprintf("items[%d].price", i), &it.Price)
		if err != nil {
			return nil, err
		}
		out = append(out, application.ItemInput{
			ServiceID:   strings.TrimSpace(it.ServiceID),
			Description: it.Description,
			Quantity:    it.Quantity,
			Price:       price,
		})
	}
	return out, nil
}
