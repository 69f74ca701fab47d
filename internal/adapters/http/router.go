package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

// ReadinessCheck reports whether backing stores are reachable.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	service *application.Service
	tokens  ports.TokenVerifier
	ready   ReadinessCheck
}

// NewHandler binds the HTTP adapter to the application service. A nil token
// verifier makes every /v1 route answer with a configuration error.
func NewHandler(service *application.Service, tokens ports.TokenVerifier, ready ReadinessCheck) *Handler {
	return &Handler{service: service, tokens: tokens, ready: ready}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	// Webhooks authenticate by signature, not bearer token.
	r.Post("/webhooks/stripe", handler.stripeWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)

		r.Post("/clients", handler.createClient)
		r.Get("/clients", handler.listClients)
		r.Get("/clients/{client_id}", handler.getClient)
		r.Patch("/clients/{client_id}", handler.updateClient)
		r.Delete("/clients/{client_id}", handler.deleteClient)

		r.Post("/services", handler.createService)
		r.Get("/services", handler.listServices)
		r.Get("/services/{service_id}", handler.getService)
		r.Patch("/services/{service_id}", handler.updateService)
		r.Delete("/services/{service_id}", handler.deleteService)

		r.Post("/invoices", handler.createInvoice)
		r.Get("/invoices", handler.listInvoices)
		r.Get("/invoices/{invoice_id}", handler.getInvoice)
		r.Patch("/invoices/{invoice_id}", handler.updateInvoice)
		r.Delete("/invoices/{invoice_id}", handler.deleteInvoice)
		r.Post("/invoices/{invoice_id}/send", handler.sendInvoice)
		r.Post("/invoices/{invoice_id}/mark-paid", handler.markInvoicePaid)
		r.Get("/invoices/{invoice_id}/payment-intents", handler.listInvoicePaymentIntents)

		r.Post("/payment-intents", handler.createPaymentIntent)
		r.Get("/payment-intents", handler.listPaymentIntents)
		r.Get("/payment-intents/{payment_intent_id}", handler.getPaymentIntent)
	})
	return r
}
