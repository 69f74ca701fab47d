package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
)

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req contracts.ClientRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, "create_client", err)
		return
	}
	client, err := h.service.CreateClient(r.Context(), clientInput(req))
	if err != nil {
		writeMappedError(r.Context(), w, "create_client", err)
		return
	}
	writeSuccess(w, http.StatusCreated, client)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListClients(r.Context(), pageQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_clients", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"clients": out.Clients, "pagination": out.Pagination})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClient(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_client", err)
		return
	}
	writeSuccess(w, http.StatusOK, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var req contracts.ClientRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, "update_client", err)
		return
	}
	client, err := h.service.UpdateClient(r.Context(), chi.URLParam(r, "client_id"), clientInput(req))
	if err != nil {
		writeMappedError(r.Context(), w, "update_client", err)
		return
	}
	writeSuccess(w, http.StatusOK, client)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteClient(r.Context(), chi.URLParam(r, "client_id")); err != nil {
		writeMappedError(r.Context(), w, "delete_client", err)
		return
	}
	writeMessage(w, http.StatusOK, "client deleted")
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeServiceInput(w, r, "create_service")
	if !ok {
		return
	}
	svc, err := h.service.CreateCatalogService(r.Context(), input)
	if err != nil {
		writeMappedError(r.Context(), w, "create_service", err)
		return
	}
	writeSuccess(w, http.StatusCreated, svc)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListCatalogServices(r.Context(), pageQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_services", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"services": out.Services, "pagination": out.Pagination})
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.service.GetCatalogService(r.Context(), chi.URLParam(r, "service_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_service", err)
		return
	}
	writeSuccess(w, http.StatusOK, svc)
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeServiceInput(w, r, "update_service")
	if !ok {
		return
	}
	svc, err := h.service.UpdateCatalogService(r.Context(), chi.URLParam(r, "service_id"), input)
	if err != nil {
		writeMappedError(r.Context(), w, "update_service", err)
		return
	}
	writeSuccess(w, http.StatusOK, svc)
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCatalogService(r.Context(), chi.URLParam(r, "service_id")); err != nil {
		writeMappedError(r.Context(), w, "delete_service", err)
		return
	}
	writeMessage(w, http.StatusOK, "service deleted")
}

func (h *Handler) decodeServiceInput(w http.ResponseWriter, r *http.Request, operation string) (application.ServiceInput, bool) {
	var req contracts.ServiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return application.ServiceInput{}, false
	}
	price, err := parseOptionalMoney("price", req.Price)
	if err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return application.ServiceInput{}, false
	}
	return application.ServiceInput{Name: req.Name, Description: req.Description, Price: price}, true
}

func clientInput(req contracts.ClientRequest) application.ClientInput {
	return application.ClientInput{Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address}
}
