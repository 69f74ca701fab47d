package http

import (
	"net/http"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependency unavailable", err)
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "dependency unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
