package httpapi

import (
	"net/http"

	"resto/internal/socket"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	alerts, err := h.svc.ListAlerts(r.Context(), claims.TenantID, queryBool(r, "includeAcknowledged"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Alerts(alerts))
}

func (h *Handler) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	by := claims.Name
	if by == "" {
		by = claims.UserID
	}
	alert, err := h.svc.AcknowledgeAlert(r.Context(), claims.TenantID, chi.URLParam(r, "id"), by)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Alert(alert))
}
