package httpapi

import (
	"net/http"
	"strings"

	"resto/internal/dining"
	"resto/internal/models"
	"resto/internal/socket"

	"github.com/go-chi/chi/v5"
)

type qrAlertRequest struct {
	Type string `json:"type" validate:"required,oneof=call_waiter wants_cash_payment"`
}

func (req *qrAlertRequest) normalize() {
	req.Type = strings.TrimSpace(req.Type)
}

type qrTable struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Number   string `json:"number"`
	Status   string `json:"status"`
}

type qrResponse struct {
	Table    qrTable           `json:"table"`
	Menu     []models.MenuItem `json:"menu"`
	Currency string            `json:"currency"`
	Tips     bool              `json:"tipsEnabled"`
	Branding models.Branding   `json:"branding"`
}

func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.QR(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	menu := view.Menu
	if menu == nil {
		menu = []models.MenuItem{}
	}
	writeData(w, r, http.StatusOK, qrResponse{
		Table: qrTable{
			ID:       view.Table.TableID,
			TenantID: view.Table.TenantID,
			Number:   view.Table.Number,
			Status:   view.Table.Status,
		},
		Menu:     menu,
		Currency: view.Settings.Currency,
		Tips:     view.Settings.TipsEnabled,
		Branding: view.Settings.Branding,
	})
}

func (h *Handler) handleQROrder(w http.ResponseWriter, r *http.Request) {
	var req qrOrderRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	input := dining.OrderInput{TipCents: req.TipCents}
	for _, item := range req.Items {
		input.Items = append(input.Items, dining.OrderItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Modifiers:  item.Modifiers,
			Notes:      item.Notes,
		})
	}
	order, err := h.svc.QROrder(r.Context(), chi.URLParam(r, "code"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, socket.Order(order))
}

func (h *Handler) handleQRAlert(w http.ResponseWriter, r *http.Request) {
	var req qrAlertRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	alert, err := h.svc.QRAlert(r.Context(), chi.URLParam(r, "code"), req.Type)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, socket.Alert(alert))
}
