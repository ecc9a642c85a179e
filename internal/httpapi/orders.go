package httpapi

import (
	"net/http"
	"strings"

	"resto/internal/dining"
	"resto/internal/models"
	"resto/internal/socket"

	"github.com/go-chi/chi/v5"
)

type orderItemRequest struct {
	MenuItemID    string   `json:"menuItemId" validate:"required"`
	Quantity      int      `json:"quantity" validate:"min=1,max=99"`
	Modifiers     []string `json:"modifiers" validate:"max=20"`
	Notes         string   `json:"notes" validate:"max=280"`
	DiscountCents int64    `json:"discountCents" validate:"gte=0"`
}

type createOrderRequest struct {
	TableID       string             `json:"tableId" validate:"required"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	TipCents      int64              `json:"tipCents" validate:"gte=0"`
	DiscountCents int64              `json:"discountCents" validate:"gte=0"`
}

func (req *createOrderRequest) normalize() {
	req.TableID = strings.TrimSpace(req.TableID)
	normalizeItems(req.Items)
}

// qrOrderRequest takes the table from the scanned code. Discounts are a
// staff decision and are not accepted here.
type qrOrderRequest struct {
	Items    []qrOrderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	TipCents int64                `json:"tipCents" validate:"gte=0"`
}

type qrOrderItemRequest struct {
	MenuItemID string   `json:"menuItemId" validate:"required"`
	Quantity   int      `json:"quantity" validate:"min=1,max=99"`
	Modifiers  []string `json:"modifiers" validate:"max=20"`
	Notes      string   `json:"notes" validate:"max=280"`
}

func (req *qrOrderRequest) normalize() {
	for i := range req.Items {
		req.Items[i].MenuItemID = strings.TrimSpace(req.Items[i].MenuItemID)
		req.Items[i].Notes = strings.TrimSpace(req.Items[i].Notes)
	}
}

func normalizeItems(items []orderItemRequest) {
	for i := range items {
		items[i].MenuItemID = strings.TrimSpace(items[i].MenuItemID)
		items[i].Notes = strings.TrimSpace(items[i].Notes)
		for j := range items[i].Modifiers {
			items[i].Modifiers[j] = strings.TrimSpace(items[i].Modifiers[j])
		}
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderPaymentRequest struct {
	Status    string `json:"status" validate:"required"`
	Reference string `json:"reference" validate:"max=128"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	input := dining.OrderInput{
		TableID:       req.TableID,
		TipCents:      req.TipCents,
		DiscountCents: req.DiscountCents,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, dining.OrderItemInput{
			MenuItemID:    item.MenuItemID,
			Quantity:      item.Quantity,
			Modifiers:     item.Modifiers,
			Notes:         item.Notes,
			DiscountCents: item.DiscountCents,
		})
	}
	order, err := h.svc.CreateOrder(r.Context(), claims.TenantID, input, models.SourceStaff)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, socket.Order(order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	orders, err := h.svc.ListOrders(r.Context(), claims.TenantID, models.OrderFilter{
		TableID:       strings.TrimSpace(query.Get("tableId")),
		Status:        strings.TrimSpace(query.Get("status")),
		PaymentStatus: strings.TrimSpace(query.Get("paymentStatus")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Orders(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Order(order))
}

func (h *Handler) handleOrdersSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.OrdersSummary(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Summary(summary))
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req orderStatusRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	order, err := h.svc.UpdateOrderStatus(r.Context(), claims.TenantID, chi.URLParam(r, "id"), strings.TrimSpace(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Order(order))
}

func (h *Handler) handleOrderPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req orderPaymentRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	order, err := h.svc.UpdatePaymentStatus(r.Context(), claims.TenantID, chi.URLParam(r, "id"),
		strings.TrimSpace(req.Status), strings.TrimSpace(req.Reference))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Order(order))
}
