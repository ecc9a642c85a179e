package httpapi

import (
	"net/http"
	"strings"

	"resto/internal/dining"
	"resto/internal/models"

	"github.com/go-chi/chi/v5"
)

type menuModifierRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=80"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
}

type createMenuItemRequest struct {
	Name       string                `json:"name" validate:"required,max=120"`
	Category   string                `json:"category" validate:"max=80"`
	PriceCents int64                 `json:"priceCents" validate:"gte=0"`
	Available  *bool                 `json:"available"`
	Modifiers  []menuModifierRequest `json:"modifiers" validate:"max=30,dive"`
}

func (req *createMenuItemRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	for i := range req.Modifiers {
		req.Modifiers[i].ID = strings.TrimSpace(req.Modifiers[i].ID)
		req.Modifiers[i].Name = strings.TrimSpace(req.Modifiers[i].Name)
	}
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Menu(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	writeData(w, r, http.StatusOK, items)
}

func (h *Handler) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req createMenuItemRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	input := dining.MenuItemInput{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Available:  available,
	}
	for _, mod := range req.Modifiers {
		input.Modifiers = append(input.Modifiers, models.MenuModifier{
			ModifierID: mod.ID,
			Name:       mod.Name,
			PriceCents: mod.PriceCents,
		})
	}
	item, err := h.svc.CreateMenuItem(r.Context(), claims.TenantID, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, item)
}

func (h *Handler) handleMenuAvailability(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	item, err := h.svc.SetMenuItemAvailability(r.Context(), claims.TenantID, chi.URLParam(r, "id"), *req.Available)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, item)
}
