package httpapi

import (
	"net/http"
	"strings"

	"resto/internal/dining"
	"resto/internal/models"
	"resto/internal/socket"

	"github.com/go-chi/chi/v5"
)

type createTableRequest struct {
	ID     string `json:"id" validate:"omitempty,max=64"`
	Number string `json:"number" validate:"required,max=32"`
	ZoneID string `json:"zoneId" validate:"omitempty,max=64"`
	Seats  int    `json:"seats" validate:"gte=0,lte=100"`
	QRCode string `json:"qrCode" validate:"omitempty,max=128"`
}

func (req *createTableRequest) normalize() {
	req.ID = strings.TrimSpace(req.ID)
	req.Number = strings.TrimSpace(req.Number)
	req.ZoneID = strings.TrimSpace(req.ZoneID)
	req.QRCode = strings.TrimSpace(req.QRCode)
}

type tableStateRequest struct {
	Status string        `json:"status" validate:"required"`
	Reason string        `json:"reason" validate:"max=280"`
	Actor  *models.Actor `json:"actor"`
	Covers int           `json:"covers" validate:"gte=0,lte=500"`
}

func (req *tableStateRequest) normalize() {
	req.Status = strings.TrimSpace(req.Status)
	req.Reason = strings.TrimSpace(req.Reason)
}

type layoutRequest struct {
	Layout struct {
		Zones []models.LayoutZone `json:"zones"`
		Nodes []models.LayoutNode `json:"nodes"`
	} `json:"layout"`
	Tables []tableSeatsRequest `json:"tables" validate:"dive"`
}

type tableSeatsRequest struct {
	ID     string `json:"id" validate:"required"`
	Seats  int    `json:"seats" validate:"gte=0,lte=100"`
	ZoneID string `json:"zoneId"`
}

type createZoneRequest struct {
	Name  string `json:"name" validate:"required,max=80"`
	Color string `json:"color" validate:"max=32"`
}

func (req *createZoneRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Color = strings.TrimSpace(req.Color)
}

type tableDetailResponse struct {
	socket.TablePayload
	History []socket.HistoryPayload `json:"history"`
}

type layoutResponse struct {
	Layout socket.LayoutPayload  `json:"layout"`
	Tables []socket.TablePayload `json:"tables"`
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	tables, err := h.svc.ListTables(r.Context(), claims.TenantID, queryBool(r, "includeInactive"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Tables(tables))
}

func (h *Handler) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req createTableRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	table, err := h.svc.CreateTable(r.Context(), claims.TenantID, dining.TableInput{
		TableID: req.ID,
		Number:  req.Number,
		ZoneID:  req.ZoneID,
		Seats:   req.Seats,
		QRCode:  req.QRCode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, socket.Table(table))
}

func (h *Handler) handleGetTable(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.GetTable(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, tableDetailResponse{
		TablePayload: socket.Table(detail.Table),
		History:      socket.HistoryNewestFirst(detail.History),
	})
}

func (h *Handler) handleTableHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	history, err := h.svc.TableHistory(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.HistoryNewestFirst(history))
}

func (h *Handler) handleTableState(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req tableStateRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	// Id and role come from the session. Only the display name may be overridden.
	actor := claims.Actor()
	if req.Actor != nil {
		if name := strings.TrimSpace(req.Actor.Name); name != "" {
			actor.Name = name
		}
	}
	table, err := h.svc.ChangeTableState(r.Context(), claims.TenantID, chi.URLParam(r, "id"), dining.StateChange{
		Status: req.Status,
		Reason: req.Reason,
		Covers: req.Covers,
		Actor:  actor,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Table(table))
}

func (h *Handler) handleDeactivateTable(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	table, err := h.svc.DeactivateTable(r.Context(), claims.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Table(table))
}

func (h *Handler) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	layout, err := h.svc.GetLayout(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, socket.Layout(layout))
}

func (h *Handler) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req layoutRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	seats := make([]models.TableSeats, 0, len(req.Tables))
	for _, t := range req.Tables {
		seats = append(seats, models.TableSeats{
			TableID: strings.TrimSpace(t.ID),
			Seats:   t.Seats,
			ZoneID:  strings.TrimSpace(t.ZoneID),
		})
	}
	layout, tables, err := h.svc.SaveLayout(r.Context(), claims.TenantID, models.Layout{
		Zones: req.Layout.Zones,
		Nodes: req.Layout.Nodes,
	}, seats)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, layoutResponse{
		Layout: socket.Layout(layout),
		Tables: socket.Tables(tables),
	})
}

func (h *Handler) handleListZones(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	zones, err := h.svc.ListZones(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if zones == nil {
		zones = []models.Zone{}
	}
	writeData(w, r, http.StatusOK, zones)
}

func (h *Handler) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req createZoneRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	zone, err := h.svc.CreateZone(r.Context(), claims.TenantID, req.Name, req.Color)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, zone)
}
