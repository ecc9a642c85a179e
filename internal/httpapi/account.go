package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"resto/internal/dining"
	"resto/internal/socket"
)

type loginRequest struct {
	TenantID string `json:"tenantId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (req *loginRequest) normalize() {
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
}

type loginResponse struct {
	SessionID string      `json:"sessionId"`
	ExpiresAt string      `json:"expiresAt"`
	User      userPayload `json:"user"`
}

type userPayload struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
	ExpirationTime *int64 `json:"expirationTime"`
}

type pushSubscriptionResponse struct {
	ID        string `json:"id"`
	Endpoint  string `json:"endpoint"`
	CreatedAt string `json:"createdAt"`
}

type settingsResponse struct {
	Settings any             `json:"settings"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	session, user, err := h.svc.Login(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, loginResponse{
		SessionID: session.SessionID,
		ExpiresAt: socket.FormatTime(session.ExpiresAt),
		User: userPayload{
			ID:       user.UserID,
			TenantID: user.TenantID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
		},
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	writeData(w, r, http.StatusOK, userPayload{
		ID:       claims.UserID,
		TenantID: claims.TenantID,
		Name:     claims.Name,
		Role:     claims.Role,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	settings, raw, err := h.svc.Settings(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, settingsResponse{Settings: settings, Raw: raw})
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&patch); err != nil || patch == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "settings must be a JSON object")
		return
	}
	settings, err := h.svc.UpdateSettings(r.Context(), claims.TenantID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, settingsResponse{Settings: settings})
}

func (h *Handler) handlePushSubscription(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req pushSubscriptionRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	sub, err := h.svc.RegisterPush(r.Context(), claims.Session(), dining.PushInput{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, pushSubscriptionResponse{
		ID:        sub.SubscriptionID,
		Endpoint:  sub.Endpoint,
		CreatedAt: sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}
