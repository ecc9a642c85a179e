package httpapi

import (
	"io"
	"log"
	"net/http"
	"strings"

	"resto/internal/payment"
)

type paymentCreateRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

func (req *paymentCreateRequest) normalize() {
	req.OrderID = strings.TrimSpace(req.OrderID)
}

type paymentCreateResponse struct {
	PreferenceID string `json:"preferenceId"`
	InitPoint    string `json:"initPoint"`
}

func (h *Handler) handlePaymentCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := mustClaims(w, r)
	if !ok {
		return
	}
	var req paymentCreateRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	if h.payments == nil {
		writeServiceError(w, r, payment.ErrNotConfigured)
		return
	}
	pref, err := h.payments.CreateCheckout(r.Context(), claims.TenantID, req.OrderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, paymentCreateResponse{PreferenceID: pref.ID, InitPoint: pref.InitPoint})
}

// handlePaymentWebhook acknowledges every callback. Processing failures are
// recorded by the processor and only logged here.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Printf("webhook read error request_id=%s: %v", requestIDFromRequest(r), err)
	}
	if h.payments == nil {
		log.Printf("webhook ignored request_id=%s: %v", requestIDFromRequest(r), payment.ErrNotConfigured)
	} else {
		query := r.URL.Query()
		queryType := query.Get("type")
		if queryType == "" {
			queryType = query.Get("topic")
		}
		dataID := query.Get("data.id")
		if dataID == "" {
			dataID = query.Get("id")
		}
		err := h.payments.HandleWebhook(r.Context(), payment.WebhookRequest{
			Body:        body,
			Signature:   r.Header.Get("X-Signature"),
			RequestID:   r.Header.Get("X-Request-Id"),
			QueryType:   queryType,
			QueryDataID: dataID,
		})
		if err != nil {
			log.Printf("webhook processing failed request_id=%s: %v", requestIDFromRequest(r), err)
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"received": true})
}
