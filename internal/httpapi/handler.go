package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strings"

	"resto/internal/dining"
	"resto/internal/models"
	"resto/internal/payment"
	"resto/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Dining is the service surface the routes call into.
type Dining interface {
	ListTables(ctx context.Context, tenantID string, includeInactive bool) ([]models.Table, error)
	GetTable(ctx context.Context, tenantID, tableID string) (dining.TableDetail, error)
	TableHistory(ctx context.Context, tenantID, tableID string) ([]models.HistoryEntry, error)
	CreateTable(ctx context.Context, tenantID string, input dining.TableInput) (models.Table, error)
	ChangeTableState(ctx context.Context, tenantID, tableID string, change dining.StateChange) (models.Table, error)
	DeactivateTable(ctx context.Context, tenantID, tableID string) (models.Table, error)
	GetLayout(ctx context.Context, tenantID string) (models.Layout, error)
	SaveLayout(ctx context.Context, tenantID string, layout models.Layout, seats []models.TableSeats) (models.Layout, []models.Table, error)
	ListZones(ctx context.Context, tenantID string) ([]models.Zone, error)
	CreateZone(ctx context.Context, tenantID, name, color string) (models.Zone, error)

	Menu(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, tenantID string, input dining.MenuItemInput) (models.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) (models.MenuItem, error)

	CreateOrder(ctx context.Context, tenantID string, input dining.OrderInput, source string) (models.Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, tenantID string, filter models.OrderFilter) ([]models.Order, error)
	OrdersSummary(ctx context.Context, tenantID string) (models.OrdersSummary, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string) (models.Order, error)
	UpdatePaymentStatus(ctx context.Context, tenantID, orderID, status, reference string) (models.Order, error)

	ListAlerts(ctx context.Context, tenantID string, includeAcknowledged bool) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, tenantID, alertID, by string) (models.Alert, error)

	Settings(ctx context.Context, tenantID string) (models.TenantSettings, json.RawMessage, error)
	UpdateSettings(ctx context.Context, tenantID string, patch map[string]any) (models.TenantSettings, error)

	Login(ctx context.Context, tenantID, email, password string) (models.Session, models.User, error)
	Authenticate(ctx context.Context, sessionID string) (models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	RegisterPush(ctx context.Context, session models.Session, input dining.PushInput) (models.PushSubscription, error)

	QR(ctx context.Context, code string) (dining.QRView, error)
	QROrder(ctx context.Context, code string, input dining.OrderInput) (models.Order, error)
	QRAlert(ctx context.Context, code, alertType string) (models.Alert, error)
}

// Payments is nil when no provider is configured.
type Payments interface {
	CreateCheckout(ctx context.Context, tenantID, orderID string) (payment.Preference, error)
	HandleWebhook(ctx context.Context, req payment.WebhookRequest) error
}

type Options struct {
	RateLimit RateLimitConfig
	Payments  Payments
	// Realtime is mounted under /realtime when set.
	Realtime http.Handler
}

type Handler struct {
	svc      Dining
	payments Payments
	limiter  *RateLimiter
	realtime http.Handler
	validate *validator.Validate
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	RequestID string        `json:"requestId"`
	Error     responseError `json:"error"`
	status    int
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

func NewHandler(svc Dining, opts Options) *Handler {
	return &Handler{
		svc:      svc,
		payments: opts.Payments,
		limiter:  NewRateLimiter(opts.RateLimit),
		realtime: opts.Realtime,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(h.limiter.Middleware)
		r.Get("/healthz", h.handleHealth)
		r.Handle("/metrics", expvar.Handler())
		if h.realtime != nil {
			r.Handle("/realtime", h.realtime)
			r.Handle("/realtime/*", h.realtime)
		}
	})

	r.Route("/api", func(r chi.Router) {
		// Provider deliveries are always acknowledged, so they skip the per-IP budget.
		r.Post("/payment/webhook", h.handlePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.limiter.Middleware)
			r.Post("/auth/login", h.handleLogin)
			r.Route("/qr/{code}", func(r chi.Router) {
				r.Get("/", h.handleQR)
				r.Post("/orders", h.handleQROrder)
				r.Post("/alerts", h.handleQRAlert)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Use(h.limiter.TenantMiddleware)
				manage := requireRole(models.RoleAdmin, models.RoleManager)

				r.Get("/auth/me", h.handleMe)
				r.Post("/auth/logout", h.handleLogout)

				r.Get("/tables", h.handleListTables)
				r.With(manage).Post("/tables", h.handleCreateTable)
				r.Get("/tables/{id}", h.handleGetTable)
				r.Patch("/tables/{id}/state", h.handleTableState)
				r.With(manage).Delete("/tables/{id}", h.handleDeactivateTable)
				r.Get("/tables/{id}/history", h.handleTableHistory)

				r.Get("/table-layout", h.handleGetLayout)
				r.With(manage).Put("/table-layout", h.handleSaveLayout)

				r.Get("/zones", h.handleListZones)
				r.With(manage).Post("/zones", h.handleCreateZone)

				r.Get("/menu", h.handleMenu)
				r.With(manage).Post("/menu/items", h.handleCreateMenuItem)
				r.With(requireRole(models.RoleAdmin, models.RoleManager, models.RoleKitchen)).
					Patch("/menu/items/{id}/availability", h.handleMenuAvailability)
				r.Post("/menu/orders", h.handleCreateOrder)

				r.Get("/orders", h.handleListOrders)
				r.Get("/orders/summary", h.handleOrdersSummary)
				r.Get("/orders/{id}", h.handleGetOrder)
				r.Patch("/orders/{id}/status", h.handleOrderStatus)
				r.Patch("/orders/{id}/payment", h.handleOrderPayment)

				r.Get("/alerts", h.handleListAlerts)
				r.Post("/alerts/{id}/ack", h.handleAckAlert)

				r.Get("/settings", h.handleGetSettings)
				r.With(requireRole(models.RoleAdmin)).Put("/settings", h.handleUpdateSettings)

				r.Post("/push/subscriptions", h.handlePushSubscription)
				r.Post("/payment/create", h.handlePaymentCreate)
			})
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeRequest reads a JSON body into target and validates it. It writes
// the 400 response itself and reports false on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return false
	}
	if t, ok := target.(interface{ normalize() }); ok {
		t.normalize()
	}
	if err := h.validate.Struct(target); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request payload"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min", "gte":
			if fe.Kind() == reflect.Slice {
				parts = append(parts, fmt.Sprintf("%s must have at least %s entries", field, fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
			}
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(parts, "; ")
}

func mapError(err error) (int, string, string) {
	var verr *dining.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_request", verr.Error()
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_request", "unknown status"
	case errors.Is(err, store.ErrMenuItemNotFound):
		return http.StatusNotFound, "not_found", "Menu item not found"
	case errors.Is(err, store.ErrTableNotFound), errors.Is(err, store.ErrTableInactive):
		return http.StatusNotFound, "not_found", "Table not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "not_found", "Order not found"
	case errors.Is(err, store.ErrZoneNotFound):
		return http.StatusNotFound, "not_found", "Zone not found"
	case errors.Is(err, store.ErrAlertNotFound):
		return http.StatusNotFound, "not_found", "Alert not found"
	case errors.Is(err, store.ErrQRCodeNotFound):
		return http.StatusNotFound, "not_found", "QR code not found"
	case errors.Is(err, store.ErrTenantNotFound):
		return http.StatusNotFound, "not_found", "Tenant not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "transition not allowed from current state"
	case errors.Is(err, payment.ErrOrderSettled):
		return http.StatusConflict, "invalid_transition", "order payment already settled"
	case errors.Is(err, store.ErrMenuItemUnavailable):
		return http.StatusConflict, "unavailable", "Menu item unavailable"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "conflict", "record already exists"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized", "invalid credentials"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, "payment_unavailable", "payment provider not configured"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request_id=%s path=%s error: %v", requestIDFromRequest(r), r.URL.Path, err)
	}
	writeError(w, r, status, code, msg)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	_ = render.Render(w, r, &errorResponse{
		RequestID: requestIDFromRequest(r),
		Error:     responseError{Code: code, Message: message},
		status:    status,
	})
}

func writeData(w http.ResponseWriter, r *http.Request, status int, payload any) {
	writeJSON(w, r, status, dataResponse{Data: payload})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func requestIDFromRequest(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
