package store

import (
	"context"
	"encoding/json"
	"time"

	"resto/internal/models"
)

type TableStateInput struct {
	TenantID   string
	TableID    string
	Status     string
	Actor      models.Actor
	Reason     string
	Covers     int
	OccurredAt time.Time
}

type PaymentUpdateInput struct {
	TenantID   string
	OrderID    string
	Status     string
	Reference  string
	OccurredAt time.Time
}

type TableStore interface {
	ListTables(ctx context.Context, tenantID string, includeInactive bool) ([]models.Table, error)
	GetTable(ctx context.Context, tenantID, tableID string) (models.Table, error)
	FindTableByQR(ctx context.Context, qrCode string) (models.Table, error)
	CreateTable(ctx context.Context, table models.Table) (models.Table, error)
	UpdateTableState(ctx context.Context, input TableStateInput) (models.Table, error)
	DeactivateTable(ctx context.Context, tenantID, tableID string) (models.Table, error)
	GetLayout(ctx context.Context, tenantID string) (models.Layout, error)
	UpdateTableLayout(ctx context.Context, tenantID string, layout models.Layout, seats []models.TableSeats) (models.Layout, []models.Table, error)
	ListTableHistory(ctx context.Context, tenantID, tableID string) ([]models.HistoryEntry, error)
}

type ZoneStore interface {
	ListZones(ctx context.Context, tenantID string) ([]models.Zone, error)
	CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error)
}

type MenuStore interface {
	ListMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error)
	SetMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) (models.MenuItem, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, tenantID string, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string, at time.Time) (models.Order, error)
	// UpdatePaymentStatus reports false when the order already carried the
	// requested terminal status.
	UpdatePaymentStatus(ctx context.Context, input PaymentUpdateInput) (models.Order, bool, error)
	SetPaymentReference(ctx context.Context, tenantID, orderID, reference string) (models.Order, error)
	OrdersSummary(ctx context.Context, tenantID string) (models.OrdersSummary, error)
}

type AlertStore interface {
	CreateAlert(ctx context.Context, alert models.Alert) (models.Alert, error)
	AcknowledgeAlert(ctx context.Context, tenantID, alertID, by string, at time.Time) (models.Alert, error)
	ListAlerts(ctx context.Context, tenantID string, includeAcknowledged bool) ([]models.Alert, error)
	CleanupAlerts(ctx context.Context, acknowledgedBefore time.Time) (int, error)
}

type TenantStore interface {
	CreateTenant(ctx context.Context, tenant models.Tenant) (models.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (models.Tenant, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, settings json.RawMessage) (models.Tenant, error)
}

type AuthStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByEmail(ctx context.Context, tenantID, email string) (models.User, error)
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type PushStore interface {
	SavePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, tenantID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, subscriptionID string) error
}

type WebhookLedger interface {
	RecordWebhookFailure(ctx context.Context, failure models.WebhookFailure) error
}

type Store interface {
	TableStore
	ZoneStore
	MenuStore
	OrderStore
	AlertStore
	TenantStore
	AuthStore
	PushStore
	WebhookLedger
	Close() error
}
