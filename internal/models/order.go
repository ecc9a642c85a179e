package models

import "time"

type Order struct {
	OrderID            string      `json:"id"`
	TenantID           string      `json:"tenantId"`
	TableID            string      `json:"tableId"`
	Source             string      `json:"source"`
	Status             string      `json:"status"`
	PaymentStatus      string      `json:"paymentStatus"`
	Items              []OrderItem `json:"items"`
	SubtotalCents      int64       `json:"subtotalCents"`
	DiscountCents      int64       `json:"discountCents"`
	TaxCents           int64       `json:"taxCents"`
	TipCents           int64       `json:"tipCents"`
	ServiceChargeCents int64       `json:"serviceChargeCents"`
	TotalCents         int64       `json:"totalCents"`
	PaymentReference   string      `json:"paymentReference,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	ClosedAt           *time.Time  `json:"closedAt,omitempty"`
}

type OrderItem struct {
	ItemID         string          `json:"id"`
	MenuItemID     string          `json:"menuItemId"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Modifiers      []OrderModifier `json:"modifiers,omitempty"`
	ModifiersCents int64           `json:"modifiersCents"`
	DiscountCents  int64           `json:"discountCents"`
	LineTotalCents int64           `json:"lineTotalCents"`
	Notes          string          `json:"notes,omitempty"`
}

type OrderModifier struct {
	ModifierID string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

const (
	OrderOpen      = "open"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderDelivered = "delivered"
	OrderClosed    = "closed"
)

const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentCancelled = "cancelled"
)

const (
	SourceQR    = "qr"
	SourceStaff = "staff"
)

var OrderStatuses = []string{OrderOpen, OrderPreparing, OrderReady, OrderDelivered, OrderClosed}

var PaymentStatuses = []string{PaymentPending, PaymentPaid, PaymentCancelled}

type OrdersSummary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	ByPayment       map[string]int `json:"byPayment"`
	PendingPayments int            `json:"pendingPayments"`
	ClosedUnpaid    int            `json:"closedUnpaid"`
	RevenueCents    int64          `json:"revenueCents"`
	OldestAt        *time.Time     `json:"oldestAt,omitempty"`
	LatestAt        *time.Time     `json:"latestAt,omitempty"`
}

type OrderFilter struct {
	TableID       string
	Status        string
	PaymentStatus string
}
