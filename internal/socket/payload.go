// Package socket shapes domain records into the JSON payloads pushed to
// realtime clients and parses them back.
package socket

import (
	"fmt"
	"time"

	"resto/internal/models"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t as an RFC 3339 UTC timestamp with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := FormatTime(*t)
	return &value
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return parsed.UTC(), nil
}

func parseTimePtr(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := parseTime(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

type CoversPayload struct {
	Current          int     `json:"current"`
	Total            int     `json:"total"`
	Sessions         int     `json:"sessions"`
	SessionStartedAt *string `json:"sessionStartedAt"`
	LastReleasedAt   *string `json:"lastReleasedAt"`
}

type TablePayload struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId"`
	Number    string        `json:"number"`
	Status    string        `json:"status"`
	ZoneID    string        `json:"zoneId"`
	Seats     int           `json:"seats"`
	Covers    CoversPayload `json:"covers"`
	QRCode    string        `json:"qrCode"`
	Active    bool          `json:"active"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

func Table(t models.Table) TablePayload {
	return TablePayload{
		ID:       t.TableID,
		TenantID: t.TenantID,
		Number:   t.Number,
		Status:   t.Status,
		ZoneID:   t.ZoneID,
		Seats:    t.Seats,
		Covers: CoversPayload{
			Current:          t.Covers.Current,
			Total:            t.Covers.Total,
			Sessions:         t.Covers.Sessions,
			SessionStartedAt: formatTimePtr(t.Covers.SessionStartedAt),
			LastReleasedAt:   formatTimePtr(t.Covers.LastReleasedAt),
		},
		QRCode:    t.QRCode,
		Active:    t.Active,
		CreatedAt: FormatTime(t.CreatedAt),
		UpdatedAt: FormatTime(t.UpdatedAt),
	}
}

func Tables(tables []models.Table) []TablePayload {
	out := make([]TablePayload, 0, len(tables))
	for _, t := range tables {
		out = append(out, Table(t))
	}
	return out
}

func ParseTable(p TablePayload) (models.Table, error) {
	created, err := parseTime("createdAt", p.CreatedAt)
	if err != nil {
		return models.Table{}, err
	}
	updated, err := parseTime("updatedAt", p.UpdatedAt)
	if err != nil {
		return models.Table{}, err
	}
	started, err := parseTimePtr("covers.sessionStartedAt", p.Covers.SessionStartedAt)
	if err != nil {
		return models.Table{}, err
	}
	released, err := parseTimePtr("covers.lastReleasedAt", p.Covers.LastReleasedAt)
	if err != nil {
		return models.Table{}, err
	}
	return models.Table{
		TableID:  p.ID,
		TenantID: p.TenantID,
		Number:   p.Number,
		Status:   p.Status,
		ZoneID:   p.ZoneID,
		Seats:    p.Seats,
		Covers: models.Covers{
			Current:          p.Covers.Current,
			Total:            p.Covers.Total,
			Sessions:         p.Covers.Sessions,
			SessionStartedAt: started,
			LastReleasedAt:   released,
		},
		QRCode:    p.QRCode,
		Active:    p.Active,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

type OrderItemPayload struct {
	ID             string                 `json:"id"`
	MenuItemID     string                 `json:"menuItemId"`
	Name           string                 `json:"name"`
	Quantity       int                    `json:"quantity"`
	UnitPriceCents int64                  `json:"unitPriceCents"`
	Modifiers      []models.OrderModifier `json:"modifiers"`
	ModifiersCents int64                  `json:"modifiersCents"`
	DiscountCents  int64                  `json:"discountCents"`
	LineTotalCents int64                  `json:"lineTotalCents"`
	Notes          string                 `json:"notes"`
}

type OrderPayload struct {
	ID                 string             `json:"id"`
	TenantID           string             `json:"tenantId"`
	TableID            string             `json:"tableId"`
	Source             string             `json:"source"`
	Status             string             `json:"status"`
	PaymentStatus      string             `json:"paymentStatus"`
	Items              []OrderItemPayload `json:"items"`
	SubtotalCents      int64              `json:"subtotalCents"`
	DiscountCents      int64              `json:"discountCents"`
	TaxCents           int64              `json:"taxCents"`
	TipCents           int64              `json:"tipCents"`
	ServiceChargeCents int64              `json:"serviceChargeCents"`
	TotalCents         int64              `json:"totalCents"`
	PaymentReference   string             `json:"paymentReference"`
	CreatedAt          string             `json:"createdAt"`
	UpdatedAt          string             `json:"updatedAt"`
	ClosedAt           *string            `json:"closedAt"`
}

func Order(o models.Order) OrderPayload {
	items := make([]OrderItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		mods := make([]models.OrderModifier, len(item.Modifiers))
		copy(mods, item.Modifiers)
		items = append(items, OrderItemPayload{
			ID:             item.ItemID,
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Modifiers:      mods,
			ModifiersCents: item.ModifiersCents,
			DiscountCents:  item.DiscountCents,
			LineTotalCents: item.LineTotalCents,
			Notes:          item.Notes,
		})
	}
	return OrderPayload{
		ID:                 o.OrderID,
		TenantID:           o.TenantID,
		TableID:            o.TableID,
		Source:             o.Source,
		Status:             o.Status,
		PaymentStatus:      o.PaymentStatus,
		Items:              items,
		SubtotalCents:      o.SubtotalCents,
		DiscountCents:      o.DiscountCents,
		TaxCents:           o.TaxCents,
		TipCents:           o.TipCents,
		ServiceChargeCents: o.ServiceChargeCents,
		TotalCents:         o.TotalCents,
		PaymentReference:   o.PaymentReference,
		CreatedAt:          FormatTime(o.CreatedAt),
		UpdatedAt:          FormatTime(o.UpdatedAt),
		ClosedAt:           formatTimePtr(o.ClosedAt),
	}
}

func Orders(orders []models.Order) []OrderPayload {
	out := make([]OrderPayload, 0, len(orders))
	for _, o := range orders {
		out = append(out, Order(o))
	}
	return out
}

func ParseOrder(p OrderPayload) (models.Order, error) {
	created, err := parseTime("createdAt", p.CreatedAt)
	if err != nil {
		return models.Order{}, err
	}
	updated, err := parseTime("updatedAt", p.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	closed, err := parseTimePtr("closedAt", p.ClosedAt)
	if err != nil {
		return models.Order{}, err
	}
	items := make([]models.OrderItem, 0, len(p.Items))
	for _, item := range p.Items {
		var mods []models.OrderModifier
		if len(item.Modifiers) > 0 {
			mods = append(mods, item.Modifiers...)
		}
		items = append(items, models.OrderItem{
			ItemID:         item.ID,
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Modifiers:      mods,
			ModifiersCents: item.ModifiersCents,
			DiscountCents:  item.DiscountCents,
			LineTotalCents: item.LineTotalCents,
			Notes:          item.Notes,
		})
	}
	return models.Order{
		OrderID:            p.ID,
		TenantID:           p.TenantID,
		TableID:            p.TableID,
		Source:             p.Source,
		Status:             p.Status,
		PaymentStatus:      p.PaymentStatus,
		Items:              items,
		SubtotalCents:      p.SubtotalCents,
		DiscountCents:      p.DiscountCents,
		TaxCents:           p.TaxCents,
		TipCents:           p.TipCents,
		ServiceChargeCents: p.ServiceChargeCents,
		TotalCents:         p.TotalCents,
		PaymentReference:   p.PaymentReference,
		CreatedAt:          created,
		UpdatedAt:          updated,
		ClosedAt:           closed,
	}, nil
}

type AlertPayload struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenantId"`
	TableID        string  `json:"tableId"`
	Type           string  `json:"type"`
	Message        string  `json:"message"`
	CreatedAt      string  `json:"createdAt"`
	Acknowledged   bool    `json:"acknowledged"`
	AcknowledgedAt *string `json:"acknowledgedAt"`
	AcknowledgedBy string  `json:"acknowledgedBy"`
}

func Alert(a models.Alert) AlertPayload {
	return AlertPayload{
		ID:             a.AlertID,
		TenantID:       a.TenantID,
		TableID:        a.TableID,
		Type:           a.Type,
		Message:        a.Message,
		CreatedAt:      FormatTime(a.CreatedAt),
		Acknowledged:   a.Acknowledged,
		AcknowledgedAt: formatTimePtr(a.AcknowledgedAt),
		AcknowledgedBy: a.AcknowledgedBy,
	}
}

func Alerts(alerts []models.Alert) []AlertPayload {
	out := make([]AlertPayload, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, Alert(a))
	}
	return out
}

func ParseAlert(p AlertPayload) (models.Alert, error) {
	created, err := parseTime("createdAt", p.CreatedAt)
	if err != nil {
		return models.Alert{}, err
	}
	acked, err := parseTimePtr("acknowledgedAt", p.AcknowledgedAt)
	if err != nil {
		return models.Alert{}, err
	}
	return models.Alert{
		AlertID:        p.ID,
		TenantID:       p.TenantID,
		TableID:        p.TableID,
		Type:           p.Type,
		Message:        p.Message,
		CreatedAt:      created,
		Acknowledged:   p.Acknowledged,
		AcknowledgedAt: acked,
		AcknowledgedBy: p.AcknowledgedBy,
	}, nil
}

type LayoutPayload struct {
	Zones     []models.LayoutZone `json:"zones"`
	Nodes     []models.LayoutNode `json:"nodes"`
	UpdatedAt *string             `json:"updatedAt"`
}

func Layout(l models.Layout) LayoutPayload {
	out := LayoutPayload{
		Zones: append([]models.LayoutZone{}, l.Zones...),
		Nodes: append([]models.LayoutNode{}, l.Nodes...),
	}
	if !l.UpdatedAt.IsZero() {
		out.UpdatedAt = formatTimePtr(&l.UpdatedAt)
	}
	return out
}

func ParseLayout(p LayoutPayload) (models.Layout, error) {
	updated, err := parseTimePtr("updatedAt", p.UpdatedAt)
	if err != nil {
		return models.Layout{}, err
	}
	out := models.Layout{
		Zones: append([]models.LayoutZone{}, p.Zones...),
		Nodes: append([]models.LayoutNode{}, p.Nodes...),
	}
	if updated != nil {
		out.UpdatedAt = *updated
	}
	return out, nil
}

type SummaryPayload struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	ByPayment       map[string]int `json:"byPayment"`
	PendingPayments int            `json:"pendingPayments"`
	ClosedUnpaid    int            `json:"closedUnpaid"`
	RevenueCents    int64          `json:"revenueCents"`
	OldestAt        *string        `json:"oldestAt"`
	LatestAt        *string        `json:"latestAt"`
}

func Summary(s models.OrdersSummary) SummaryPayload {
	return SummaryPayload{
		Total:           s.Total,
		ByStatus:        copyCounts(s.ByStatus),
		ByPayment:       copyCounts(s.ByPayment),
		PendingPayments: s.PendingPayments,
		ClosedUnpaid:    s.ClosedUnpaid,
		RevenueCents:    s.RevenueCents,
		OldestAt:        formatTimePtr(s.OldestAt),
		LatestAt:        formatTimePtr(s.LatestAt),
	}
}

func ParseSummary(p SummaryPayload) (models.OrdersSummary, error) {
	oldest, err := parseTimePtr("oldestAt", p.OldestAt)
	if err != nil {
		return models.OrdersSummary{}, err
	}
	latest, err := parseTimePtr("latestAt", p.LatestAt)
	if err != nil {
		return models.OrdersSummary{}, err
	}
	return models.OrdersSummary{
		Total:           p.Total,
		ByStatus:        copyCounts(p.ByStatus),
		ByPayment:       copyCounts(p.ByPayment),
		PendingPayments: p.PendingPayments,
		ClosedUnpaid:    p.ClosedUnpaid,
		RevenueCents:    p.RevenueCents,
		OldestAt:        oldest,
		LatestAt:        latest,
	}, nil
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type HistoryPayload struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenantId"`
	TableID   string       `json:"tableId"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Actor     models.Actor `json:"actor"`
	Reason    string       `json:"reason"`
	CreatedAt string       `json:"createdAt"`
}

func History(h models.HistoryEntry) HistoryPayload {
	return HistoryPayload{
		ID:        h.EntryID,
		TenantID:  h.TenantID,
		TableID:   h.TableID,
		From:      h.From,
		To:        h.To,
		Actor:     h.Actor,
		Reason:    h.Reason,
		CreatedAt: FormatTime(h.CreatedAt),
	}
}

// HistoryNewestFirst renders entries in reverse append order.
func HistoryNewestFirst(entries []models.HistoryEntry) []HistoryPayload {
	out := make([]HistoryPayload, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, History(entries[i]))
	}
	return out
}

func ParseHistory(p HistoryPayload) (models.HistoryEntry, error) {
	created, err := parseTime("createdAt", p.CreatedAt)
	if err != nil {
		return models.HistoryEntry{}, err
	}
	return models.HistoryEntry{
		EntryID:   p.ID,
		TenantID:  p.TenantID,
		TableID:   p.TableID,
		From:      p.From,
		To:        p.To,
		Actor:     p.Actor,
		Reason:    p.Reason,
		CreatedAt: created,
	}, nil
}
