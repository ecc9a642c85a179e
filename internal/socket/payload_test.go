package socket

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"resto/internal/models"
)

func msTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return parsed.UTC()
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	value := time.Date(2024, 5, 1, 9, 30, 0, 123456789, loc)
	got := FormatTime(value)
	if got != "2024-05-01T12:30:00.123Z" {
		t.Fatalf("unexpected format %s", got)
	}
}

func TestTableRoundTrip(t *testing.T) {
	started := msTime(t, "2024-05-01T20:00:00.250Z")
	table := models.Table{
		TableID:  "1",
		TenantID: "t1",
		Number:   "1",
		Status:   models.TableOccupied,
		ZoneID:   "z1",
		Seats:    4,
		Covers: models.Covers{
			Current:          3,
			Total:            10,
			Sessions:         4,
			SessionStartedAt: &started,
		},
		QRCode:    "qr-1",
		Active:    true,
		CreatedAt: msTime(t, "2024-04-01T10:00:00Z"),
		UpdatedAt: msTime(t, "2024-05-01T20:00:00.250Z"),
	}

	raw, err := json.Marshal(Table(table))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"lastReleasedAt":null`) {
		t.Fatalf("expected null lastReleasedAt, got %s", raw)
	}
	var payload TablePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := ParseTable(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, table) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, table)
	}
}

func TestOrderRoundTrip(t *testing.T) {
	closed := msTime(t, "2024-05-01T22:15:00.5Z")
	order := models.Order{
		OrderID:       "o1",
		TenantID:      "t1",
		TableID:       "1",
		Source:        models.SourceQR,
		Status:        models.OrderClosed,
		PaymentStatus: models.PaymentPaid,
		Items: []models.OrderItem{
			{
				ItemID:         "i1",
				MenuItemID:     "m1",
				Name:           "Milanesa",
				Quantity:       2,
				UnitPriceCents: 1500,
				Modifiers:      []models.OrderModifier{{ModifierID: "x1", Name: "Papas", PriceCents: 300}},
				ModifiersCents: 300,
				LineTotalCents: 3600,
				Notes:          "sin sal",
			},
			{ItemID: "i2", MenuItemID: "m2", Name: "Agua", Quantity: 1, UnitPriceCents: 400, LineTotalCents: 400},
		},
		SubtotalCents:    4000,
		TaxCents:         840,
		TipCents:         200,
		TotalCents:       5040,
		PaymentReference: "pay-9",
		CreatedAt:        msTime(t, "2024-05-01T21:00:00Z"),
		UpdatedAt:        closed,
		ClosedAt:         &closed,
	}

	raw, err := json.Marshal(Order(order))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var payload OrderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := ParseOrder(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, order) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, order)
	}
}

func TestAlertLayoutSummaryRoundTrip(t *testing.T) {
	acked := msTime(t, "2024-05-01T21:01:00Z")
	alert := models.Alert{
		AlertID:        "a1",
		TenantID:       "t1",
		TableID:        "1",
		Type:           models.AlertCallWaiter,
		Message:        "Mesa 1 llama al mozo",
		CreatedAt:      msTime(t, "2024-05-01T21:00:00Z"),
		Acknowledged:   true,
		AcknowledgedAt: &acked,
		AcknowledgedBy: "u1",
	}
	gotAlert, err := ParseAlert(Alert(alert))
	if err != nil || !reflect.DeepEqual(gotAlert, alert) {
		t.Fatalf("alert round trip mismatch: %v %+v", err, gotAlert)
	}

	layout := models.Layout{
		Zones:     []models.LayoutZone{{ID: "z1", Name: "Salon", Color: "#ccc"}},
		Nodes:     []models.LayoutNode{{TableID: "1", X: 1.5, Y: 2, Width: 40, Height: 40, Shape: "square", Zone: "z1"}},
		UpdatedAt: msTime(t, "2024-05-01T09:00:00Z"),
	}
	gotLayout, err := ParseLayout(Layout(layout))
	if err != nil || !reflect.DeepEqual(gotLayout, layout) {
		t.Fatalf("layout round trip mismatch: %v %+v", err, gotLayout)
	}

	oldest := msTime(t, "2024-05-01T08:00:00Z")
	summary := models.OrdersSummary{
		Total:           3,
		ByStatus:        map[string]int{"open": 2, "closed": 1},
		ByPayment:       map[string]int{"pending": 3},
		PendingPayments: 3,
		ClosedUnpaid:    1,
		OldestAt:        &oldest,
		LatestAt:        &oldest,
	}
	gotSummary, err := ParseSummary(Summary(summary))
	if err != nil || !reflect.DeepEqual(gotSummary, summary) {
		t.Fatalf("summary round trip mismatch: %v %+v", err, gotSummary)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	entries := []models.HistoryEntry{
		{EntryID: "h1", From: "libre", To: "ocupada", CreatedAt: msTime(t, "2024-05-01T10:00:00Z")},
		{EntryID: "h2", From: "ocupada", To: "limpieza", CreatedAt: msTime(t, "2024-05-01T11:00:00Z")},
	}
	got := HistoryNewestFirst(entries)
	if len(got) != 2 || got[0].ID != "h2" || got[1].ID != "h1" {
		t.Fatalf("unexpected order %+v", got)
	}
	parsed, err := ParseHistory(got[1])
	if err != nil || !reflect.DeepEqual(parsed, entries[0]) {
		t.Fatalf("history round trip mismatch: %v %+v", err, parsed)
	}
}

func TestSubMillisecondTruncated(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 999999, time.UTC)
	payload := Alert(models.Alert{AlertID: "a", CreatedAt: at})
	got, err := ParseAlert(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(at.Truncate(time.Millisecond)) {
		t.Fatalf("expected truncated time, got %s", got.CreatedAt)
	}
}

func TestParseRejectsBadTime(t *testing.T) {
	if _, err := ParseTable(TablePayload{CreatedAt: "yesterday"}); err == nil {
		t.Fatalf("expected error for malformed time")
	}
}

func TestEnvelopes(t *testing.T) {
	meta := NewMeta(7, msTime(t, "2024-05-01T12:00:00Z"))
	table := models.Table{TableID: "1", TenantID: "t1", Status: models.TableFree, CreatedAt: msTime(t, meta.UpdatedAt), UpdatedAt: msTime(t, meta.UpdatedAt)}

	env, err := TableUpdated(table, meta)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Event != EventTableUpdated || decoded.Meta.Version != 7 || decoded.Meta.UpdatedAt != "2024-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected envelope %+v", decoded)
	}
	got, err := DecodeTable(decoded)
	if err != nil || !reflect.DeepEqual(got, table) {
		t.Fatalf("table mismatch: %v %+v", err, got)
	}

	if _, err := Decode([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected missing event error")
	}
}

func TestReadyRoundTrip(t *testing.T) {
	at := msTime(t, "2024-05-01T12:00:00Z")
	snapshot := Snapshot{
		Tables:  []models.Table{{TableID: "1", TenantID: "t1", Status: models.TableFree, CreatedAt: at, UpdatedAt: at}},
		Layout:  models.Layout{Zones: []models.LayoutZone{}, Nodes: []models.LayoutNode{}},
		Alerts:  []models.Alert{{AlertID: "a1", TenantID: "t1", TableID: "1", Type: models.AlertCallWaiter, CreatedAt: at}},
		Summary: models.OrdersSummary{ByStatus: map[string]int{}, ByPayment: map[string]int{}},
	}
	env, err := Ready(snapshot, NewMeta(1, at))
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	got, err := ParseReady(env)
	if err != nil {
		t.Fatalf("parse ready: %v", err)
	}
	if !reflect.DeepEqual(got, snapshot) {
		t.Fatalf("snapshot mismatch\n got %+v\nwant %+v", got, snapshot)
	}
}
