package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resto/internal/models"
	"resto/internal/store"
)

func seedTable(t *testing.T, s *Store, tenantID, tableID, status string) models.Table {
	t.Helper()
	table, err := s.CreateTable(context.Background(), models.Table{
		TableID:  tableID,
		TenantID: tenantID,
		Number:   tableID,
		Status:   status,
		Seats:    4,
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return table
}

func TestUpdateTableStateAppendsHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "1", models.TableFree)

	table, err := s.UpdateTableState(ctx, store.TableStateInput{
		TenantID: "t1",
		TableID:  "1",
		Status:   models.TableOccupied,
		Covers:   3,
		Actor:    models.Actor{ID: "u1", Name: "Ana", Role: models.RoleWaiter},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if table.Status != models.TableOccupied || table.Covers.Current != 3 || table.Covers.Sessions != 1 {
		t.Fatalf("unexpected table %+v", table)
	}

	history, err := s.ListTableHistory(ctx, "t1", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if history[0].From != models.TableFree || history[0].To != models.TableOccupied {
		t.Fatalf("unexpected entry %+v", history[0])
	}
	if history[0].Actor.Name != "Ana" {
		t.Fatalf("expected actor Ana, got %+v", history[0].Actor)
	}
}

func TestUpdateTableStateRejections(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "2", models.TableOccupied)

	cases := []struct {
		name    string
		tableID string
		status  string
		want    error
	}{
		{"unknown status", "2", "dirty", store.ErrInvalidStatus},
		{"missing table", "99", models.TableFree, store.ErrTableNotFound},
		{"disallowed", "2", models.TableFree, store.ErrInvalidTransition},
	}
	for _, tt := range cases {
		_, err := s.UpdateTableState(ctx, store.TableStateInput{TenantID: "t1", TableID: tt.tableID, Status: tt.status})
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	history, err := s.ListTableHistory(ctx, "t1", "2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected transitions must not append history, got %d", len(history))
	}
	table, _ := s.GetTable(ctx, "t1", "2")
	if table.Status != models.TableOccupied {
		t.Fatalf("status changed on rejection: %s", table.Status)
	}
}

func TestTablesAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "1", models.TableFree)
	seedTable(t, s, "t2", "1", models.TableFree)

	if _, err := s.UpdateTableState(ctx, store.TableStateInput{TenantID: "t1", TableID: "1", Status: models.TableReserved}); err != nil {
		t.Fatalf("update: %v", err)
	}
	other, err := s.GetTable(ctx, "t2", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if other.Status != models.TableFree {
		t.Fatalf("tenant t2 table changed: %s", other.Status)
	}
}

func TestDeactivatedTablesHiddenFromListing(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "1", models.TableFree)
	seedTable(t, s, "t1", "2", models.TableFree)
	if _, err := s.DeactivateTable(ctx, "t1", "2"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	tables, _ := s.ListTables(ctx, "t1", false)
	if len(tables) != 1 || tables[0].TableID != "1" {
		t.Fatalf("unexpected active tables %+v", tables)
	}
	all, _ := s.ListTables(ctx, "t1", true)
	if len(all) != 2 {
		t.Fatalf("expected 2 tables with inactive, got %d", len(all))
	}
	_, err := s.UpdateTableState(ctx, store.TableStateInput{TenantID: "t1", TableID: "2", Status: models.TableOccupied})
	if !errors.Is(err, store.ErrTableInactive) {
		t.Fatalf("expected ErrTableInactive, got %v", err)
	}
}

func TestUpdateTableLayoutAppliesSeats(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "1", models.TableFree)

	layout := models.Layout{
		Zones: []models.LayoutZone{{ID: "z1", Name: "Terraza"}},
		Nodes: []models.LayoutNode{{TableID: "1", X: 10, Y: 20, Width: 60, Height: 60, Shape: "round", Zone: "z1"}},
	}
	saved, tables, err := s.UpdateTableLayout(ctx, "t1", layout, []models.TableSeats{{TableID: "1", Seats: 6, ZoneID: "z1"}})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if len(saved.Nodes) != 1 || saved.UpdatedAt.IsZero() {
		t.Fatalf("unexpected layout %+v", saved)
	}
	if len(tables) != 1 || tables[0].Seats != 6 || tables[0].ZoneID != "z1" {
		t.Fatalf("unexpected tables %+v", tables)
	}

	layout.Nodes = append(layout.Nodes, models.LayoutNode{TableID: "ghost"})
	if _, _, err := s.UpdateTableLayout(ctx, "t1", layout, nil); !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestOrderStatusAndPayment(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTable(t, s, "t1", "1", models.TableFree)

	order, err := s.CreateOrder(ctx, models.Order{
		TenantID:   "t1",
		TableID:    "1",
		Source:     models.SourceStaff,
		Items:      []models.OrderItem{{MenuItemID: "m1", Name: "Empanada", Quantity: 2, UnitPriceCents: 500, LineTotalCents: 1000}},
		TotalCents: 1000,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != models.OrderOpen || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("unexpected initial statuses %s/%s", order.Status, order.PaymentStatus)
	}
	if order.Items[0].ItemID == "" {
		t.Fatalf("expected item id")
	}

	if _, err := s.UpdateOrderStatus(ctx, "t1", order.OrderID, models.OrderReady, time.Time{}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected open -> ready to be rejected, got %v", err)
	}
	closed, err := s.UpdateOrderStatus(ctx, "t1", order.OrderID, models.OrderClosed, time.Time{})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatalf("expected closedAt")
	}

	summary, _ := s.OrdersSummary(ctx, "t1")
	if summary.ClosedUnpaid != 1 || summary.PendingPayments != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	paid, changed, err := s.UpdatePaymentStatus(ctx, store.PaymentUpdateInput{TenantID: "t1", OrderID: order.OrderID, Status: models.PaymentPaid, Reference: "pay-1"})
	if err != nil || !changed {
		t.Fatalf("pay: changed=%v err=%v", changed, err)
	}
	if paid.PaymentReference != "pay-1" {
		t.Fatalf("expected reference, got %q", paid.PaymentReference)
	}
	_, changed, err = s.UpdatePaymentStatus(ctx, store.PaymentUpdateInput{TenantID: "t1", OrderID: order.OrderID, Status: models.PaymentPaid})
	if err != nil || changed {
		t.Fatalf("redelivery should be a noop: changed=%v err=%v", changed, err)
	}
	_, _, err = s.UpdatePaymentStatus(ctx, store.PaymentUpdateInput{TenantID: "t1", OrderID: order.OrderID, Status: models.PaymentCancelled})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected paid -> cancelled rejected, got %v", err)
	}

	summary, _ = s.OrdersSummary(ctx, "t1")
	if summary.RevenueCents != 1000 || summary.ClosedUnpaid != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestCreateOrderRequiresTable(t *testing.T) {
	s := New()
	_, err := s.CreateOrder(context.Background(), models.Order{TenantID: "t1", TableID: "nope"})
	if !errors.Is(err, store.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestCleanupAlerts(t *testing.T) {
	ctx := context.Background()
	s := New()
	old, _ := s.CreateAlert(ctx, models.Alert{TenantID: "t1", TableID: "1", Type: models.AlertCallWaiter})
	fresh, _ := s.CreateAlert(ctx, models.Alert{TenantID: "t1", TableID: "1", Type: models.AlertCallWaiter})
	s.CreateAlert(ctx, models.Alert{TenantID: "t1", TableID: "1", Type: models.AlertIncomingOrder})

	now := time.Now().UTC()
	if _, err := s.AcknowledgeAlert(ctx, "t1", old.AlertID, "u1", now.Add(-3*time.Hour)); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, err := s.AcknowledgeAlert(ctx, "t1", fresh.AlertID, "u1", now); err != nil {
		t.Fatalf("ack: %v", err)
	}

	removed, err := s.CleanupAlerts(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	open, _ := s.ListAlerts(ctx, "t1", false)
	if len(open) != 1 {
		t.Fatalf("expected 1 open alert, got %d", len(open))
	}
	all, _ := s.ListAlerts(ctx, "t1", true)
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all))
	}
}

func TestOpenPersistsAcrossClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedTable(t, s, "t1", "1", models.TableFree)
	if _, err := s.UpdateTableState(ctx, store.TableStateInput{TenantID: "t1", TableID: "1", Status: models.TableOccupied, Covers: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.GetTable(ctx, "t1", "1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	table, err := reopened.GetTable(ctx, "t1", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if table.Status != models.TableOccupied || table.Covers.Current != 2 {
		t.Fatalf("unexpected reloaded table %+v", table)
	}
	history, _ := reopened.ListTableHistory(ctx, "t1", "1")
	if len(history) != 1 {
		t.Fatalf("expected persisted history, got %d", len(history))
	}
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateSession(ctx, models.Session{SessionID: "s1", TenantID: "t1", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := s.GetSession(ctx, "s1"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be missing, got %v", err)
	}
}

func TestFailedPersistRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	s, err := Open(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedTable(t, s, "t1", "1", models.TableFree)
	if _, err := s.CreateZone(ctx, models.Zone{ZoneID: "z1", TenantID: "t1", Name: "Patio"}); err != nil {
		t.Fatalf("zone: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	if _, err := s.UpdateTableState(ctx, store.TableStateInput{TenantID: "t1", TableID: "1", Status: models.TableOccupied, Covers: 2}); err == nil {
		t.Fatalf("expected persist error")
	}
	table, err := s.GetTable(ctx, "t1", "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if table.Status != models.TableFree || table.Covers.Current != 0 {
		t.Fatalf("expected table unchanged, got %+v", table)
	}
	history, _ := s.ListTableHistory(ctx, "t1", "1")
	if len(history) != 0 {
		t.Fatalf("expected no history, got %d", len(history))
	}

	if _, err := s.CreateOrder(ctx, models.Order{OrderID: "o1", TenantID: "t1", TableID: "1"}); err == nil {
		t.Fatalf("expected persist error")
	}
	if _, err := s.GetOrder(ctx, "t1", "o1"); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected order to be rolled back, got %v", err)
	}

	if _, _, err := s.UpdateTableLayout(ctx, "t1", models.Layout{
		Nodes: []models.LayoutNode{{TableID: "1", Zone: "z1"}},
	}, []models.TableSeats{{TableID: "1", Seats: 8}}); err == nil {
		t.Fatalf("expected persist error")
	}
	if table, _ := s.GetTable(ctx, "t1", "1"); table.Seats != 4 {
		t.Fatalf("expected seats 4 after rollback, got %d", table.Seats)
	}
	if layout, _ := s.GetLayout(ctx, "t1"); len(layout.Nodes) != 0 {
		t.Fatalf("expected empty layout after rollback, got %+v", layout)
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := s.DeactivateTable(ctx, "t1", "1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	reopened, err := Open(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetOrder(ctx, "t1", "o1"); !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("expected rolled back order to stay out of the file, got %v", err)
	}
	if history, _ := reopened.ListTableHistory(ctx, "t1", "1"); len(history) != 0 {
		t.Fatalf("expected no persisted history, got %d", len(history))
	}
}
