package dining

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"resto/internal/models"
	"resto/internal/store"
	"resto/internal/store/memory"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []string
	tables []models.Table
	alerts []models.Alert
}

func (r *recordedEvents) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordedEvents) TableUpdated(ctx context.Context, t models.Table) {
	r.add("table.updated")
	r.mu.Lock()
	r.tables = append(r.tables, t)
	r.mu.Unlock()
}

func (r *recordedEvents) LayoutUpdated(ctx context.Context, tenantID string, l models.Layout) {
	r.add("table.layout.updated")
}

func (r *recordedEvents) OrderCreated(ctx context.Context, o models.Order) { r.add("order.created") }
func (r *recordedEvents) OrderUpdated(ctx context.Context, o models.Order) { r.add("order.updated") }

func (r *recordedEvents) SummaryUpdated(ctx context.Context, tenantID string, s models.OrdersSummary) {
	r.add("order.summary.updated")
}

func (r *recordedEvents) AlertCreated(ctx context.Context, a models.Alert) {
	r.add("alert.created")
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
}

func (r *recordedEvents) AlertUpdated(ctx context.Context, a models.Alert) { r.add("alert.updated") }

func (r *recordedEvents) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recordedEvents) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	if _, err := st.CreateTenant(ctx, models.Tenant{
		TenantID: "t1",
		Name:     "La Esquina",
		Active:   true,
		Settings: json.RawMessage(`{"taxRateBps":1000}`),
	}); err != nil {
		t.Fatalf("tenant: %v", err)
	}
	for _, table := range []models.Table{
		{TableID: "1", TenantID: "t1", Number: "1", QRCode: "qr-1", Seats: 4},
		{TableID: "2", TenantID: "t1", Number: "2", QRCode: "qr-2", Seats: 2, Status: models.TableOccupied},
	} {
		if _, err := st.CreateTable(ctx, table); err != nil {
			t.Fatalf("table: %v", err)
		}
	}
	for _, item := range []models.MenuItem{
		{MenuItemID: "m1", TenantID: "t1", Name: "Empanada", PriceCents: 500, Available: true,
			Modifiers: []models.MenuModifier{{ModifierID: "picante", Name: "Picante", PriceCents: 100}}},
		{MenuItemID: "m2", TenantID: "t1", Name: "Locro", PriceCents: 2000, Available: false},
	} {
		if _, err := st.CreateMenuItem(ctx, item); err != nil {
			t.Fatalf("menu: %v", err)
		}
	}
	events := &recordedEvents{}
	return NewService(st, events, Options{}), st, events
}

func TestCreateOrderPricesFromCatalog(t *testing.T) {
	svc, _, events := newTestService(t)
	order, err := svc.CreateOrder(context.Background(), "t1", OrderInput{
		TableID: "1",
		Items:   []OrderItemInput{{MenuItemID: "m1", Quantity: 2, Modifiers: []string{"picante"}}},
	}, models.SourceStaff)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.SubtotalCents != 1200 || order.TaxCents != 120 || order.TotalCents != 1320 {
		t.Fatalf("unexpected totals %+v", order)
	}
	if order.Status != models.OrderOpen || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("unexpected statuses %s/%s", order.Status, order.PaymentStatus)
	}
	if !events.has("order.created") || !events.has("order.summary.updated") {
		t.Fatalf("expected order events, got %v", events.events)
	}
	if events.has("alert.created") {
		t.Fatalf("staff orders must not raise alerts")
	}
}

func TestCreateOrderFailures(t *testing.T) {
	cases := []struct {
		name  string
		input OrderInput
		want  error
	}{
		{"empty items", OrderInput{TableID: "1"}, ErrValidation},
		{"quantity", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 0}}}, ErrValidation},
		{"too many", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 100}}}, ErrValidation},
		{"unknown item", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "ghost", Quantity: 1}}}, store.ErrMenuItemNotFound},
		{"unavailable", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m2", Quantity: 1}}}, store.ErrMenuItemUnavailable},
		{"unknown modifier", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1, Modifiers: []string{"x"}}}}, ErrValidation},
		{"missing table", OrderInput{TableID: "9", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}}, store.ErrTableNotFound},
		{"discount over subtotal", OrderInput{TableID: "1", DiscountCents: 10000, Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}}, ErrValidation},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := newTestService(t)
			_, err := svc.CreateOrder(context.Background(), "t1", tt.input, models.SourceStaff)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			orders, _ := st.ListOrders(context.Background(), "t1", models.OrderFilter{})
			if len(orders) != 0 {
				t.Fatalf("no order may be created on failure, got %d", len(orders))
			}
		})
	}
}

func TestQROrderSeatsTableAndAlerts(t *testing.T) {
	svc, st, events := newTestService(t)
	ctx := context.Background()

	order, err := svc.QROrder(ctx, "qr-1", OrderInput{Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}})
	if err != nil {
		t.Fatalf("qr order: %v", err)
	}
	if order.Source != models.SourceQR || order.TableID != "1" {
		t.Fatalf("unexpected order %+v", order)
	}
	table, _ := st.GetTable(ctx, "t1", "1")
	if table.Status != models.TableOccupied {
		t.Fatalf("expected table seated, got %s", table.Status)
	}
	history, _ := st.ListTableHistory(ctx, "t1", "1")
	if len(history) != 1 || history[0].Actor.Role != "customer" {
		t.Fatalf("unexpected history %+v", history)
	}
	if len(events.alerts) != 1 || events.alerts[0].Type != models.AlertIncomingOrder {
		t.Fatalf("expected incoming_order alert, got %+v", events.alerts)
	}

	if _, err := svc.QROrder(ctx, "qr-2", OrderInput{Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}}); err != nil {
		t.Fatalf("qr order on occupied table: %v", err)
	}
	history, _ = st.ListTableHistory(ctx, "t1", "2")
	if len(history) != 0 {
		t.Fatalf("occupied table must not transition again")
	}

	if _, err := svc.QROrder(ctx, "nope", OrderInput{Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}}); !errors.Is(err, store.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
}

func TestQRAlert(t *testing.T) {
	svc, _, events := newTestService(t)
	alert, err := svc.QRAlert(context.Background(), "qr-1", models.AlertCallWaiter)
	if err != nil {
		t.Fatalf("alert: %v", err)
	}
	if alert.TenantID != "t1" || alert.TableID != "1" || alert.Message == "" {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if !events.has("alert.created") {
		t.Fatalf("expected alert.created")
	}
	if _, err := svc.QRAlert(context.Background(), "qr-1", models.AlertPaymentApproved); !errors.Is(err, ErrValidation) {
		t.Fatalf("customers cannot raise payment alerts, got %v", err)
	}
}

func TestChangeTableStatePublishes(t *testing.T) {
	svc, _, events := newTestService(t)
	table, err := svc.ChangeTableState(context.Background(), "t1", "1", StateChange{Status: models.TableReserved, Reason: "booking"})
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if table.Status != models.TableReserved || len(events.tables) != 1 {
		t.Fatalf("unexpected result %+v %v", table, events.events)
	}

	_, err = svc.ChangeTableState(context.Background(), "t1", "2", StateChange{Status: models.TableFree})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(events.tables) != 1 {
		t.Fatalf("rejected change must not publish")
	}
}

func TestSaveLayoutUnknownTable(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.SaveLayout(context.Background(), "t1", models.Layout{Nodes: []models.LayoutNode{{TableID: "ghost"}}}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPaymentRedeliveryIsNoop(t *testing.T) {
	svc, _, events := newTestService(t)
	ctx := context.Background()
	order, err := svc.CreateOrder(ctx, "t1", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}}, models.SourceStaff)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.UpdatePaymentStatus(ctx, "t1", order.OrderID, models.PaymentPaid, "pay-1"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if len(events.alerts) != 1 || events.alerts[0].Type != models.AlertPaymentApproved {
		t.Fatalf("expected payment_approved alert, got %+v", events.alerts)
	}
	before := len(events.events)
	if _, err := svc.UpdatePaymentStatus(ctx, "t1", order.OrderID, models.PaymentPaid, "pay-1"); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(events.events) != before {
		t.Fatalf("redelivery must not publish, got %v", events.events[before:])
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := st.CreateUser(ctx, models.User{TenantID: "t1", Name: "Ana", Email: "ana@example.com", Role: models.RoleWaiter, PasswordHash: hash}); err != nil {
		t.Fatalf("user: %v", err)
	}

	if _, _, err := svc.Login(ctx, "t1", "ana@example.com", "wrong"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "t1", "bob@example.com", "secret"); !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	session, user, err := svc.Login(ctx, "t1", "ANA@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.TenantID != "t1" || session.Role != models.RoleWaiter || user.Name != "Ana" {
		t.Fatalf("unexpected session %+v", session)
	}
	got, err := svc.Authenticate(ctx, session.SessionID)
	if err != nil || got.UserID != user.UserID {
		t.Fatalf("authenticate: %v %+v", err, got)
	}
	if err := svc.Logout(ctx, session.SessionID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.SessionID); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestMenuWritesInvalidateCatalog(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Menu(ctx, "t1"); err != nil {
		t.Fatalf("menu: %v", err)
	}
	if _, err := svc.SetMenuItemAvailability(ctx, "t1", "m2", true); err != nil {
		t.Fatalf("availability: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, "t1", OrderInput{TableID: "1", Items: []OrderItemInput{{MenuItemID: "m2", Quantity: 1}}}, models.SourceStaff); err != nil {
		t.Fatalf("expected fresh catalog after availability change, got %v", err)
	}
}
