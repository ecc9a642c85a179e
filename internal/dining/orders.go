package dining

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"resto/internal/models"
	"resto/internal/store"
)

const maxQuantity = 99

type OrderItemInput struct {
	MenuItemID    string
	Quantity      int
	Modifiers     []string
	Notes         string
	DiscountCents int64
}

type OrderInput struct {
	TableID       string
	Items         []OrderItemInput
	TipCents      int64
	DiscountCents int64
}

var qrActor = models.Actor{Name: "QR", Role: "customer"}

// CreateOrder validates input against the tenant catalog, prices it and
// stores it. QR orders also seat the table and raise an incoming_order alert.
func (s *Service) CreateOrder(ctx context.Context, tenantID string, input OrderInput, source string) (models.Order, error) {
	if len(input.Items) == 0 {
		return models.Order{}, invalid("items", "at least one item is required")
	}
	if input.TipCents < 0 {
		return models.Order{}, invalid("tipCents", "must not be negative")
	}
	if input.DiscountCents < 0 {
		return models.Order{}, invalid("discountCents", "must not be negative")
	}
	ids := make([]string, 0, len(input.Items))
	for i, item := range input.Items {
		if strings.TrimSpace(item.MenuItemID) == "" {
			return models.Order{}, invalid(fmt.Sprintf("items[%d].menuItemId", i), "is required")
		}
		if item.Quantity < 1 || item.Quantity > maxQuantity {
			return models.Order{}, invalid(fmt.Sprintf("items[%d].quantity", i), "must be between 1 and %d", maxQuantity)
		}
		if item.DiscountCents < 0 {
			return models.Order{}, invalid(fmt.Sprintf("items[%d].discountCents", i), "must not be negative")
		}
		ids = append(ids, strings.TrimSpace(item.MenuItemID))
	}

	table, err := s.store.GetTable(ctx, tenantID, input.TableID)
	if err != nil {
		return models.Order{}, err
	}
	if !table.Active {
		return models.Order{}, store.ErrTableNotFound
	}

	menu, err := s.catalog.Lookup(ctx, tenantID, ids)
	if err != nil {
		return models.Order{}, err
	}
	items := make([]models.OrderItem, 0, len(input.Items))
	for i, in := range input.Items {
		menuItem, ok := menu[ids[i]]
		if !ok {
			return models.Order{}, fmt.Errorf("%s: %w", ids[i], store.ErrMenuItemNotFound)
		}
		if !menuItem.Available {
			return models.Order{}, fmt.Errorf("%s: %w", menuItem.Name, store.ErrMenuItemUnavailable)
		}
		var mods []models.OrderModifier
		for _, modID := range in.Modifiers {
			mod, ok := menuItem.Modifier(modID)
			if !ok {
				return models.Order{}, invalid(fmt.Sprintf("items[%d].modifiers", i), "unknown modifier %q", modID)
			}
			mods = append(mods, models.OrderModifier{ModifierID: mod.ModifierID, Name: mod.Name, PriceCents: mod.PriceCents})
		}
		items = append(items, models.OrderItem{
			MenuItemID:     menuItem.MenuItemID,
			Name:           menuItem.Name,
			Quantity:       in.Quantity,
			UnitPriceCents: menuItem.PriceCents,
			Modifiers:      mods,
			DiscountCents:  in.DiscountCents,
			Notes:          strings.TrimSpace(in.Notes),
		})
	}

	settings, err := s.tenantSettings(ctx, tenantID)
	if err != nil {
		return models.Order{}, err
	}
	if input.TipCents > 0 && !settings.TipsEnabled {
		return models.Order{}, invalid("tipCents", "tips are disabled")
	}

	order := models.Order{
		TenantID:      tenantID,
		TableID:       table.TableID,
		Source:        source,
		Status:        models.OrderOpen,
		PaymentStatus: models.PaymentPending,
		Items:         items,
		DiscountCents: input.DiscountCents,
		TipCents:      input.TipCents,
		CreatedAt:     s.now(),
	}
	ApplyTotals(&order, settings)
	if input.DiscountCents > order.SubtotalCents {
		return models.Order{}, invalid("discountCents", "exceeds subtotal")
	}

	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return models.Order{}, err
	}
	s.events.OrderCreated(ctx, created)

	if source == models.SourceQR {
		s.seatFromQR(ctx, table)
		s.raise(ctx, models.Alert{
			TenantID: tenantID,
			TableID:  table.TableID,
			Type:     models.AlertIncomingOrder,
			Message:  fmt.Sprintf("New order from table %s", table.Number),
		})
	}
	s.publishSummary(ctx, tenantID)
	return created, nil
}

func (s *Service) seatFromQR(ctx context.Context, table models.Table) {
	if !store.ValidTableTransition(table.Status, models.TableOccupied) {
		return
	}
	updated, err := s.store.UpdateTableState(ctx, store.TableStateInput{
		TenantID:   table.TenantID,
		TableID:    table.TableID,
		Status:     models.TableOccupied,
		Actor:      qrActor,
		Reason:     "qr order",
		OccurredAt: s.now(),
	})
	if err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			log.Printf("qr seat table=%s tenant=%s: %v", table.TableID, table.TenantID, err)
		}
		return
	}
	s.events.TableUpdated(ctx, updated)
}

func (s *Service) GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error) {
	return s.store.GetOrder(ctx, tenantID, orderID)
}

func (s *Service) ListOrders(ctx context.Context, tenantID string, filter models.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !store.IsOrderStatus(filter.Status) {
		return nil, invalid("status", "unknown order status %q", filter.Status)
	}
	if filter.PaymentStatus != "" && !store.IsPaymentStatus(filter.PaymentStatus) {
		return nil, invalid("paymentStatus", "unknown payment status %q", filter.PaymentStatus)
	}
	return s.store.ListOrders(ctx, tenantID, filter)
}

func (s *Service) OrdersSummary(ctx context.Context, tenantID string) (models.OrdersSummary, error) {
	return s.store.OrdersSummary(ctx, tenantID)
}

func (s *Service) UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string) (models.Order, error) {
	order, err := s.store.UpdateOrderStatus(ctx, tenantID, orderID, strings.TrimSpace(status), s.now())
	if err != nil {
		return models.Order{}, err
	}
	s.events.OrderUpdated(ctx, order)
	s.publishSummary(ctx, tenantID)
	return order, nil
}

// UpdatePaymentStatus applies a payment result. A repeat of the current
// terminal status changes nothing and publishes nothing.
func (s *Service) UpdatePaymentStatus(ctx context.Context, tenantID, orderID, status, reference string) (models.Order, error) {
	order, changed, err := s.store.UpdatePaymentStatus(ctx, store.PaymentUpdateInput{
		TenantID:   tenantID,
		OrderID:    orderID,
		Status:     strings.TrimSpace(status),
		Reference:  strings.TrimSpace(reference),
		OccurredAt: s.now(),
	})
	if err != nil {
		return models.Order{}, err
	}
	if !changed {
		return order, nil
	}
	s.events.OrderUpdated(ctx, order)
	if order.PaymentStatus == models.PaymentPaid {
		s.raise(ctx, models.Alert{
			TenantID: tenantID,
			TableID:  order.TableID,
			Type:     models.AlertPaymentApproved,
			Message:  fmt.Sprintf("Payment approved for order %s", order.OrderID),
		})
	}
	s.publishSummary(ctx, tenantID)
	return order, nil
}

func (s *Service) SetPaymentReference(ctx context.Context, tenantID, orderID, reference string) (models.Order, error) {
	return s.store.SetPaymentReference(ctx, tenantID, orderID, reference)
}
