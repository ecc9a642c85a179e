package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if err := s.lock(); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	if _, ok := s.state.Tables[key(order.TenantID, order.TableID)]; !ok {
		return models.Order{}, store.ErrTableNotFound
	}
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	k := key(order.TenantID, order.OrderID)
	if _, exists := s.state.Orders[k]; exists {
		return models.Order{}, fmt.Errorf("order %s: %w", order.OrderID, store.ErrDuplicate)
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if order.Status == "" {
		order.Status = models.OrderOpen
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentPending
	}
	for i := range order.Items {
		if order.Items[i].ItemID == "" {
			order.Items[i].ItemID = uuid.NewString()
		}
	}
	order = cloneOrder(order)
	put(s, s.state.Orders, k, order)
	if err := s.commitLocked(); err != nil {
		return models.Order{}, err
	}
	return cloneOrder(order), nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error) {
	if err := s.lock(); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	order, ok := s.state.Orders[key(tenantID, orderID)]
	if !ok {
		return models.Order{}, store.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, filter models.OrderFilter) ([]models.Order, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var orders []models.Order
	for _, order := range s.state.Orders {
		if order.TenantID != tenantID {
			continue
		}
		if filter.TableID != "" && order.TableID != filter.TableID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderID < orders[j].OrderID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string, at time.Time) (models.Order, error) {
	if err := s.lock(); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	if !store.IsOrderStatus(status) {
		return models.Order{}, fmt.Errorf("%w: %q", store.ErrInvalidStatus, status)
	}
	k := key(tenantID, orderID)
	order, ok := s.state.Orders[k]
	if !ok {
		return models.Order{}, store.ErrOrderNotFound
	}
	if !store.ValidOrderTransition(order.Status, status) {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, order.Status, status)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	order.Status = status
	order.UpdatedAt = at
	if status == models.OrderClosed {
		closed := at
		order.ClosedAt = &closed
	}
	put(s, s.state.Orders, k, order)
	if err := s.commitLocked(); err != nil {
		return models.Order{}, err
	}
	return cloneOrder(order), nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, input store.PaymentUpdateInput) (models.Order, bool, error) {
	if err := s.lock(); err != nil {
		return models.Order{}, false, err
	}
	defer s.mu.Unlock()

	if !store.IsPaymentStatus(input.Status) {
		return models.Order{}, false, fmt.Errorf("%w: %q", store.ErrInvalidStatus, input.Status)
	}
	k := key(input.TenantID, input.OrderID)
	order, ok := s.state.Orders[k]
	if !ok {
		return models.Order{}, false, store.ErrOrderNotFound
	}
	valid, noop := store.ValidPaymentTransition(order.PaymentStatus, input.Status)
	if !valid {
		return models.Order{}, false, fmt.Errorf("%w: payment %s -> %s", store.ErrInvalidTransition, order.PaymentStatus, input.Status)
	}
	if noop {
		return cloneOrder(order), false, nil
	}
	at := input.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	order.PaymentStatus = input.Status
	if input.Reference != "" {
		order.PaymentReference = input.Reference
	}
	order.UpdatedAt = at
	put(s, s.state.Orders, k, order)
	if err := s.commitLocked(); err != nil {
		return models.Order{}, false, err
	}
	return cloneOrder(order), true, nil
}

func (s *Store) SetPaymentReference(ctx context.Context, tenantID, orderID, reference string) (models.Order, error) {
	if err := s.lock(); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	k := key(tenantID, orderID)
	order, ok := s.state.Orders[k]
	if !ok {
		return models.Order{}, store.ErrOrderNotFound
	}
	order.PaymentReference = reference
	order.UpdatedAt = time.Now().UTC()
	put(s, s.state.Orders, k, order)
	if err := s.commitLocked(); err != nil {
		return models.Order{}, err
	}
	return cloneOrder(order), nil
}

func (s *Store) OrdersSummary(ctx context.Context, tenantID string) (models.OrdersSummary, error) {
	if err := s.lock(); err != nil {
		return models.OrdersSummary{}, err
	}
	defer s.mu.Unlock()

	summary := store.NewSummary()
	for _, order := range s.state.Orders {
		if order.TenantID == tenantID {
			store.AddToSummary(&summary, order)
		}
	}
	return summary, nil
}

func cloneOrder(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.Modifiers = append([]models.OrderModifier(nil), item.Modifiers...)
		items[i] = item
	}
	order.Items = items
	if order.ClosedAt != nil {
		closed := *order.ClosedAt
		order.ClosedAt = &closed
	}
	return order
}
