package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `
	tenant_id, order_id, table_id, source, status, payment_status, items,
	subtotal_cents, discount_cents, tax_cents, tip_cents, service_charge_cents, total_cents,
	payment_reference, created_at, updated_at, closed_at`

func scanOrder(row rowScanner) (models.Order, error) {
	var order models.Order
	var items []byte
	var reference sql.NullString
	var closedAt sql.NullTime
	if err := row.Scan(
		&order.TenantID, &order.OrderID, &order.TableID, &order.Source, &order.Status, &order.PaymentStatus, &items,
		&order.SubtotalCents, &order.DiscountCents, &order.TaxCents, &order.TipCents, &order.ServiceChargeCents, &order.TotalCents,
		&reference, &order.CreatedAt, &order.UpdatedAt, &closedAt,
	); err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return models.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.PaymentReference = nullString(reference)
	order.ClosedAt = nullTimePtr(closedAt)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

// CreateOrder locks the owning table row so order creation is serialized with
// table state changes.
func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
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
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = lockTable(ctx, tx, order.TenantID, order.TableID); err != nil {
		return models.Order{}, err
	}
	var items []byte
	if items, err = json.Marshal(order.Items); err != nil {
		return models.Order{}, err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, order.TenantID, order.OrderID, order.TableID, order.Source, order.Status, order.PaymentStatus, items,
		order.SubtotalCents, order.DiscountCents, order.TaxCents, order.TipCents, order.ServiceChargeCents, order.TotalCents,
		nullIfEmpty(order.PaymentReference), order.CreatedAt, order.UpdatedAt, nullTime(order.ClosedAt)); err != nil {
		err = mapWriteError(err, "order "+order.OrderID, store.ErrTableNotFound)
		return models.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, orderID string) (models.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND order_id = $2
	`, tenantID, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, filter models.OrderFilter) ([]models.Order, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}
	add("table_id", filter.TableID)
	add("status", filter.Status)
	add("payment_status", filter.PaymentStatus)

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+strings.Join(conditions, " AND ")+`
		ORDER BY created_at, order_id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Store) UpdateOrderStatus(ctx context.Context, tenantID, orderID, status string, at time.Time) (models.Order, error) {
	if !store.IsOrderStatus(status) {
		return models.Order{}, fmt.Errorf("%w: %q", store.ErrInvalidStatus, status)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := lockOrder(ctx, tx, tenantID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !store.ValidOrderTransition(order.Status, status) {
		err = fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, order.Status, status)
		return models.Order{}, err
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
	if _, err = tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4, closed_at = $5
		WHERE tenant_id = $1 AND order_id = $2
	`, tenantID, orderID, order.Status, order.UpdatedAt, nullTime(order.ClosedAt)); err != nil {
		return models.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, input store.PaymentUpdateInput) (models.Order, bool, error) {
	if !store.IsPaymentStatus(input.Status) {
		return models.Order{}, false, fmt.Errorf("%w: %q", store.ErrInvalidStatus, input.Status)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	order, err := lockOrder(ctx, tx, input.TenantID, input.OrderID)
	if err != nil {
		return models.Order{}, false, err
	}
	valid, noop := store.ValidPaymentTransition(order.PaymentStatus, input.Status)
	if !valid {
		err = fmt.Errorf("%w: payment %s -> %s", store.ErrInvalidTransition, order.PaymentStatus, input.Status)
		return models.Order{}, false, err
	}
	if noop {
		if err = tx.Commit(ctx); err != nil {
			return models.Order{}, false, err
		}
		return order, false, nil
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
	if _, err = tx.Exec(ctx, `
		UPDATE orders SET payment_status = $3, payment_reference = $4, updated_at = $5
		WHERE tenant_id = $1 AND order_id = $2
	`, input.TenantID, input.OrderID, order.PaymentStatus, nullIfEmpty(order.PaymentReference), order.UpdatedAt); err != nil {
		return models.Order{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) SetPaymentReference(ctx context.Context, tenantID, orderID, reference string) (models.Order, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE orders SET payment_reference = $3, updated_at = $4
		WHERE tenant_id = $1 AND order_id = $2
		RETURNING `+orderColumns, tenantID, orderID, nullIfEmpty(reference), time.Now().UTC())
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}

func (s *Store) OrdersSummary(ctx context.Context, tenantID string) (models.OrdersSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, payment_status, total_cents, created_at
		FROM orders
		WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return models.OrdersSummary{}, err
	}
	defer rows.Close()

	summary := store.NewSummary()
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.Status, &order.PaymentStatus, &order.TotalCents, &order.CreatedAt); err != nil {
			return models.OrdersSummary{}, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		store.AddToSummary(&summary, order)
	}
	return summary, rows.Err()
}

func lockOrder(ctx context.Context, tx pgx.Tx, tenantID, orderID string) (models.Order, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND order_id = $2
		FOR UPDATE
	`, tenantID, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return order, nil
}
