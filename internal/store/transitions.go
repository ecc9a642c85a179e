package store

import (
	"fmt"
	"time"

	"resto/internal/models"

	"github.com/google/uuid"
)

var tableTransitions = map[string][]string{
	models.TableFree:     {models.TableOccupied, models.TableReserved, models.TableClosed},
	models.TableOccupied: {models.TableCleaning},
	models.TableReserved: {models.TableFree, models.TableOccupied},
	models.TableCleaning: {models.TableFree, models.TableClosed},
	models.TableClosed:   {models.TableFree},
}

var orderTransitions = map[string][]string{
	models.OrderOpen:      {models.OrderPreparing, models.OrderClosed},
	models.OrderPreparing: {models.OrderReady, models.OrderClosed},
	models.OrderReady:     {models.OrderDelivered, models.OrderClosed},
	models.OrderDelivered: {models.OrderClosed},
}

var paymentTransitions = map[string][]string{
	models.PaymentPending: {models.PaymentPaid, models.PaymentCancelled},
}

func ValidTableTransition(from, to string) bool {
	return allowed(tableTransitions, from, to)
}

func ValidOrderTransition(from, to string) bool {
	return allowed(orderTransitions, from, to)
}

// ValidPaymentTransition returns noop=true when to equals a terminal from.
func ValidPaymentTransition(from, to string) (ok bool, noop bool) {
	if from == to && from != models.PaymentPending {
		return true, true
	}
	return allowed(paymentTransitions, from, to), false
}

func IsPaymentStatus(status string) bool {
	for _, s := range models.PaymentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsOrderStatus(status string) bool {
	for _, s := range models.OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func allowed(table map[string][]string, from, to string) bool {
	targets, ok := table[from]
	if !ok {
		return false
	}
	for _, status := range targets {
		if status == to {
			return true
		}
	}
	return false
}

// ApplyTableState mutates table according to input and returns the history
// entry to append. The table is left untouched on error.
func ApplyTableState(table *models.Table, input TableStateInput) (models.HistoryEntry, error) {
	if !models.IsTableStatus(input.Status) {
		return models.HistoryEntry{}, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}
	if !table.Active {
		return models.HistoryEntry{}, ErrTableInactive
	}
	if !ValidTableTransition(table.Status, input.Status) {
		return models.HistoryEntry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, table.Status, input.Status)
	}
	at := input.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	from := table.Status
	if input.Status == models.TableOccupied {
		covers := input.Covers
		if covers < 0 {
			covers = 0
		}
		started := at
		table.Covers.Current = covers
		table.Covers.Total += covers
		table.Covers.Sessions++
		table.Covers.SessionStartedAt = &started
	}
	if from == models.TableOccupied {
		released := at
		table.Covers.Current = 0
		table.Covers.LastReleasedAt = &released
	}
	table.Status = input.Status
	table.UpdatedAt = at

	return models.HistoryEntry{
		EntryID:   uuid.NewString(),
		TenantID:  table.TenantID,
		TableID:   table.TableID,
		From:      from,
		To:        input.Status,
		Actor:     input.Actor,
		Reason:    input.Reason,
		CreatedAt: at,
	}, nil
}
