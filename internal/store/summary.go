package store

import (
	"time"

	"resto/internal/models"
)

func NewSummary() models.OrdersSummary {
	summary := models.OrdersSummary{
		ByStatus:  make(map[string]int, len(models.OrderStatuses)),
		ByPayment: make(map[string]int, len(models.PaymentStatuses)),
	}
	for _, status := range models.OrderStatuses {
		summary.ByStatus[status] = 0
	}
	for _, status := range models.PaymentStatuses {
		summary.ByPayment[status] = 0
	}
	return summary
}

func Summarize(orders []models.Order) models.OrdersSummary {
	summary := NewSummary()
	for _, order := range orders {
		AddToSummary(&summary, order)
	}
	return summary
}

func AddToSummary(summary *models.OrdersSummary, order models.Order) {
	summary.Total++
	summary.ByStatus[order.Status]++
	summary.ByPayment[order.PaymentStatus]++
	if order.PaymentStatus == models.PaymentPending {
		summary.PendingPayments++
		if order.Status == models.OrderClosed {
			summary.ClosedUnpaid++
		}
	}
	if order.PaymentStatus == models.PaymentPaid {
		summary.RevenueCents += order.TotalCents
	}
	created := order.CreatedAt
	if summary.OldestAt == nil || created.Before(*summary.OldestAt) {
		summary.OldestAt = timePtr(created)
	}
	if summary.LatestAt == nil || created.After(*summary.LatestAt) {
		summary.LatestAt = timePtr(created)
	}
}

func timePtr(value time.Time) *time.Time {
	return &value
}
