package models

import "time"

type Alert struct {
	AlertID        string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	TableID        string     `json:"tableId"`
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"createdAt"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
}

const (
	AlertCallWaiter       = "call_waiter"
	AlertIncomingOrder    = "incoming_order"
	AlertWantsCashPayment = "wants_cash_payment"
	AlertPaymentApproved  = "payment_approved"
)

func IsAlertType(value string) bool {
	switch value {
	case AlertCallWaiter, AlertIncomingOrder, AlertWantsCashPayment, AlertPaymentApproved:
		return true
	default:
		return false
	}
}
