package models

import "time"

type User struct {
	UserID       string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Session struct {
	SessionID string    `json:"id"`
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
)

type PushSubscription struct {
	SubscriptionID string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	Endpoint       string    `json:"endpoint"`
	P256dh         string    `json:"p256dh"`
	Auth           string    `json:"auth"`
	CreatedAt      time.Time `json:"createdAt"`
}

type WebhookFailure struct {
	FailureID  string    `json:"id"`
	Provider   string    `json:"provider"`
	Payload    string    `json:"payload"`
	Error      string    `json:"error"`
	ReceivedAt time.Time `json:"receivedAt"`
}
