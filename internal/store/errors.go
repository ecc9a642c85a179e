package store

import "errors"

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTableNotFound       = errors.New("table not found")
	ErrZoneNotFound        = errors.New("zone not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrQRCodeNotFound      = errors.New("qr code not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidStatus       = errors.New("unknown status")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrMenuItemUnavailable = errors.New("menu item unavailable")
	ErrTableInactive       = errors.New("table inactive")
	ErrDuplicate           = errors.New("duplicate record")
)
