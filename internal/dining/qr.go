package dining

import (
	"context"
	"strings"

	"resto/internal/models"
	"resto/internal/store"
)

type QRView struct {
	Table    models.Table
	Menu     []models.MenuItem
	Settings models.TenantSettings
}

func (s *Service) resolveQR(ctx context.Context, code string) (models.Table, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Table{}, store.ErrQRCodeNotFound
	}
	return s.store.FindTableByQR(ctx, code)
}

// QR returns what a customer sees after scanning a table code.
func (s *Service) QR(ctx context.Context, code string) (QRView, error) {
	table, err := s.resolveQR(ctx, code)
	if err != nil {
		return QRView{}, err
	}
	items, err := s.catalog.Items(ctx, table.TenantID)
	if err != nil {
		return QRView{}, err
	}
	menu := make([]models.MenuItem, 0, len(items))
	for _, item := range items {
		if item.Available {
			menu = append(menu, item)
		}
	}
	settings, err := s.tenantSettings(ctx, table.TenantID)
	if err != nil {
		return QRView{}, err
	}
	return QRView{Table: table, Menu: menu, Settings: settings}, nil
}

func (s *Service) QROrder(ctx context.Context, code string, input OrderInput) (models.Order, error) {
	table, err := s.resolveQR(ctx, code)
	if err != nil {
		return models.Order{}, err
	}
	input.TableID = table.TableID
	input.DiscountCents = 0
	for i := range input.Items {
		input.Items[i].DiscountCents = 0
	}
	return s.CreateOrder(ctx, table.TenantID, input, models.SourceQR)
}

// QRAlert lets a customer call a waiter or ask to pay in cash.
func (s *Service) QRAlert(ctx context.Context, code, alertType string) (models.Alert, error) {
	if alertType != models.AlertCallWaiter && alertType != models.AlertWantsCashPayment {
		return models.Alert{}, invalid("type", "must be %s or %s", models.AlertCallWaiter, models.AlertWantsCashPayment)
	}
	table, err := s.resolveQR(ctx, code)
	if err != nil {
		return models.Alert{}, err
	}
	return s.createAlert(ctx, models.Alert{
		TenantID: table.TenantID,
		TableID:  table.TableID,
		Type:     alertType,
		Message:  alertMessage(alertType, table),
	})
}
