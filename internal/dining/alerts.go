package dining

import (
	"context"
	"fmt"
	"log"
	"time"

	"resto/internal/models"
)

func (s *Service) ListAlerts(ctx context.Context, tenantID string, includeAcknowledged bool) ([]models.Alert, error) {
	return s.store.ListAlerts(ctx, tenantID, includeAcknowledged)
}

func (s *Service) AcknowledgeAlert(ctx context.Context, tenantID, alertID, by string) (models.Alert, error) {
	alert, err := s.store.AcknowledgeAlert(ctx, tenantID, alertID, by, s.now())
	if err != nil {
		return models.Alert{}, err
	}
	s.events.AlertUpdated(ctx, alert)
	return alert, nil
}

// CleanupAlerts drops acknowledged alerts older than retention.
func (s *Service) CleanupAlerts(ctx context.Context, retention time.Duration) (int, error) {
	return s.store.CleanupAlerts(ctx, s.now().Add(-retention))
}

func (s *Service) createAlert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if !models.IsAlertType(alert.Type) {
		return models.Alert{}, invalid("type", "unknown alert type %q", alert.Type)
	}
	alert.CreatedAt = s.now()
	created, err := s.store.CreateAlert(ctx, alert)
	if err != nil {
		return models.Alert{}, err
	}
	s.events.AlertCreated(ctx, created)
	return created, nil
}

// raise records a side-effect alert. Failures are logged and swallowed since
// the mutation that triggered it is already committed.
func (s *Service) raise(ctx context.Context, alert models.Alert) {
	if _, err := s.createAlert(ctx, alert); err != nil {
		log.Printf("raise alert type=%s tenant=%s table=%s: %v", alert.Type, alert.TenantID, alert.TableID, err)
	}
}

func alertMessage(alertType string, table models.Table) string {
	switch alertType {
	case models.AlertCallWaiter:
		return fmt.Sprintf("Table %s is calling a waiter", table.Number)
	case models.AlertWantsCashPayment:
		return fmt.Sprintf("Table %s wants to pay in cash", table.Number)
	default:
		return fmt.Sprintf("Table %s: %s", table.Number, alertType)
	}
}
