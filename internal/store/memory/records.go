package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
)

func (s *Store) ListZones(ctx context.Context, tenantID string) ([]models.Zone, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var zones []models.Zone
	for _, zone := range s.state.Zones {
		if zone.TenantID == tenantID {
			zones = append(zones, zone)
		}
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

func (s *Store) CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error) {
	if err := s.lock(); err != nil {
		return models.Zone{}, err
	}
	defer s.mu.Unlock()

	if zone.ZoneID == "" {
		zone.ZoneID = uuid.NewString()
	}
	k := key(zone.TenantID, zone.ZoneID)
	if _, exists := s.state.Zones[k]; exists {
		return models.Zone{}, fmt.Errorf("zone %s: %w", zone.ZoneID, store.ErrDuplicate)
	}
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = time.Now().UTC()
	}
	put(s, s.state.Zones, k, zone)
	if err := s.commitLocked(); err != nil {
		return models.Zone{}, err
	}
	return zone, nil
}

func (s *Store) ListMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var items []models.MenuItem
	for _, item := range s.state.Menu {
		if item.TenantID == tenantID {
			item.Modifiers = append([]models.MenuModifier(nil), item.Modifiers...)
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if err := s.lock(); err != nil {
		return models.MenuItem{}, err
	}
	defer s.mu.Unlock()

	if item.MenuItemID == "" {
		item.MenuItemID = uuid.NewString()
	}
	k := key(item.TenantID, item.MenuItemID)
	if _, exists := s.state.Menu[k]; exists {
		return models.MenuItem{}, fmt.Errorf("menu item %s: %w", item.MenuItemID, store.ErrDuplicate)
	}
	item.UpdatedAt = time.Now().UTC()
	put(s, s.state.Menu, k, item)
	if err := s.commitLocked(); err != nil {
		return models.MenuItem{}, err
	}
	return item, nil
}

func (s *Store) SetMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) (models.MenuItem, error) {
	if err := s.lock(); err != nil {
		return models.MenuItem{}, err
	}
	defer s.mu.Unlock()

	k := key(tenantID, menuItemID)
	item, ok := s.state.Menu[k]
	if !ok {
		return models.MenuItem{}, store.ErrMenuItemNotFound
	}
	item.Available = available
	item.UpdatedAt = time.Now().UTC()
	put(s, s.state.Menu, k, item)
	if err := s.commitLocked(); err != nil {
		return models.MenuItem{}, err
	}
	return item, nil
}

func (s *Store) CreateAlert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if err := s.lock(); err != nil {
		return models.Alert{}, err
	}
	defer s.mu.Unlock()

	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	put(s, s.state.Alerts, key(alert.TenantID, alert.AlertID), alert)
	if err := s.commitLocked(); err != nil {
		return models.Alert{}, err
	}
	return alert, nil
}

func (s *Store) AcknowledgeAlert(ctx context.Context, tenantID, alertID, by string, at time.Time) (models.Alert, error) {
	if err := s.lock(); err != nil {
		return models.Alert{}, err
	}
	defer s.mu.Unlock()

	k := key(tenantID, alertID)
	alert, ok := s.state.Alerts[k]
	if !ok {
		return models.Alert{}, store.ErrAlertNotFound
	}
	if alert.Acknowledged {
		return alert, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	alert.Acknowledged = true
	alert.AcknowledgedAt = &at
	alert.AcknowledgedBy = by
	put(s, s.state.Alerts, k, alert)
	if err := s.commitLocked(); err != nil {
		return models.Alert{}, err
	}
	return alert, nil
}

func (s *Store) ListAlerts(ctx context.Context, tenantID string, includeAcknowledged bool) ([]models.Alert, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var alerts []models.Alert
	for _, alert := range s.state.Alerts {
		if alert.TenantID != tenantID {
			continue
		}
		if alert.Acknowledged && !includeAcknowledged {
			continue
		}
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.Before(alerts[j].CreatedAt) })
	return alerts, nil
}

func (s *Store) CleanupAlerts(ctx context.Context, acknowledgedBefore time.Time) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	removed := 0
	for k, alert := range s.state.Alerts {
		if alert.Acknowledged && alert.AcknowledgedAt != nil && alert.AcknowledgedAt.Before(acknowledgedBefore) {
			remove(s, s.state.Alerts, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.commitLocked(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) CreateTenant(ctx context.Context, tenant models.Tenant) (models.Tenant, error) {
	if err := s.lock(); err != nil {
		return models.Tenant{}, err
	}
	defer s.mu.Unlock()

	if tenant.TenantID == "" {
		tenant.TenantID = uuid.NewString()
	}
	if _, exists := s.state.Tenants[tenant.TenantID]; exists {
		return models.Tenant{}, fmt.Errorf("tenant %s: %w", tenant.TenantID, store.ErrDuplicate)
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	put(s, s.state.Tenants, tenant.TenantID, tenant)
	if err := s.commitLocked(); err != nil {
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (models.Tenant, error) {
	if err := s.lock(); err != nil {
		return models.Tenant{}, err
	}
	defer s.mu.Unlock()

	tenant, ok := s.state.Tenants[tenantID]
	if !ok {
		return models.Tenant{}, store.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *Store) UpdateTenantSettings(ctx context.Context, tenantID string, settings json.RawMessage) (models.Tenant, error) {
	if err := s.lock(); err != nil {
		return models.Tenant{}, err
	}
	defer s.mu.Unlock()

	tenant, ok := s.state.Tenants[tenantID]
	if !ok {
		return models.Tenant{}, store.ErrTenantNotFound
	}
	tenant.Settings = append(json.RawMessage(nil), settings...)
	put(s, s.state.Tenants, tenantID, tenant)
	if err := s.commitLocked(); err != nil {
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if err := s.lock(); err != nil {
		return models.User{}, err
	}
	defer s.mu.Unlock()

	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range s.state.Users {
		if existing.TenantID == user.TenantID && existing.Email == user.Email {
			return models.User{}, fmt.Errorf("user %s: %w", user.Email, store.ErrDuplicate)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	put(s, s.state.Users, user.UserID, user)
	if err := s.commitLocked(); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, tenantID, email string) (models.User, error) {
	if err := s.lock(); err != nil {
		return models.User{}, err
	}
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.state.Users {
		if user.TenantID == tenantID && user.Email == email {
			return user, nil
		}
	}
	return models.User{}, store.ErrUserNotFound
}

func (s *Store) CreateSession(ctx context.Context, session models.Session) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if session.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	put(s, s.state.Sessions, session.SessionID, session)
	return s.commitLocked()
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	if err := s.lock(); err != nil {
		return models.Session{}, err
	}
	defer s.mu.Unlock()

	session, ok := s.state.Sessions[sessionID]
	if !ok {
		return models.Session{}, store.ErrSessionNotFound
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		delete(s.state.Sessions, sessionID)
		return models.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	remove(s, s.state.Sessions, sessionID)
	return s.commitLocked()
}

func (s *Store) SavePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	if err := s.lock(); err != nil {
		return models.PushSubscription{}, err
	}
	defer s.mu.Unlock()

	for id, existing := range s.state.Push {
		if existing.Endpoint == sub.Endpoint {
			remove(s, s.state.Push, id)
		}
	}
	if sub.SubscriptionID == "" {
		sub.SubscriptionID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	put(s, s.state.Push, sub.SubscriptionID, sub)
	if err := s.commitLocked(); err != nil {
		return models.PushSubscription{}, err
	}
	return sub, nil
}

func (s *Store) ListPushSubscriptions(ctx context.Context, tenantID string) ([]models.PushSubscription, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var subs []models.PushSubscription
	for _, sub := range s.state.Push {
		if sub.TenantID == tenantID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (s *Store) DeletePushSubscription(ctx context.Context, subscriptionID string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	remove(s, s.state.Push, subscriptionID)
	return s.commitLocked()
}

func (s *Store) RecordWebhookFailure(ctx context.Context, failure models.WebhookFailure) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if failure.FailureID == "" {
		failure.FailureID = uuid.NewString()
	}
	if failure.ReceivedAt.IsZero() {
		failure.ReceivedAt = time.Now().UTC()
	}
	s.appendWebhookFailure(failure)
	return s.commitLocked()
}

// WebhookFailures returns a copy of the failure ledger.
func (s *Store) WebhookFailures() []models.WebhookFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebhookFailure(nil), s.state.WebhookFailures...)
}

var _ store.Store = (*Store)(nil)
