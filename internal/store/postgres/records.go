package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) ListZones(ctx context.Context, tenantID string) ([]models.Zone, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT zone_id, tenant_id, name, color, created_at
		FROM zones
		WHERE tenant_id = $1
		ORDER BY name, zone_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var zone models.Zone
		if err := rows.Scan(&zone.ZoneID, &zone.TenantID, &zone.Name, &zone.Color, &zone.CreatedAt); err != nil {
			return nil, err
		}
		zone.CreatedAt = zone.CreatedAt.UTC()
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

func (s *Store) CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error) {
	if zone.ZoneID == "" {
		zone.ZoneID = uuid.NewString()
	}
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO zones (tenant_id, zone_id, name, color, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, zone.TenantID, zone.ZoneID, zone.Name, zone.Color, zone.CreatedAt); err != nil {
		return models.Zone{}, mapWriteError(err, "zone "+zone.ZoneID, store.ErrTenantNotFound)
	}
	return zone, nil
}

const menuColumns = `menu_item_id, tenant_id, name, category, price_cents, available, modifiers, updated_at`

func scanMenuItem(row rowScanner) (models.MenuItem, error) {
	var item models.MenuItem
	var modifiers []byte
	if err := row.Scan(&item.MenuItemID, &item.TenantID, &item.Name, &item.Category, &item.PriceCents, &item.Available, &modifiers, &item.UpdatedAt); err != nil {
		return models.MenuItem{}, err
	}
	if err := json.Unmarshal(modifiers, &item.Modifiers); err != nil {
		return models.MenuItem{}, fmt.Errorf("decode menu modifiers: %w", err)
	}
	if len(item.Modifiers) == 0 {
		item.Modifiers = nil
	}
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func (s *Store) ListMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+menuColumns+`
		FROM menu_items
		WHERE tenant_id = $1
		ORDER BY category, name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if item.MenuItemID == "" {
		item.MenuItemID = uuid.NewString()
	}
	item.UpdatedAt = time.Now().UTC()
	modifiers := item.Modifiers
	if modifiers == nil {
		modifiers = []models.MenuModifier{}
	}
	encoded, err := json.Marshal(modifiers)
	if err != nil {
		return models.MenuItem{}, err
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO menu_items (`+menuColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.MenuItemID, item.TenantID, item.Name, item.Category, item.PriceCents, item.Available, encoded, item.UpdatedAt); err != nil {
		return models.MenuItem{}, mapWriteError(err, "menu item "+item.MenuItemID, store.ErrTenantNotFound)
	}
	return item, nil
}

func (s *Store) SetMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) (models.MenuItem, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE menu_items SET available = $3, updated_at = $4
		WHERE tenant_id = $1 AND menu_item_id = $2
		RETURNING `+menuColumns, tenantID, menuItemID, available, time.Now().UTC())
	item, err := scanMenuItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MenuItem{}, store.ErrMenuItemNotFound
		}
		return models.MenuItem{}, err
	}
	return item, nil
}

const alertColumns = `alert_id, tenant_id, table_id, type, message, created_at, acknowledged_at, acknowledged_by`

func scanAlert(row rowScanner) (models.Alert, error) {
	var alert models.Alert
	var ackAt sql.NullTime
	var ackBy sql.NullString
	if err := row.Scan(&alert.AlertID, &alert.TenantID, &alert.TableID, &alert.Type, &alert.Message, &alert.CreatedAt, &ackAt, &ackBy); err != nil {
		return models.Alert{}, err
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.AcknowledgedAt = nullTimePtr(ackAt)
	alert.Acknowledged = alert.AcknowledgedAt != nil
	alert.AcknowledgedBy = nullString(ackBy)
	return alert, nil
}

func (s *Store) CreateAlert(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, alert.AlertID, alert.TenantID, alert.TableID, alert.Type, alert.Message, alert.CreatedAt,
		nullTime(alert.AcknowledgedAt), nullIfEmpty(alert.AcknowledgedBy)); err != nil {
		return models.Alert{}, mapWriteError(err, "alert "+alert.AlertID, nil)
	}
	return alert, nil
}

// AcknowledgeAlert keeps the first acknowledgement when called again.
func (s *Store) AcknowledgeAlert(ctx context.Context, tenantID, alertID, by string, at time.Time) (models.Alert, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts
		SET acknowledged_at = COALESCE(acknowledged_at, $3),
			acknowledged_by = CASE WHEN acknowledged_at IS NULL THEN $4 ELSE acknowledged_by END
		WHERE tenant_id = $1 AND alert_id = $2
		RETURNING `+alertColumns, tenantID, alertID, at, nullIfEmpty(by))
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Alert{}, store.ErrAlertNotFound
		}
		return models.Alert{}, err
	}
	return alert, nil
}

func (s *Store) ListAlerts(ctx context.Context, tenantID string, includeAcknowledged bool) ([]models.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE tenant_id = $1 AND (acknowledged_at IS NULL OR $2)
		ORDER BY created_at, alert_id
	`, tenantID, includeAcknowledged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (s *Store) CleanupAlerts(ctx context.Context, acknowledgedBefore time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM alerts WHERE acknowledged_at IS NOT NULL AND acknowledged_at < $1
	`, acknowledgedBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CreateTenant(ctx context.Context, tenant models.Tenant) (models.Tenant, error) {
	if tenant.TenantID == "" {
		tenant.TenantID = uuid.NewString()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (tenant_id, name, active, settings, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, tenant.TenantID, tenant.Name, tenant.Active, rawJSON(tenant.Settings), tenant.CreatedAt); err != nil {
		return models.Tenant{}, mapWriteError(err, "tenant "+tenant.TenantID, nil)
	}
	return tenant, nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (models.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, name, active, settings, created_at FROM tenants WHERE tenant_id = $1
	`, tenantID)
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, store.ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func (s *Store) UpdateTenantSettings(ctx context.Context, tenantID string, settings json.RawMessage) (models.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tenants SET settings = $2 WHERE tenant_id = $1
		RETURNING tenant_id, name, active, settings, created_at
	`, tenantID, rawJSON(settings))
	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, store.ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

func scanTenant(row rowScanner) (models.Tenant, error) {
	var tenant models.Tenant
	var settings []byte
	if err := row.Scan(&tenant.TenantID, &tenant.Name, &tenant.Active, &settings, &tenant.CreatedAt); err != nil {
		return models.Tenant{}, err
	}
	if len(settings) > 0 {
		tenant.Settings = json.RawMessage(settings)
	}
	tenant.CreatedAt = tenant.CreatedAt.UTC()
	return tenant, nil
}

func rawJSON(value json.RawMessage) interface{} {
	if len(value) == 0 {
		return nil
	}
	return []byte(value)
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, tenant_id, name, email, role, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.UserID, user.TenantID, user.Name, user.Email, user.Role, user.PasswordHash, user.CreatedAt); err != nil {
		return models.User{}, mapWriteError(err, "user "+user.Email, store.ErrTenantNotFound)
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, tenantID, email string) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, tenant_id, name, email, role, password_hash, created_at
		FROM users
		WHERE tenant_id = $1 AND email = $2
	`, tenantID, strings.ToLower(strings.TrimSpace(email))).Scan(
		&user.UserID, &user.TenantID, &user.Name, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) CreateSession(ctx context.Context, session models.Session) error {
	if session.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	var expires interface{}
	if !session.ExpiresAt.IsZero() {
		expires = session.ExpiresAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, user_id, tenant_id, role, name, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id, tenant_id = EXCLUDED.tenant_id, role = EXCLUDED.role,
			name = EXCLUDED.name, expires_at = EXCLUDED.expires_at
	`, session.SessionID, session.UserID, session.TenantID, session.Role, session.Name, expires)
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	var expires sql.NullTime
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, tenant_id, role, name, expires_at
		FROM sessions
		WHERE session_id = $1
	`, sessionID).Scan(&session.SessionID, &session.UserID, &session.TenantID, &session.Role, &session.Name, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	if expires.Valid {
		session.ExpiresAt = expires.Time.UTC()
		if time.Now().After(session.ExpiresAt) {
			_ = s.DeleteSession(ctx, sessionID)
			return models.Session{}, store.ErrSessionNotFound
		}
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	return err
}

// SavePushSubscription replaces any subscription registered for the same endpoint.
func (s *Store) SavePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	if sub.SubscriptionID == "" {
		sub.SubscriptionID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.PushSubscription{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, sub.Endpoint); err != nil {
		return models.PushSubscription{}, err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO push_subscriptions (subscription_id, tenant_id, user_id, endpoint, p256dh, auth, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sub.SubscriptionID, sub.TenantID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt); err != nil {
		err = mapWriteError(err, "push subscription "+sub.SubscriptionID, nil)
		return models.PushSubscription{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.PushSubscription{}, err
	}
	return sub, nil
}

func (s *Store) ListPushSubscriptions(ctx context.Context, tenantID string) ([]models.PushSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subscription_id, tenant_id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at, subscription_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.SubscriptionID, &sub.TenantID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.CreatedAt = sub.CreatedAt.UTC()
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeletePushSubscription(ctx context.Context, subscriptionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE subscription_id = $1`, subscriptionID)
	return err
}

func (s *Store) RecordWebhookFailure(ctx context.Context, failure models.WebhookFailure) error {
	if failure.FailureID == "" {
		failure.FailureID = uuid.NewString()
	}
	if failure.ReceivedAt.IsZero() {
		failure.ReceivedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_failures (failure_id, provider, payload, error, received_at)
		VALUES ($1,$2,$3,$4,$5)
	`, failure.FailureID, failure.Provider, failure.Payload, failure.Error, failure.ReceivedAt)
	return err
}
