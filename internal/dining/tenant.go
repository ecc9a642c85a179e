package dining

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func (s *Service) tenantSettings(ctx context.Context, tenantID string) (models.TenantSettings, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return models.TenantSettings{}, err
	}
	return DecodeSettings(tenant.Settings)
}

func (s *Service) Settings(ctx context.Context, tenantID string) (models.TenantSettings, json.RawMessage, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return models.TenantSettings{}, nil, err
	}
	settings, err := DecodeSettings(tenant.Settings)
	if err != nil {
		return models.TenantSettings{}, nil, err
	}
	return settings, tenant.Settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, patch map[string]any) (models.TenantSettings, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return models.TenantSettings{}, err
	}
	raw, settings, err := MergeSettings(tenant.Settings, patch)
	if err != nil {
		return models.TenantSettings{}, err
	}
	if _, err := s.store.UpdateTenantSettings(ctx, tenantID, raw); err != nil {
		return models.TenantSettings{}, err
	}
	return settings, nil
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (models.Session, models.User, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(tenantID), email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return models.Session{}, models.User{}, store.ErrInvalidCredentials
		}
		return models.Session{}, models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.Session{}, models.User{}, store.ErrInvalidCredentials
	}
	session := models.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		TenantID:  user.TenantID,
		Role:      user.Role,
		Name:      user.Name,
		ExpiresAt: s.now().Add(s.opts.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (s *Service) Authenticate(ctx context.Context, sessionID string) (models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if !session.ExpiresAt.IsZero() && s.now().After(session.ExpiresAt) {
		return models.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type PushInput struct {
	Endpoint string
	P256dh   string
	Auth     string
}

func (s *Service) RegisterPush(ctx context.Context, session models.Session, input PushInput) (models.PushSubscription, error) {
	input.Endpoint = strings.TrimSpace(input.Endpoint)
	if !strings.HasPrefix(input.Endpoint, "https://") {
		return models.PushSubscription{}, invalid("endpoint", "must be an https URL")
	}
	if strings.TrimSpace(input.P256dh) == "" || strings.TrimSpace(input.Auth) == "" {
		return models.PushSubscription{}, invalid("keys", "p256dh and auth are required")
	}
	return s.store.SavePushSubscription(ctx, models.PushSubscription{
		TenantID:  session.TenantID,
		UserID:    session.UserID,
		Endpoint:  input.Endpoint,
		P256dh:    strings.TrimSpace(input.P256dh),
		Auth:      strings.TrimSpace(input.Auth),
		CreatedAt: s.now(),
	})
}
