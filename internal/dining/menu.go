package dining

import (
	"context"
	"strings"

	"resto/internal/models"
)

type MenuItemInput struct {
	Name       string
	Category   string
	PriceCents int64
	Available  bool
	Modifiers  []models.MenuModifier
}

func (s *Service) Menu(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	return s.catalog.Items(ctx, tenantID)
}

func (s *Service) CreateMenuItem(ctx context.Context, tenantID string, input MenuItemInput) (models.MenuItem, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return models.MenuItem{}, invalid("name", "is required")
	}
	if input.PriceCents < 0 {
		return models.MenuItem{}, invalid("priceCents", "must not be negative")
	}
	seen := map[string]bool{}
	for i, mod := range input.Modifiers {
		if strings.TrimSpace(mod.ModifierID) == "" || strings.TrimSpace(mod.Name) == "" {
			return models.MenuItem{}, invalid("modifiers", "modifier %d needs an id and a name", i)
		}
		if mod.PriceCents < 0 {
			return models.MenuItem{}, invalid("modifiers", "modifier %s has a negative price", mod.ModifierID)
		}
		if seen[mod.ModifierID] {
			return models.MenuItem{}, invalid("modifiers", "duplicate modifier %s", mod.ModifierID)
		}
		seen[mod.ModifierID] = true
	}
	item, err := s.store.CreateMenuItem(ctx, models.MenuItem{
		TenantID:   tenantID,
		Name:       input.Name,
		Category:   strings.TrimSpace(input.Category),
		PriceCents: input.PriceCents,
		Available:  input.Available,
		Modifiers:  input.Modifiers,
	})
	if err != nil {
		return models.MenuItem{}, err
	}
	s.catalog.Invalidate(tenantID)
	return item, nil
}

func (s *Service) SetMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) (models.MenuItem, error) {
	item, err := s.store.SetMenuItemAvailability(ctx, tenantID, menuItemID, available)
	if err != nil {
		return models.MenuItem{}, err
	}
	s.catalog.Invalidate(tenantID)
	return item, nil
}
