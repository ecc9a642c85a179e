package models

import "time"

type MenuItem struct {
	MenuItemID string         `json:"id" yaml:"id"`
	TenantID   string         `json:"tenantId" yaml:"tenantId"`
	Name       string         `json:"name" yaml:"name"`
	Category   string         `json:"category,omitempty" yaml:"category"`
	PriceCents int64          `json:"priceCents" yaml:"priceCents"`
	Available  bool           `json:"available" yaml:"available"`
	Modifiers  []MenuModifier `json:"modifiers,omitempty" yaml:"modifiers"`
	UpdatedAt  time.Time      `json:"updatedAt" yaml:"-"`
}

type MenuModifier struct {
	ModifierID string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	PriceCents int64  `json:"priceCents" yaml:"priceCents"`
}

func (m MenuItem) Modifier(id string) (MenuModifier, bool) {
	for _, mod := range m.Modifiers {
		if mod.ModifierID == id {
			return mod, true
		}
	}
	return MenuModifier{}, false
}
