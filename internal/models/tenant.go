package models

import (
	"encoding/json"
	"time"
)

type Tenant struct {
	TenantID  string          `json:"id"`
	Name      string          `json:"name"`
	Active    bool            `json:"active"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type TenantSettings struct {
	TaxRateBps       int             `json:"taxRateBps" mapstructure:"taxRateBps"`
	ServiceChargeBps int             `json:"serviceChargeBps" mapstructure:"serviceChargeBps"`
	Currency         string          `json:"currency" mapstructure:"currency"`
	TipsEnabled      bool            `json:"tipsEnabled" mapstructure:"tipsEnabled"`
	Branding         Branding        `json:"branding" mapstructure:"branding"`
	Features         map[string]bool `json:"features,omitempty" mapstructure:"features"`
}

type Branding struct {
	Name         string `json:"name,omitempty" mapstructure:"name"`
	PrimaryColor string `json:"primaryColor,omitempty" mapstructure:"primaryColor"`
	LogoURL      string `json:"logoUrl,omitempty" mapstructure:"logoUrl"`
}
