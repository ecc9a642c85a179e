package dining

import (
	"encoding/json"
	"fmt"

	"resto/internal/models"

	"github.com/mitchellh/mapstructure"
)

func DefaultSettings() models.TenantSettings {
	return models.TenantSettings{
		Currency:    "ARS",
		TipsEnabled: true,
		Features:    map[string]bool{},
	}
}

// DecodeSettings reads the typed view of a tenant settings blob. Missing keys
// keep their defaults and unknown keys are ignored.
func DecodeSettings(raw json.RawMessage) (models.TenantSettings, error) {
	settings := DefaultSettings()
	if len(raw) == 0 {
		return settings, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return models.TenantSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := decodeInto(values, &settings); err != nil {
		return models.TenantSettings{}, err
	}
	return settings, nil
}

func decodeInto(values map[string]any, out *models.TenantSettings) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("settings decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return invalid("settings", "%v", err)
	}
	return nil
}

// MergeSettings overlays patch on the stored blob key by key and validates
// the result. Keys the typed view does not know are preserved.
func MergeSettings(current json.RawMessage, patch map[string]any) (json.RawMessage, models.TenantSettings, error) {
	merged := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, models.TenantSettings{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}

	settings := DefaultSettings()
	if err := decodeInto(merged, &settings); err != nil {
		return nil, models.TenantSettings{}, err
	}
	if settings.TaxRateBps < 0 || settings.TaxRateBps > 10000 {
		return nil, models.TenantSettings{}, invalid("taxRateBps", "must be between 0 and 10000")
	}
	if settings.ServiceChargeBps < 0 || settings.ServiceChargeBps > 10000 {
		return nil, models.TenantSettings{}, invalid("serviceChargeBps", "must be between 0 and 10000")
	}
	if len(settings.Currency) != 3 {
		return nil, models.TenantSettings{}, invalid("currency", "must be a 3 letter code")
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, models.TenantSettings{}, fmt.Errorf("encode settings: %w", err)
	}
	return raw, settings, nil
}
