package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Expected keys of Settings.Values. Other keys are stored untouched.
const (
	// SettingRoleRates maps role → default hourly rate charged to the customer.
	SettingRoleRates = "roleRates"

	// SettingRoleCosts maps role → internal hourly cost, used for margin calculation.
	SettingRoleCosts = "roleCosts"

	// SettingProjectTypes lists or maps the project types offered.
	SettingProjectTypes = "projectTypes"

	// SettingMaterials lists or maps reusable materials.
	SettingMaterials = "materials"
)

// SettingsValuesVersion is the current shape version of Settings.Values.
const SettingsValuesVersion = 1

// Default margin targets, in percent.
const (
	DefaultTargetMarginMin = 20
	DefaultTargetMarginMax = 40
)

// Settings holds one user's company profile and pricing defaults.
// Values is a schema-less container; see the Setting* keys.
type Settings struct {
	UserID            string
	CompanyName       string
	TaxID             string
	ContactEmail      string
	CompanySealURL    string
	TargetMarginMin   float64
	TargetMarginMax   float64
	QuoteValidityDays int
	Values            map[string]any
	ValuesVersion     int
	UpdatedAt         time.Time
}

// DefaultSettings returns the settings a user has before saving any.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:            userID,
		TargetMarginMin:   DefaultTargetMarginMin,
		TargetMarginMax:   DefaultTargetMarginMax,
		QuoteValidityDays: DefaultValidityDays,
		Values:            map[string]any{},
		ValuesVersion:     SettingsValuesVersion,
	}
}

// ValidityDays returns the configured quote validity, falling back to DefaultValidityDays.
func (s *Settings) ValidityDays() int {
	if s == nil || s.QuoteValidityDays <= 0 {
		return DefaultValidityDays
	}

	return s.QuoteValidityDays
}

// RoleRates returns the configured hourly rate per role, or nil.
func (s *Settings) RoleRates() map[Role]float64 {
	if s == nil {
		return nil
	}

	return rateTable(s.Values[SettingRoleRates])
}

// RoleCosts returns the configured internal cost per role.
// A nil result means no cost basis is configured and margins cannot be computed.
func (s *Settings) RoleCosts() map[Role]float64 {
	if s == nil {
		return nil
	}

	return rateTable(s.Values[SettingRoleCosts])
}

// ValidateSettingValues type-checks the expected keys of a settings container.
// Content is not interpreted beyond its shape.
func ValidateSettingValues(values map[string]any) error {
	for _, key := range []string{SettingRoleRates, SettingRoleCosts} {
		raw, ok := values[key]
		if !ok || raw == nil {
			continue
		}

		table, isMap := raw.(map[string]any)
		if !isMap {
			return NewValidationErrorWithValue("values."+key, "must be an object of role to number", raw)
		}

		for role, v := range table {
			n, isNum := asFloat(v)
			if !isNum || n < 0 {
				return NewValidationErrorWithValue(
					fmt.Sprintf("values.%s.%s", key, role), "must be a non-negative number", v)
			}
		}
	}

	for _, key := range []string{SettingProjectTypes, SettingMaterials} {
		raw, ok := values[key]
		if !ok || raw == nil {
			continue
		}

		switch raw.(type) {
		case []any, map[string]any:
		default:
			return NewValidationErrorWithValue("values."+key, "must be an array or an object", raw)
		}
	}

	return nil
}

// rateTable keeps the entries whose key names a known role. Unknown keys are skipped.
// It returns nil when no usable entry remains.
func rateTable(raw any) map[Role]float64 {
	table, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	var rates map[Role]float64

	for k, v := range table {
		role := Role(strings.ToLower(strings.TrimSpace(k)))
		if !role.Valid() {
			continue
		}

		n, isNum := asFloat(v)
		if !isNum {
			continue
		}

		if rates == nil {
			rates = make(map[Role]float64, len(table))
		}

		rates[role] = n
	}

	return rates
}

// asFloat accepts the number forms a decoded JSON document can hold.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
