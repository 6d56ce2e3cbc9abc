// Package flags provides a ports.FeatureFlags implementation backed by the
// service configuration (the `features` section).
package flags

import (
	"context"
	"maps"
	"strings"
)

// Static evaluates feature flags from a fixed set of values read at startup.
// Flags missing from the set evaluate to the caller's default.
type Static struct {
	values map[string]bool
}

// NewStatic creates flags from configured values.
// Names are matched case-insensitively, and "-" and "_" are equivalent.
func NewStatic(values map[string]bool) *Static {
	normalized := make(map[string]bool, len(values))
	for name, enabled := range values {
		normalized[normalize(name)] = enabled
	}

	return &Static{values: normalized}
}

// IsEnabled implements ports.FeatureFlags.
func (s *Static) IsEnabled(_ context.Context, flag string, defaultValue bool) bool {
	if enabled, ok := s.values[normalize(flag)]; ok {
		return enabled
	}

	return defaultValue
}

// Snapshot returns a copy of the configured values, for diagnostics.
func (s *Static) Snapshot() map[string]bool {
	return maps.Clone(s.values)
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
