package ports

import (
	"context"
)

// Feature flag names.
const (
	// FlagAI gates every operation that calls the generative AI capability.
	FlagAI = "ai_assist"
)

// FeatureFlags evaluates feature toggles.
// Unknown flags and evaluation failures yield defaultValue.
type FeatureFlags interface {
	IsEnabled(ctx context.Context, flag string, defaultValue bool) bool
}
