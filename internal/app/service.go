// Package app contains the application services that orchestrate use cases.
// It coordinates domain logic and infrastructure through ports.
//
// Responsibilities:
//   - quote lifecycle writes, run through the Execute pipeline
//   - ownership scoping of every read and write by the caller's user ID
//   - normalization of generative AI output into the breakdown and insight schemas
//   - analytics over a per-request snapshot of the caller's quotes
//
// What does NOT belong here:
//   - HTTP specifics (adapters/http)
//   - queries and transactions mechanics (adapters/persistence)
//   - pure calculations (domain)
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pearquote/quote-service/internal/app/reqctx"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/ports"
)

// Clock returns the current time. Services use it for createdAt, updatedAt and analytics anchors.
type Clock func() time.Time

// SystemClock returns the current UTC time at the precision every supported store keeps.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func settingsKey(userID string) string {
	return "settings:" + userID
}

// loadSettings returns the caller's saved settings, or nil when none were saved.
// The result is memoized for the current request.
func loadSettings(ctx context.Context, repo ports.SettingsRepository, userID string) (*domain.Settings, error) {
	return reqctx.Fetch(ctx, settingsKey(userID), func(ctx context.Context) (*domain.Settings, error) {
		settings, err := repo.Get(ctx, userID)
		if domain.IsNotFound(err) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}

		return settings, nil
	})
}

func mustHave(component string, deps map[string]any) {
	for name, dep := range deps {
		if dep == nil {
			panic(fmt.Sprintf("%s: %s is required", component, name))
		}
	}
}
