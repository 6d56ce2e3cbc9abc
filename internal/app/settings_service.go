package app

import (
	"context"
	"log/slog"

	"github.com/pearquote/quote-service/internal/app/reqctx"
	"github.com/pearquote/quote-service/internal/domain"
	"github.com/pearquote/quote-service/internal/ports"
)

// SettingsService reads and saves the caller's company profile and pricing defaults.
type SettingsService struct {
	repo   ports.SettingsRepository
	clock  Clock
	logger *slog.Logger
}

// NewSettingsService creates a settings service.
func NewSettingsService(repo ports.SettingsRepository, clock Clock, logger *slog.Logger) *SettingsService {
	mustHave("app.SettingsService", map[string]any{"repo": repo})

	if clock == nil {
		clock = SystemClock
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SettingsService{repo: repo, clock: clock, logger: logger.With(slog.String("component", "app.SettingsService"))}
}

// SettingsInput is a partial update of the caller's settings. Nil fields keep their stored value.
// Values, when present, replaces the whole container.
type SettingsInput struct {
	CompanyName       *string
	TaxID             *string
	ContactEmail      *string
	CompanySealURL    *string
	TargetMarginMin   *float64
	TargetMarginMax   *float64
	QuoteValidityDays *int
	Values            map[string]any
}

// Get returns the saved settings, or the defaults when the caller never saved any.
// Defaults are not persisted.
func (s *SettingsService) Get(ctx context.Context, userID string) (*domain.Settings, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		defaults := domain.DefaultSettings(userID)

		return &defaults, nil
	}

	return settings, nil
}

// Save merges input into the stored settings (or the defaults), validates and upserts the result.
func (s *SettingsService) Save(ctx context.Context, userID string, input SettingsInput) (*domain.Settings, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings := *current
	settings.UserID = userID
	setIf(&settings.CompanyName, input.CompanyName)
	setIf(&settings.TaxID, input.TaxID)
	setIf(&settings.ContactEmail, input.ContactEmail)
	setIf(&settings.CompanySealURL, input.CompanySealURL)
	setIf(&settings.TargetMarginMin, input.TargetMarginMin)
	setIf(&settings.TargetMarginMax, input.TargetMarginMax)
	setIf(&settings.QuoteValidityDays, input.QuoteValidityDays)

	if input.Values != nil {
		settings.Values = input.Values
	}

	if settings.TargetMarginMin < 0 || settings.TargetMarginMin > settings.TargetMarginMax {
		return nil, domain.NewValidationError("targetMarginMin", "must be between 0 and targetMarginMax")
	}

	if settings.QuoteValidityDays <= 0 {
		return nil, domain.NewValidationErrorWithValue("quoteValidityDays", "must be positive", settings.QuoteValidityDays)
	}

	if err := domain.ValidateSettingValues(settings.Values); err != nil {
		return nil, err
	}

	settings.UpdatedAt = s.clock()

	if err := s.repo.Upsert(ctx, &settings); err != nil {
		return nil, err
	}

	reqctx.Invalidate(ctx, settingsKey(userID))

	s.logger.DebugContext(ctx, "settings saved", slog.Int("value_keys", len(settings.Values)))

	return &settings, nil
}
