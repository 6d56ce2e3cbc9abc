package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pearquote/quote-service/internal/domain"
)

// SettingsRepository implements ports.SettingsRepository.
type SettingsRepository struct {
	db *gorm.DB
}

// Get implements ports.SettingsRepository.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*domain.Settings, error) {
	var row settingsRow

	err := conn(ctx, r.db).Where("user_id = ?", userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("settings", "")
		}

		return nil, fmt.Errorf("loading settings: %w", err)
	}

	settings := row.toDomain()

	return &settings, nil
}

// Upsert implements ports.SettingsRepository.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *domain.Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	row := settingsFromDomain(settings)

	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	settings.ValuesVersion = row.ValuesVersion

	return nil
}
