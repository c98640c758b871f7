package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// settingsRowID pins the settings singleton to a single row
const settingsRowID = 1

// GetSettings returns the stored settings, or defaults when no row exists yet.
func (s *Store) GetSettings(ctx context.Context) (store.Settings, error) {
	var settings store.Settings
	err := s.pool.QueryRow(ctx, `
		SELECT confident_threshold, tentative_threshold, max_samples_per_student, adaptive_learning, updated_at
		FROM recognition_settings
		WHERE id = $1
	`, settingsRowID).Scan(
		&settings.ConfidentThreshold,
		&settings.TentativeThreshold,
		&settings.MaxSamplesPerStudent,
		&settings.AdaptiveLearning,
		&settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DefaultSettings(), nil
	}
	if err != nil {
		return store.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return settings, nil
}

// SaveSettings validates and persists the settings.
func (s *Store) SaveSettings(ctx context.Context, settings store.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO recognition_settings (id, confident_threshold, tentative_threshold, max_samples_per_student, adaptive_learning, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			confident_threshold = EXCLUDED.confident_threshold,
			tentative_threshold = EXCLUDED.tentative_threshold,
			max_samples_per_student = EXCLUDED.max_samples_per_student,
			adaptive_learning = EXCLUDED.adaptive_learning,
			updated_at = NOW()
	`, settingsRowID,
		settings.ConfidentThreshold,
		settings.TentativeThreshold,
		settings.MaxSamplesPerStudent,
		settings.AdaptiveLearning,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
