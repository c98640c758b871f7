package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
)

const settingsRowID = 1

// GetSettings returns the stored settings, or defaults when no row exists yet.
func (s *Store) GetSettings(ctx context.Context) (store.Settings, error) {
	var settings store.Settings
	var adaptive int
	err := s.db.QueryRowContext(ctx, `
		SELECT confident_threshold, tentative_threshold, max_samples_per_student, adaptive_learning, updated_at
		FROM recognition_settings
		WHERE id = ?
	`, settingsRowID).Scan(
		&settings.ConfidentThreshold,
		&settings.TentativeThreshold,
		&settings.MaxSamplesPerStudent,
		&adaptive,
		&settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DefaultSettings(), nil
	}
	if err != nil {
		return store.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	settings.AdaptiveLearning = adaptive != 0
	return settings, nil
}

// SaveSettings validates and persists the settings.
func (s *Store) SaveSettings(ctx context.Context, settings store.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	adaptive := 0
	if settings.AdaptiveLearning {
		adaptive = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recognition_settings (id, confident_threshold, tentative_threshold, max_samples_per_student, adaptive_learning, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			confident_threshold = excluded.confident_threshold,
			tentative_threshold = excluded.tentative_threshold,
			max_samples_per_student = excluded.max_samples_per_student,
			adaptive_learning = excluded.adaptive_learning,
			updated_at = excluded.updated_at
	`, settingsRowID,
		settings.ConfidentThreshold,
		settings.TentativeThreshold,
		settings.MaxSamplesPerStudent,
		adaptive,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
