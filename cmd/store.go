package cmd

import (
	"fmt"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/kozaktomas/rollcall/internal/store/postgres"
	"github.com/kozaktomas/rollcall/internal/store/sqlite"
)

// openStore opens the configured storage backend, PostgreSQL when
// DATABASE_URL is set and SQLite otherwise.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.UsePostgres() {
		st, err := postgres.Open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	}

	st, err := sqlite.Open(cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return st, nil
}
