package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/memory"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/postgres"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/sqlite"
)

// OpenStore opens the configured driver and applies its migrations.
func OpenStore(cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Warn("using the in-memory store, nothing survives a restart")
		st = memory.NewStore()
	case DriverPostgres:
		st, err = postgres.NewStore(cfg.DatabaseURL)
	case DriverSQLite:
		st, err = sqlite.NewStore(sqliteDSN(cfg.DatabaseFile))
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.StoreDriver, err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Info("store ready", "driver", cfg.StoreDriver)
	return st, nil
}

// sqliteDSN turns a path into a modernc DSN with WAL enabled. ":memory:" is
// passed through.
func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
}
