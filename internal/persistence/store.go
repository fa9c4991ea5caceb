package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rsams/attendance-service/internal/config"
	"github.com/rsams/attendance-service/internal/repository"
)

// Store is the account store selected by DB_DRIVER together with its
// connection lifecycle.
type Store struct {
	Accounts repository.AccountRepository
	ping     func(ctx context.Context) error
	close    func()
}

// OpenStore connects to the configured database, applies migrations and
// returns the matching AccountRepository.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &Store{Accounts: repository.NewAccountRepository(pg.PoolHandle()), ping: pg.Ping, close: pg.Close}, nil
	case config.DriverSQLite:
		db, err := NewSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := repository.MigrateGorm(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{Accounts: repository.NewGormAccountRepository(db.DB), ping: db.Ping, close: db.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the database connection.
func (s *Store) Close() {
	s.close()
}
