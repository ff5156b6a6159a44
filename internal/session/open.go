package session

import (
	"context"
	"fmt"

	"github.com/pagepilot/pagepilot/internal/config"
	log "github.com/sirupsen/logrus"
)

// OpenRepository opens the backend selected by cfg.Driver.
func OpenRepository(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		repo, err := OpenPostgres(ctx, PostgresConfig{DSN: cfg.PostgresDSN, Schema: cfg.PostgresSchema})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.WithField("schema", cfg.PostgresSchema).Info("session store: postgres")
		return repo, nil
	case config.StoreDriverSQLite, "":
		repo, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("session store: sqlite")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
