package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/store"
)

// openStore opens the configured database and applies pending migrations.
// The caller owns the returned store.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	observability.Current().Debug("Store ready",
		zap.String("driver", db.Driver()),
		zap.String("location", describeStore(cfg)))
	return db, nil
}
