package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS offline_responses (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		response BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_offline_responses_url ON offline_responses(url);`,
	`CREATE INDEX IF NOT EXISTS idx_offline_responses_timestamp ON offline_responses(timestamp);`,
	`CREATE INDEX IF NOT EXISTS idx_offline_responses_expires ON offline_responses(expires_at);`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		window_reset_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limits_reset ON rate_limits(window_reset_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
