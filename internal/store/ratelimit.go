package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitEntry is the persisted counter for one limiter key.
type RateLimitEntry struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// GetRateLimit returns the stored counter for key, or nil when absent.
func (s *Store) GetRateLimit(ctx context.Context, key string) (*RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("rate limit key is required")
	}

	entry, err := getRateLimit(ctx, s.DB, key)
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return entry, nil
}

// UpdateRateLimit persists the counter for entry.Key.
func (s *Store) UpdateRateLimit(ctx context.Context, entry *RateLimitEntry) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if entry == nil {
		return errors.New("rate limit entry is required")
	}
	if strings.TrimSpace(entry.Key) == "" {
		return errors.New("rate limit key is required")
	}

	if err := putRateLimit(ctx, s.DB, entry); err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

// IncrementRateLimit adds one to key's counter. When the key has no row, or
// its stored window ended at or before now, the counter restarts in the
// window ending at windowResetAt.
func (s *Store) IncrementRateLimit(ctx context.Context, key string, windowResetAt, now time.Time) (*RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("rate limit key is required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rate limit update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := getRateLimit(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	if entry == nil || !now.Before(entry.WindowResetAt) {
		entry = &RateLimitEntry{Key: key, WindowResetAt: windowResetAt.UTC()}
	}
	entry.Count++

	if err := putRateLimit(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("store rate limit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rate limit update: %w", err)
	}
	return entry, nil
}

// DeleteExpiredRateLimits removes counters whose window ended at or before now.
func (s *Store) DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	return affected(ctx, s.DB, "delete expired rate limits",
		`DELETE FROM rate_limits WHERE window_reset_at <= ?`, now.UnixMilli())
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getRateLimit(ctx context.Context, q queryer, key string) (*RateLimitEntry, error) {
	var (
		count         int
		windowResetAt int64
	)

	row := q.QueryRowContext(ctx, `
		SELECT count, window_reset_at
		FROM rate_limits
		WHERE key = ?
	`, key)

	if err := row.Scan(&count, &windowResetAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &RateLimitEntry{
		Key:           key,
		Count:         count,
		WindowResetAt: time.UnixMilli(windowResetAt).UTC(),
	}, nil
}

func putRateLimit(ctx context.Context, q queryer, entry *RateLimitEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO rate_limits (key, count, window_reset_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = excluded.count,
			window_reset_at = excluded.window_reset_at
	`, entry.Key, entry.Count, entry.WindowResetAt.UnixMilli())
	return err
}
