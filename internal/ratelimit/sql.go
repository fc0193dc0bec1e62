package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/postpilot/postpilot/internal/store"
)

// SQLStore keeps counters in the rate_limits table so limits survive restarts
// and hold across processes sharing one database.
type SQLStore struct {
	db *store.Store
}

// NewSQLStore wraps an opened and migrated store.
func NewSQLStore(db *store.Store) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Increment(ctx context.Context, key string, windowResetAt, now time.Time) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, errors.New("rate limit sql store not configured")
	}
	entry, err := s.db.IncrementRateLimit(ctx, key, windowResetAt, now)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: entry.Key, Count: entry.Count, WindowResetAt: entry.WindowResetAt}, nil
}

func (s *SQLStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("rate limit sql store not configured")
	}
	removed, err := s.db.DeleteExpiredRateLimits(ctx, now)
	return int(removed), err
}
