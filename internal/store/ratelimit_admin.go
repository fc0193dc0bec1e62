package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitQuery selects stored counters for the admin commands. Exactly one
// of All, Key or Prefix picks the keys; Expired narrows any of them to
// counters whose window has already ended.
type RateLimitQuery struct {
	All     bool
	Key     string
	Prefix  string
	Expired bool
}

var errNoSelector = errors.New("must specify --all, --key, or --prefix")

// Validate reports whether q selects anything.
func (q RateLimitQuery) Validate() error {
	if q.All || strings.TrimSpace(q.Key) != "" || strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errNoSelector
}

func (q RateLimitQuery) where(now time.Time) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	switch {
	case q.All:
	case strings.TrimSpace(q.Key) != "":
		conds = append(conds, "key = ?")
		args = append(args, strings.TrimSpace(q.Key))
	default:
		conds = append(conds, `key LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(strings.TrimSpace(q.Prefix)))
	}
	if q.Expired {
		conds = append(conds, "window_reset_at <= ?")
		args = append(args, now.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// likePrefix escapes LIKE wildcards in prefix and appends %.
func likePrefix(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"
}

// ListRateLimits returns the counters q selects, ordered by key.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := q.where(time.Now())
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		"SELECT key, count, window_reset_at FROM rate_limits"+where+" ORDER BY key", args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // read-only cursor

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			e       RateLimitEntry
			resetMs int64
		)
		if err := rows.Scan(&e.Key, &e.Count, &resetMs); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		e.WindowResetAt = time.UnixMilli(resetMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// CountRateLimits returns how many counters q selects.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.where(time.Now())
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limits"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return n, nil
}

// ResetRateLimits deletes the counters q selects so those identifiers start a
// fresh window.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.where(time.Now())
	if err != nil {
		return 0, err
	}
	return affected(ctx, s.DB, "reset rate limits", "DELETE FROM rate_limits"+where, args...)
}
