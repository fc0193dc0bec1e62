package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CachedResponse is one stored snapshot of a response for a cache key.
// Rows for the same key are never merged; the newest one wins on read.
type CachedResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Response  []byte    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the row is no longer servable at now.
func (r CachedResponse) Expired(now time.Time) bool {
	return r.ExpiresAt.UnixMilli() <= now.UnixMilli()
}

// ResponseID builds the row id for key created at ts.
func ResponseID(key string, ts time.Time) string {
	return key + "-" + strconv.FormatInt(ts.UnixMilli(), 10)
}

// SaveResponse appends a response row for key. Inside the same transaction it
// walks the key's existing rows and deletes the ones already expired at now.
// It returns the number of rows purged.
func (s *Store) SaveResponse(ctx context.Context, key string, response []byte, now time.Time, ttl time.Duration) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("cache key is required")
	}
	if response == nil {
		response = []byte{}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save response: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, expires_at
		FROM offline_responses
		WHERE url = ?
	`, key)
	if err != nil {
		return 0, fmt.Errorf("scan cached responses: %w", err)
	}
	var expired []string
	nowMillis := now.UnixMilli()
	for rows.Next() {
		var (
			id        string
			expiresAt int64
		)
		if err := rows.Scan(&id, &expiresAt); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan cached responses: %w", err)
		}
		if expiresAt <= nowMillis {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("scan cached responses: %w", err)
	}
	_ = rows.Close()

	var purged int64
	for _, id := range expired {
		result, err := tx.ExecContext(ctx, `DELETE FROM offline_responses WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete expired response: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			purged += n
		}
	}

	// A second save for the same key within one millisecond shares the id;
	// the replacement keeps the later value as the latest row.
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO offline_responses (id, url, response, timestamp, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, ResponseID(key, now), key, response, nowMillis, now.Add(ttl).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert cached response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save response: %w", err)
	}
	return purged, nil
}

// LatestResponse returns the most recently created row for key, expired or
// not. It returns nil when the key has no rows.
func (s *Store) LatestResponse(ctx context.Context, key string) (*CachedResponse, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, url, response, timestamp, expires_at
		FROM offline_responses
		WHERE url = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT 1
	`, key)

	resp, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}
	return resp, nil
}

// DeleteResponse removes a single row by id.
func (s *Store) DeleteResponse(ctx context.Context, id string) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM offline_responses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cached response: %w", err)
	}
	return nil
}

// DeleteExpiredResponses removes every row whose expiry is at or before now.
func (s *Store) DeleteExpiredResponses(ctx context.Context, now time.Time) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	return affected(ctx, s.DB, "delete expired responses",
		`DELETE FROM offline_responses WHERE expires_at <= ?`, now.UnixMilli())
}

// ResponseQuery filters ListResponses.
type ResponseQuery struct {
	// Prefix matches keys that start with it. Empty lists every key.
	Prefix string
	Limit  int
}

// ListResponses returns rows newest first.
func (s *Store) ListResponses(ctx context.Context, q ResponseQuery) ([]CachedResponse, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, url, response, timestamp, expires_at
		FROM offline_responses
	`
	var args []any
	if prefix := strings.TrimSpace(q.Prefix); prefix != "" {
		query += ` WHERE url LIKE ? ESCAPE '\'`
		args = append(args, likePrefix(prefix))
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cached responses: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	responses := []CachedResponse{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cached responses: %w", err)
		}
		responses = append(responses, *resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached responses: %w", err)
	}
	return responses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResponse(row rowScanner) (*CachedResponse, error) {
	var (
		resp      CachedResponse
		body      []byte
		timestamp int64
		expiresAt int64
	)
	if err := row.Scan(&resp.ID, &resp.URL, &body, &timestamp, &expiresAt); err != nil {
		return nil, err
	}
	resp.Response = body
	resp.Timestamp = time.UnixMilli(timestamp).UTC()
	resp.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &resp, nil
}
