// Package offline keeps the last good response for a key so callers can keep
// working when the network or an upstream is down.
package offline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/store"
)

// ResponseStore is the persistence the cache needs. *store.Store satisfies it.
type ResponseStore interface {
	SaveResponse(ctx context.Context, key string, response []byte, now time.Time, ttl time.Duration) (int64, error)
	LatestResponse(ctx context.Context, key string) (*store.CachedResponse, error)
	DeleteResponse(ctx context.Context, id string) error
	DeleteExpiredResponses(ctx context.Context, now time.Time) (int64, error)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for storage failures.
func WithLogger(logger observability.Logger) CacheOption {
	return func(c *Cache) { c.logger = observability.OrNop(logger) }
}

// Cache is an append-only TTL cache over ResponseStore. Storage failures are
// logged and never reach the caller: reads miss and writes are dropped.
type Cache struct {
	store  ResponseStore
	now    func() time.Time
	logger observability.Logger
}

// NewCache wraps st.
func NewCache(st ResponseStore, opts ...CacheOption) *Cache {
	c := &Cache{
		store:  st,
		now:    time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Save appends value for key, valid for ttl. Expired rows for the same key
// are purged in the same transaction.
func (c *Cache) Save(ctx context.Context, key string, value []byte, ttl time.Duration) {
	purged, err := c.store.SaveResponse(ctx, key, value, c.now(), ttl)
	if err != nil {
		c.logger.Error("Failed to save offline response",
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheSave(false)
		return
	}
	metrics.RecordCacheSave(true)
	if purged > 0 {
		metrics.RecordCacheEvictions("save", purged)
	}
}

// Get returns the newest value for key if it has not expired. An expired
// newest row is deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	latest, err := c.store.LatestResponse(ctx, key)
	if err != nil {
		c.logger.Error("Failed to read offline response",
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheLookup("error")
		return nil, false
	}
	if latest == nil {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}

	if latest.Expired(c.now()) {
		if err := c.store.DeleteResponse(ctx, latest.ID); err != nil {
			c.logger.Warn("Failed to delete expired offline response",
				zap.String("key", key),
				zap.String("id", latest.ID),
				zap.Error(err))
		} else {
			metrics.RecordCacheEvictions("read", 1)
		}
		metrics.RecordCacheLookup("expired")
		return nil, false
	}

	metrics.RecordCacheLookup("hit")
	return latest.Response, true
}

// ClearExpired deletes every row whose expiry has passed and returns how many
// were removed. Failures are logged and count as zero.
func (c *Cache) ClearExpired(ctx context.Context) int64 {
	removed, err := c.store.DeleteExpiredResponses(ctx, c.now())
	if err != nil {
		c.logger.Error("Failed to clear expired offline responses", zap.Error(err))
		return 0
	}
	if removed > 0 {
		metrics.RecordCacheEvictions("sweep", removed)
	}
	return removed
}

// SaveJSON encodes v as JSON and saves it.
func (c *Cache) SaveJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode offline response",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	c.Save(ctx, key, data, ttl)
}

// GetJSON decodes the cached value for key into dst. An undecodable value is
// logged and reported as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Failed to decode offline response",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}
