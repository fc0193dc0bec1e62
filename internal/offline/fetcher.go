package offline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
)

// ErrNotCached is returned when no live call was possible or it failed, and
// the cache had nothing usable for the key.
var ErrNotCached = errors.New("no cached response available")

// Source tells where a fetched value came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
	// SourceStale marks cached data served because the live call failed.
	SourceStale Source = "stale"
)

// LiveFunc performs the network call for a fetch.
type LiveFunc func(ctx context.Context) ([]byte, error)

// Result is a fetched value and its origin.
type Result struct {
	Data   []byte
	Source Source
}

// Fetcher chooses between a live call and the cache based on connectivity.
type Fetcher struct {
	Cache        *Cache
	Connectivity Connectivity
	DefaultTTL   time.Duration
	Logger       observability.Logger
}

// Fetch returns data for key. Offline, it serves the cache without calling
// live. Online, it calls live and caches the result with DefaultTTL; if live
// fails it falls back to the cache and logs a warning.
func (f *Fetcher) Fetch(ctx context.Context, key string, live LiveFunc) (*Result, error) {
	if f == nil || f.Cache == nil {
		return nil, errors.New("offline fetcher is not configured")
	}
	logger := observability.OrNop(f.Logger)

	if f.Connectivity != nil && !f.Connectivity.Online(ctx) {
		data, ok := f.Cache.Get(ctx, key)
		if !ok {
			metrics.RecordFetch("miss")
			return nil, ErrNotCached
		}
		metrics.RecordFetch(string(SourceCache))
		return &Result{Data: data, Source: SourceCache}, nil
	}

	data, err := live(ctx)
	if err != nil {
		cached, ok := f.Cache.Get(ctx, key)
		if !ok {
			metrics.RecordFetch("error")
			return nil, errors.Join(err, ErrNotCached)
		}
		logger.Warn("Live request failed, serving cached data",
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordFetch(string(SourceStale))
		return &Result{Data: cached, Source: SourceStale}, nil
	}

	f.Cache.Save(ctx, key, data, f.DefaultTTL)
	metrics.RecordFetch(string(SourceLive))
	return &Result{Data: data, Source: SourceLive}, nil
}
