package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/store"
)

const (
	BackendMemory = "memory"
	BackendStore  = "store"
	BackendRedis  = "redis"
)

// Registry holds the named limiters configured for the process.
type Registry struct {
	limiters map[string]*Limiter
}

// NewRegistry builds one limiter per entry in limiters. All limiters share
// the options, including the store; prefixes keep their keys apart. An empty
// prefix defaults to the limiter name.
func NewRegistry(limiters map[string]config.LimiterConfig, opts ...Option) (*Registry, error) {
	r := &Registry{limiters: make(map[string]*Limiter, len(limiters))}
	for name, lc := range limiters {
		prefix := strings.TrimSpace(lc.Prefix)
		if prefix == "" {
			prefix = name
		}
		limiterOpts := append([]Option{WithName(name)}, opts...)
		l, err := New(Config{Prefix: prefix, Window: lc.Window, Limit: lc.Limit}, limiterOpts...)
		if err != nil {
			return nil, fmt.Errorf("limiter %s: %w", name, err)
		}
		r.limiters[name] = l
	}
	return r, nil
}

// Get returns the named limiter.
func (r *Registry) Get(name string) (*Limiter, bool) {
	if r == nil {
		return nil, false
	}
	l, ok := r.limiters[name]
	return l, ok
}

// Names returns limiter names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStore builds the counter store selected by cfg.Backend. db is required
// for the store backend. The returned close function releases any client the
// store owns.
func NewStore(ctx context.Context, cfg config.RateLimitConfig, db *store.Store) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.TrimSpace(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendStore:
		if db == nil {
			return nil, nil, fmt.Errorf("rate limit backend %q requires a store", BackendStore)
		}
		return NewSQLStore(db), noop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}
