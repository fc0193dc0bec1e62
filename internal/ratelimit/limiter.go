// Package ratelimit implements fixed-window request limiters. Windows are
// aligned to multiples of the window length since the Unix epoch, so every
// process computes the same boundaries.
package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
)

// DefaultCleanupProbability is the chance that a Check sweeps expired entries.
const DefaultCleanupProbability = 0.01

// Config describes one limiter instance.
type Config struct {
	Prefix string
	Window time.Duration
	Limit  int
}

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// CheckedAt is the limiter clock reading the decision was made at.
	CheckedAt time.Time
}

// RetryAfter is the time left until the window resets, rounded up to whole
// seconds for the Retry-After header.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1) / time.Second * time.Second
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore sets the counter store. The default is a fresh MemoryStore.
func WithStore(s Store) Option {
	return func(l *Limiter) {
		if s != nil {
			l.store = s
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRand replaces the source used for the cleanup draw. fn returns a value
// in [0, 1).
func WithRand(fn func() float64) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.rand = fn
		}
	}
}

// WithCleanupProbability sets the per-check sweep chance. Values outside
// [0, 1] are clamped.
func WithCleanupProbability(p float64) Option {
	return func(l *Limiter) {
		l.cleanupProbability = min(max(p, 0), 1)
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) { l.logger = observability.OrNop(logger) }
}

// WithName labels the limiter in logs and metrics.
func WithName(name string) Option {
	return func(l *Limiter) { l.name = strings.TrimSpace(name) }
}

// Limiter is a fixed-window counter keyed by caller identifier.
type Limiter struct {
	cfg                Config
	name               string
	store              Store
	now                func() time.Time
	rand               func() float64
	cleanupProbability float64
	logger             observability.Logger
}

// New builds a limiter. Window must be at least one millisecond.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.Window < time.Millisecond {
		return nil, errors.New("rate limit window must be at least 1ms")
	}
	if cfg.Limit < 0 {
		return nil, errors.New("rate limit must not be negative")
	}

	l := &Limiter{
		cfg:                cfg,
		name:               cfg.Prefix,
		now:                time.Now,
		rand:               rand.Float64,
		cleanupProbability: DefaultCleanupProbability,
		logger:             observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	return l, nil
}

// Config returns the limiter settings.
func (l *Limiter) Config() Config { return l.cfg }

// Name returns the limiter label.
func (l *Limiter) Name() string { return l.name }

// Key returns the store key used for identifier.
func (l *Limiter) Key(identifier string) string {
	if l.cfg.Prefix == "" {
		return identifier
	}
	return l.cfg.Prefix + ":" + identifier
}

// WindowResetAt returns the end of the window that contains now.
func (l *Limiter) WindowResetAt(now time.Time) time.Time {
	window := l.cfg.Window.Milliseconds()
	ms := now.UnixMilli()
	start := ms - ms%window
	return time.UnixMilli(start + window).UTC()
}

// Check counts one request for identifier and reports whether it fits in the
// current window. The request is counted even when it is rejected. When the
// store fails the request is allowed and the failure is logged.
func (l *Limiter) Check(ctx context.Context, identifier string) Result {
	now := l.now()
	resetAt := l.WindowResetAt(now)
	key := l.Key(identifier)

	entry, err := l.store.Increment(ctx, key, resetAt, now)
	if err != nil {
		l.logger.Error("Rate limit store failed, allowing request",
			zap.String("limiter", l.name),
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordRateLimitStoreError(l.name)
		return Result{Allowed: true, Limit: l.cfg.Limit, Remaining: l.cfg.Limit, ResetAt: resetAt, CheckedAt: now}
	}

	if l.cleanupProbability > 0 && l.rand() < l.cleanupProbability {
		l.sweep(ctx, now)
	}

	allowed := entry.Count <= l.cfg.Limit
	metrics.RecordRateLimitCheck(l.name, allowed)

	if !entry.WindowResetAt.IsZero() {
		resetAt = entry.WindowResetAt
	}
	return Result{
		Allowed:   allowed,
		Limit:     l.cfg.Limit,
		Remaining: max(0, l.cfg.Limit-entry.Count),
		ResetAt:   resetAt,
		CheckedAt: now,
	}
}

// Sweep removes every expired entry from the store now.
func (l *Limiter) Sweep(ctx context.Context) int {
	return l.sweep(ctx, l.now())
}

func (l *Limiter) sweep(ctx context.Context, now time.Time) int {
	removed, err := l.store.Sweep(ctx, now)
	if err != nil {
		l.logger.Warn("Rate limit cleanup failed",
			zap.String("limiter", l.name),
			zap.Error(err))
		return 0
	}
	if removed > 0 {
		l.logger.Debug("Rate limit cleanup removed expired entries",
			zap.String("limiter", l.name),
			zap.Int("removed", removed))
	}
	metrics.RecordRateLimitSweep(l.name, removed)
	return removed
}
