package offline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/observability"
)

// Sweeper runs ClearExpired on an interval so keys that are never saved or
// read again do not keep their rows forever.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	logger   observability.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a sweeper for cache. A non-positive interval makes
// Start a no-op.
func NewSweeper(cache *Cache, interval time.Duration, logger observability.Logger) *Sweeper {
	return &Sweeper{cache: cache, interval: interval, logger: observability.OrNop(logger)}
}

// Start launches the sweep loop. Calling Start on a running sweeper does
// nothing.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 || s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.Run(ctx)
	}()
}

// Stop ends the loop started by Start and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run sweeps every interval until ctx is done. It returns nil on
// cancellation so it can run under an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 || s.cache == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.cache.ClearExpired(ctx); removed > 0 {
				s.logger.Debug("Swept expired offline responses", zap.Int64("removed", removed))
			}
		}
	}
}
