package offline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/postpilot/postpilot/internal/store"
)

func TestSweeperClearsExpiredRows(t *testing.T) {
	cache, clock, st := newTestCache(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	cache.Save(ctx, "gone", []byte("x"), time.Millisecond)
	clock.Advance(time.Second)

	sw := NewSweeper(cache, 5*time.Millisecond, nil)
	sw.Start(ctx)
	sw.Start(ctx)

	require.Eventually(t, func() bool {
		rows, err := st.ListResponses(ctx, store.ResponseQuery{})
		return err == nil && len(rows) == 0
	}, 2*time.Second, 5*time.Millisecond)

	sw.Stop()
	sw.Stop()
}

func TestSweeperDisabled(t *testing.T) {
	cache, _, _ := newTestCache(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sw := NewSweeper(cache, 0, nil)
	sw.Start(context.Background())
	sw.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sw.Run(ctx))
}
