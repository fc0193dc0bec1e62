package offline

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeOnline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := &Probe{Addr: ln.Addr().String(), Timeout: time.Second}
	assert.True(t, p.Online(context.Background()))

	p.ForceOffline = true
	assert.False(t, p.Online(context.Background()))
}

func TestProbeUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := &Probe{Addr: addr, Timeout: 200 * time.Millisecond}
	assert.False(t, p.Online(context.Background()))
}

func TestProbeWithoutAddrIsOnline(t *testing.T) {
	assert.True(t, (&Probe{}).Online(context.Background()))
	var p *Probe
	assert.False(t, p.Online(context.Background()))
}
