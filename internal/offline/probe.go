package offline

import (
	"context"
	"net"
	"time"
)

// Connectivity reports whether live calls should be attempted.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// Always returns a fixed answer.
func Always(online bool) Connectivity {
	return ConnectivityFunc(func(context.Context) bool { return online })
}

// Probe decides connectivity by opening a TCP connection to Addr.
type Probe struct {
	Addr    string
	Timeout time.Duration

	// ForceOffline skips the dial and reports offline.
	ForceOffline bool

	Dialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	}
}

func (p *Probe) Online(ctx context.Context) bool {
	if p == nil || p.ForceOffline {
		return false
	}
	if p.Addr == "" {
		return true
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := p.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
