package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker placed in front of a driver.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64

	// OnStateChange is called with the breaker name when it opens or closes.
	OnStateChange func(name string, from, to string)
}

// ErrCircuitOpen is returned when a provider is short-circuited.
var ErrCircuitOpen = errors.New("provider circuit open")

// Breaker wraps a Driver with a gobreaker circuit breaker. Only transient
// provider failures count against the breaker; a rejected request does not
// take the provider out of rotation.
type Breaker struct {
	next Driver
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker named name.
func WithBreaker(name string, next Driver, s BreakerSettings) *Breaker {
	minRequests := s.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := s.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	}
	if s.OnStateChange != nil {
		settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
			s.OnStateChange(name, from.String(), to.String())
		}
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Complete runs the wrapped driver through the breaker.
func (b *Breaker) Complete(ctx context.Context, req *Request) (*Response, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, b.cb.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	resp, _ := result.(*Response)
	return resp, nil
}

// Name returns the wrapped driver's name.
func (b *Breaker) Name() string {
	return b.next.Name()
}

// Capabilities returns the wrapped driver's capabilities.
func (b *Breaker) Capabilities() Capabilities {
	return b.next.Capabilities()
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Unwrap returns the wrapped driver.
func (b *Breaker) Unwrap() Driver {
	return b.next
}
