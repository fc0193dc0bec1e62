package driver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	err   error
	calls int
}

func (s *stubDriver) Complete(context.Context, *Request) (*Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Response{FinishReason: "stop"}, nil
}

func (s *stubDriver) Name() string               { return "stub" }
func (s *stubDriver) Capabilities() Capabilities { return Capabilities{} }

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	stub := &stubDriver{err: &ProviderError{Provider: "stub", StatusCode: http.StatusBadGateway, Message: "down"}}
	var transitions []string
	b := WithBreaker("stub", stub, BreakerSettings{
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
		OnStateChange: func(_ string, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), &Request{})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}

	_, err := b.Complete(context.Background(), &Request{})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, stub.calls)
	assert.Equal(t, "open", b.State())
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	stub := &stubDriver{err: &ProviderError{Provider: "stub", StatusCode: http.StatusBadRequest, Message: "bad"}}
	b := WithBreaker("stub", stub, BreakerSettings{Timeout: time.Minute, MinRequests: 1, FailureRatio: 0.1})

	for i := 0; i < 5; i++ {
		_, err := b.Complete(context.Background(), &Request{})
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
	}
	assert.Equal(t, 5, stub.calls)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerPassesResponses(t *testing.T) {
	b := WithBreaker("stub", &stubDriver{}, BreakerSettings{})
	resp, err := b.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "stub", b.Name())
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.True(t, IsTransient(&ProviderError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsTransient(&ProviderError{StatusCode: http.StatusUnauthorized}))
}
