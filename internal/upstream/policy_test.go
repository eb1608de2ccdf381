package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(p *Policy) *Policy {
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &StatusError{Code: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &StatusError{Code: http.StatusBadGateway}, want: true},
		{name: "unauthorized", err: &StatusError{Code: http.StatusUnauthorized}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestPolicy_RetriesThenSucceeds(t *testing.T) {
	p := noSleep(New(Config{MaxRetries: 3}))
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_StopsOnPermanentError(t *testing.T) {
	p := noSleep(New(Config{MaxRetries: 5}))
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Code: http.StatusUnauthorized, Body: "bad key"}
	})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, 1, calls)
}

func TestPolicy_GivesUp(t *testing.T) {
	p := noSleep(New(Config{MaxRetries: 2}))
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{Code: http.StatusTooManyRequests}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Timeout(t *testing.T) {
	p := New(Config{Timeout: 20 * time.Millisecond, MaxRetries: 2})
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return errors.New("transport closed")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "deadline overruns are not retried")
}

func TestPolicy_RateLimitHonoursContext(t *testing.T) {
	p := New(Config{RequestsPerSecond: 0.001})
	require.NoError(t, p.Do(context.Background(), func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestNewStatusError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "3")
	rec.WriteHeader(http.StatusTooManyRequests)

	se := NewStatusError(rec.Result(), []byte("slow down"))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, 3*time.Second, se.RetryAfter)
	assert.Equal(t, "status 429: slow down", se.Error())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, RetryDelay(0))
	assert.Equal(t, 400*time.Millisecond, RetryDelay(1))
	assert.Equal(t, 5*time.Second, RetryDelay(10))
	assert.Equal(t, 200*time.Millisecond, RetryDelay(-1))
}
