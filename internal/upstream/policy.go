// Package upstream applies deadlines, retries and rate limits to calls made to
// network collaborators (embedding providers and generation APIs).
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// NewStatusError builds a StatusError from a response, reading Retry-After.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	e := &StatusError{Code: resp.StatusCode, Body: string(body)}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// Retryable reports whether err is worth another attempt: rate limiting,
// server errors and transport failures. Deadlines and cancellations are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Config configures a Policy.
type Config struct {
	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int
	// RequestsPerSecond throttles attempts. Zero disables throttling.
	RequestsPerSecond float64
}

// Policy runs calls under a Config.
type Policy struct {
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Policy.
func New(cfg Config) *Policy {
	p := &Policy{
		timeout:    cfg.Timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		sleep:      sleepCtx,
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// retries are used up. Each attempt gets its own deadline.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if p.limiter != nil {
			if werr := p.limiter.Wait(ctx); werr != nil {
				return werr
			}
		}
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt == p.maxRetries {
			return err
		}
		delay := RetryDelay(attempt)
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > 0 {
			delay = se.RetryAfter
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (p *Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := fn(actx)
	// Some clients surface the expired deadline only as a transport error.
	if err != nil && actx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// RetryDelay is an exponential backoff starting at 200ms, capped at 5s.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 5 * time.Second
	}
	d := (200 * time.Millisecond) << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
