package spider

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is a deterministic exponential backoff without jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns five attempts starting at 250ms, doubling up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   250 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
	}
}

// ShouldRetry reports whether err may succeed on another attempt. Server
// errors (5xx) and transport timeouts qualify. Caller cancellation never does.
func (p RetryPolicy) ShouldRetry(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.HasStatus() {
		return te.StatusCode >= http.StatusInternalServerError && te.StatusCode <= 599
	}
	return te.Timeout()
}

// Backoff returns the wait before the attempt following attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry runs op until it succeeds, fails terminally, or attempts run out.
// The last error is returned unchanged.
func retry[T any](ctx context.Context, c *Client, endpoint string, op func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	limit := c.retry.attempts()
	for attempt := 1; ; attempt++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= limit || !c.retry.ShouldRetry(ctx, err) {
			return result, err
		}
		delay := c.retry.Backoff(attempt)
		c.logger.Warn("retrying spider request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		c.observer.ObserveRetry(endpoint)
		if serr := c.sleep(ctx, delay); serr != nil {
			return result, err
		}
	}
}
