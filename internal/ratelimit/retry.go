package ratelimit

import (
	"context"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// Retry tuning defaults.
const (
	// DefaultMaxRetries bounds retry attempts for transient failures.
	DefaultMaxRetries = 3

	// DefaultBaseDelay seeds the exponential backoff.
	DefaultBaseDelay = time.Second

	// maxBackoff caps a single backoff sleep.
	maxBackoff = 60 * time.Second
)

// Policy holds retry parameters for transient forge failures.
type Policy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	// BaseDelay seeds the exponential backoff (BaseDelay * 2^attempt).
	BaseDelay time.Duration

	// sleep is the injection point for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		sleep:      sleepContext,
	}
}

// WithSleeper returns a copy of the policy with a custom sleeper. Test hook.
func (p Policy) WithSleeper(sleep func(context.Context, time.Duration) error) Policy {
	p.sleep = sleep

	return p
}

// Do runs fn, retrying transient failures per the policy. Rate-limit
// failures honor the server's Retry-After before the next attempt;
// other transient failures back off exponentially, capped at one
// minute. Permanent failures return immediately.
func (p Policy) Do(ctx context.Context, forgeName string, fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(base, attempt-1)

			if fe := forge.AsError(forgeName, lastErr); fe.Category == forge.CategoryRateLimit && fe.RetryAfter > 0 {
				delay = fe.RetryAfter
			}

			sleepErr := sleep(ctx, delay)
			if sleepErr != nil {
				return sleepErr
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}

		if !forge.AsError(forgeName, lastErr).Retryable() {
			return lastErr
		}
	}

	return lastErr
}

// backoffDelay computes base * 2^attempt capped at maxBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base

	for range attempt {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}

	if delay > maxBackoff {
		return maxBackoff
	}

	return delay
}
