// Package ratelimit provides per-API adaptive throttling driven by
// response headers, plus the retry policy shared by both forge clients.
//
// A Limiter mirrors the last-seen rate-limit headers exactly: after
// every response, its state is the server's view. Before every request,
// Acquire sleeps as needed: until the reset when the quota is exhausted,
// for the server-mandated Retry-After, or for a smoothly ramping
// throttle delay once usage crosses a threshold.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
)

// Default limiter tuning.
const (
	// DefaultThreshold is the usage fraction above which throttling ramps up.
	DefaultThreshold = 0.5

	// DefaultMaxDelay caps the adaptive throttle delay.
	DefaultMaxDelay = 15 * time.Second

	// DefaultMinInterval spaces consecutive requests even under no pressure.
	DefaultMinInterval = 100 * time.Millisecond

	// resetSlack is added when sleeping until the reported reset instant.
	resetSlack = time.Second
)

// State is the exact view of the last-seen rate-limit headers.
type State struct {
	Limit         int           `json:"limit"`
	Remaining     int           `json:"remaining"`
	ResetAt       time.Time     `json:"reset_at"`
	RetryAfter    time.Duration `json:"retry_after,omitempty"`
	ThrottleDelay time.Duration `json:"throttle_delay"`
}

// Observer receives limiter telemetry. Implemented by observability.Metrics.
type Observer interface {
	// ObserveSleep records a pre-request sleep for the named API.
	ObserveSleep(api string, d time.Duration)

	// IncRequest counts an issued request for the named API.
	IncRequest(api string)
}

// Limiter is a per-API adaptive throttle. Safe for concurrent use; the
// mutex guards only small scalars, sleeps happen outside it.
type Limiter struct {
	api         string
	threshold   float64
	maxDelay    time.Duration
	minInterval time.Duration
	observer    Observer

	mu          sync.Mutex
	state       State
	lastRequest time.Time

	// now and sleep are injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithThreshold sets the usage fraction where throttling begins.
func WithThreshold(threshold float64) Option {
	return func(l *Limiter) { l.threshold = threshold }
}

// WithMaxDelay caps the adaptive throttle delay.
func WithMaxDelay(d time.Duration) Option {
	return func(l *Limiter) { l.maxDelay = d }
}

// WithMinInterval sets the minimum spacing between requests.
func WithMinInterval(d time.Duration) Option {
	return func(l *Limiter) { l.minInterval = d }
}

// WithObserver attaches limiter telemetry.
func WithObserver(o Observer) Option {
	return func(l *Limiter) { l.observer = o }
}

// WithClock overrides the time source and sleeper. Test hook.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// NewLimiter creates a limiter for the named API.
func NewLimiter(api string, opts ...Option) *Limiter {
	l := &Limiter{
		api:         api,
		threshold:   DefaultThreshold,
		maxDelay:    DefaultMaxDelay,
		minInterval: DefaultMinInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until a request may be issued. Returns early only on
// context cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	delay := l.takeDelay()

	if delay > 0 {
		if l.observer != nil {
			l.observer.ObserveSleep(l.api, delay)
		}

		sleepErr := l.sleep(ctx, delay)
		if sleepErr != nil {
			return sleepErr
		}
	}

	l.mu.Lock()
	l.lastRequest = l.now()
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.IncRequest(l.api)
	}

	return nil
}

// takeDelay computes how long the next request must wait and consumes
// one-shot state (retry-after).
func (l *Limiter) takeDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.state.Limit > 0 && l.state.Remaining == 0 && l.state.ResetAt.After(now) {
		return l.state.ResetAt.Sub(now) + resetSlack
	}

	if l.state.RetryAfter > 0 {
		d := l.state.RetryAfter
		l.state.RetryAfter = 0

		return d
	}

	delay := l.state.ThrottleDelay

	if !l.lastRequest.IsZero() {
		sinceLast := now.Sub(l.lastRequest)
		if spacing := l.minInterval - sinceLast; spacing > delay {
			delay = spacing
		}
	}

	return delay
}

// UpdateFromHeaders overwrites state from parsed header values and
// recomputes the throttle delay.
func (l *Limiter) UpdateFromHeaders(limit, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Limit = limit
	l.state.Remaining = remaining
	l.state.ResetAt = resetAt
	l.state.ThrottleDelay = l.computeThrottle()
}

// computeThrottle ramps the delay linearly from zero at the threshold to
// maxDelay at full usage. Caller holds the mutex.
func (l *Limiter) computeThrottle() time.Duration {
	if l.state.Limit <= 0 {
		return 0
	}

	usage := 1 - float64(l.state.Remaining)/float64(l.state.Limit)
	if usage < l.threshold {
		return 0
	}

	frac := (usage - l.threshold) / (1 - l.threshold)
	delay := time.Duration(frac * float64(l.maxDelay))

	if delay > l.maxDelay {
		delay = l.maxDelay
	}

	if delay < 0 {
		delay = 0
	}

	return delay
}

// SetRetryAfter records a server-mandated wait from a 429 response.
func (l *Limiter) SetRetryAfter(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.RetryAfter = d
}

// Snapshot returns a copy of the current state.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// UpdateFromResponse reads rate-limit headers off a response, trying the
// GitHub-style X-RateLimit-* names first and the GitLab-style
// RateLimit-* names second. A 429 additionally records Retry-After.
func (l *Limiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	limit, remaining, resetAt, ok := parseRateHeaders(resp.Header, "X-RateLimit-")
	if !ok {
		limit, remaining, resetAt, ok = parseRateHeaders(resp.Header, "RateLimit-")
	}

	if ok {
		l.UpdateFromHeaders(limit, remaining, resetAt)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if d := forge.ParseRetryAfter(resp.Header.Get("Retry-After")); d > 0 {
			l.SetRetryAfter(d)
		}
	}
}

// parseRateHeaders reads <prefix>Limit/Remaining/Reset. Reset is Unix
// seconds on both forges.
func parseRateHeaders(h http.Header, prefix string) (limit, remaining int, resetAt time.Time, ok bool) {
	limitStr := h.Get(prefix + "Limit")
	remainingStr := h.Get(prefix + "Remaining")

	if limitStr == "" || remainingStr == "" {
		return 0, 0, time.Time{}, false
	}

	limit, limitErr := strconv.Atoi(limitStr)
	remaining, remainingErr := strconv.Atoi(remainingStr)

	if limitErr != nil || remainingErr != nil {
		return 0, 0, time.Time{}, false
	}

	if resetStr := h.Get(prefix + "Reset"); resetStr != "" {
		if unix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(unix, 0)
		}
	}

	return limit, remaining, resetAt, true
}
