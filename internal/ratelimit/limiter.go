// ABOUTME: Fixed-window admission limiter keyed by client origin
// ABOUTME: Counts admissions through a pluggable Counter (memory or Redis)

package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Defaults match the historical deployment: 100 admissions per 15 minutes
const (
	DefaultMax    = 100
	DefaultWindow = 15 * time.Minute
)

// Counter increments the admission count for a key within one fixed window.
// windowStart identifies the window; ttl is how long the count must live.
type Counter interface {
	Incr(ctx context.Context, key string, windowStart time.Time, ttl time.Duration) (int64, error)
	Close() error
}

// Decision is the outcome of one admission attempt
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration // time until the window rolls over; zero when allowed
}

// Limiter allows at most Max admissions per Window for each key.
type Limiter struct {
	counter Counter
	max     int64
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter. Non-positive max or window fall back to the defaults.
func New(counter Counter, max int, window time.Duration, opts ...Option) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		counter: counter,
		max:     int64(max),
		window:  window,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ratelimit")
	return l
}

// Allow records one admission attempt for key and reports whether it is
// within the limit. Counter failures admit the attempt.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	now := l.now()
	start := now.Truncate(l.window)
	end := start.Add(l.window)

	count, err := l.counter.Incr(ctx, key, start, l.window)
	if err != nil {
		l.logger.Warn("rate limit counter failed, admitting", "key", key, "error", err)
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max}
	}

	d := Decision{
		Allowed: count <= l.max,
		Count:   count,
		Limit:   l.max,
	}
	if d.Allowed {
		d.Remaining = l.max - count
	} else {
		d.RetryAfter = end.Sub(now)
		l.logger.Warn("rate limit exceeded", "key", key, "count", count, "limit", l.max)
	}
	return d
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Close releases the counter.
func (l *Limiter) Close() error {
	return l.counter.Close()
}
