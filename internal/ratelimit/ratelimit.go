// Package ratelimit implements the fixed-window counter that gates login
// attempts per identity. It is a fixed window, not a sliding log: bursts
// straddling a window boundary can admit up to twice the limit (five at
// t=299s, five more at t=301s). That is a known, accepted limitation of
// the design, traded for a single atomic increment per attempt.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultLimit and DefaultWindow gate login attempts per email.
	DefaultLimit  = 5
	DefaultWindow = 300 * time.Second
)

// CounterStore is a shared counter with per-key expiry. Incr must
// atomically initialize-or-increment: the first call in a window sets
// the counter to 1 with TTL=window; later calls increment without
// touching the TTL.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter applies a fixed-window limit on top of a CounterStore.
type Limiter struct {
	store  CounterStore
	limit  int64
	window time.Duration
	prefix string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit overrides the attempts-per-window limit.
func WithLimit(limit int64) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithWindow overrides the window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithKeyPrefix namespaces counter keys in a shared store.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

// New constructs a Limiter over the given store.
func New(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		prefix: "login_attempts:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one attempt for key and reports whether it is within
// the window's limit. Attempts past the limit keep failing until the
// window's TTL elapses; they never reset or extend the window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, l.prefix+key, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}
