// Package ratelimiter implements fixed-window rate limiting backed by Redis,
// with an in-memory store for single-process deployments.
//
//	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(rdb, ""), ratelimiter.Config{
//		Limit:  30,
//		Window: time.Minute,
//	})
//	r.With(ratelimiter.Middleware(limiter, callerKey)).Post("/subscriber/{id}/transaction", h)
package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Limiter applies a Config to keys counted in a Store.
type Limiter struct {
	store  Store
	config Config
	now    func() time.Time
}

// New creates a Limiter.
func New(store Store, config Config) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, config: config, now: time.Now}, nil
}

// Allow records one hit for key.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN records n hits for key.
func (l *Limiter) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	count, ttl, err := l.store.Increment(ctx, key, n, l.config.Window)
	if err != nil {
		return nil, err
	}
	return &Result{
		Limit:     l.config.Limit,
		Remaining: l.config.Limit - int(count),
		ResetAt:   l.now().Add(ttl),
	}, nil
}
