package ratelimiter

import (
	"errors"
	"fmt"
	"time"
)

// Config defines a fixed window: at most Limit requests per Window.
type Config struct {
	Limit  int           `env:"LIMIT" envDefault:"30"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("limit must be positive, got %d", c.Limit))
	}
	if c.Window <= 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("window must be positive, got %v", c.Window))
	}
	return nil
}

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int
	Remaining int // negative once the window is exhausted
	ResetAt   time.Time
}

// Allowed reports whether the request fits in the window.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the next request, or 0 when the
// request was allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(0, r.ResetAt.Sub(now))
}
