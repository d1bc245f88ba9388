package ratelimiter

import (
	"context"
	"time"
)

// Store counts hits per key in fixed windows.
type Store interface {
	// Increment adds n hits to key and returns the window total and the time
	// left until the window resets. The window starts on the first hit.
	Increment(ctx context.Context, key string, n int, window time.Duration) (count int64, ttl time.Duration, err error)
}
