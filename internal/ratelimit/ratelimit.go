// Package ratelimit provides the admission control applied before
// authentication attempts are processed.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrRateLimited = errors.New("rate limited")

// Limiter answers whether one more attempt for the key is admitted.
// Returns nil to admit, ErrRateLimited to reject, any other error means the
// limiter backend is unavailable and should surface as an infrastructure
// failure, not as a rejection.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Config for a fixed window limit: at most MaxAttempts per Window per key
type Config struct {
	MaxAttempts int
	Window      time.Duration
}
