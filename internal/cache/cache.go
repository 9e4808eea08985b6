// Package cache provides the TTL key-value store shared by the rate limiter
// and the price service.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache: miss")

// Cache is a TTL key-value store. A zero ttl means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr increments a counter and returns the new value. ttl applies only
	// when the counter is created, which gives fixed-window semantics.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	Delete(ctx context.Context, key string) error
}
