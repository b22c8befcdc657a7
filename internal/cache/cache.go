// Package cache holds short-lived copies of remote yield data so request
// handlers and the scheduled refresher don't each hit the upstream API.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned when the in-process cache declines to admit a value.
var ErrRejected = errors.New("cache: value rejected")

// Store is a byte-oriented TTL cache. Lookups that fail for any reason are
// reported as misses; callers fall back to the source of truth.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string)
	Ping(ctx context.Context) error
	Close() error
}
