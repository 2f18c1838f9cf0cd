package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache holds computed snapshots, currently the dashboard stat
// aggregates. Values are opaque byte slices; callers own the encoding.
// The in-memory backend covers single-instance deployments, the Redis
// backend shares snapshots across instances.
type Cache interface {
	// Get returns the value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete drops key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds an unexpired value.
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet returns the cached value for key, computing and storing
	// it via fn on a miss.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error
}
