// Package cache provides the key-value cache abstraction shared by the service.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value store interface used for live status documents.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// LockOps provides best-effort distributed locking for cross-process
// coordination, such as sandbox image fetches.
type LockOps interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
