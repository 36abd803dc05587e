package lock

import (
	"context"
	"time"
)

// NoopLocker implements Locker without any actual locking.
// Used when locking is explicitly disabled (e.g. one-off admin commands
// against a private database).
type NoopLocker struct{}

// NewNoopLocker creates a new no-op locker.
func NewNoopLocker() *NoopLocker {
	return &NoopLocker{}
}

// Acquire always succeeds.
func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

// Release always succeeds.
func (NoopLocker) Release(ctx context.Context, key string) (bool, error) {
	return true, nil
}

// Ensure NoopLocker implements Locker.
var _ Locker = (NoopLocker{})
