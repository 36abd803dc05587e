// Package lock provides distributed and local locking abstractions.
package lock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if this locker still owns it.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker using Redis SET NX with expiry.
// Safe across multiple server instances sharing the same Redis.
type RedisLocker struct {
	client *goredis.Client
	owner  string
}

// NewRedisLocker creates a new RedisLocker. The owner string identifies
// this process so a lock expired and re-acquired elsewhere is never
// released by the original holder.
func NewRedisLocker(client *goredis.Client, owner string) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  owner,
	}
}

// Acquire attempts to acquire a lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return acquired, nil
}

// Release releases a lock if this locker owns it.
func (l *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return deleted > 0, nil
}

// Ensure RedisLocker implements Locker.
var _ Locker = (*RedisLocker)(nil)
