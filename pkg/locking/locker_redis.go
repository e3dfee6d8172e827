package locking

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
)

// LockerRedis is a LockerInterface shared by every instance talking to the same redis
type LockerRedis struct {
	locker *redislock.Client
	// Timeout bounds how long a blocking Acquire retries
	Timeout time.Duration
}

// NewLockerRedis builds a new LockerRedis instance
func NewLockerRedis(redisClient *redis.Client) *LockerRedis {
	return &LockerRedis{
		locker:  redislock.New(redisClient),
		Timeout: time.Minute,
	}
}

// Acquire acquires a lock
func (l *LockerRedis) Acquire(ctx context.Context, key string, ttl time.Duration, tryOnlyOnce bool) (LockInterface, error) {
	var strategy redislock.RetryStrategy = redislock.NoRetry()
	if !tryOnlyOnce {
		strategy = redislock.LinearBackoff(500 * time.Millisecond)

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	obtained, err := l.locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: strategy,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}

	return &LockRedis{
		lock: obtained,
	}, nil
}

// LockRedis is a type of LockInterface
type LockRedis struct {
	lock *redislock.Lock
}

// Key Returns the key of the locking
func (l *LockRedis) Key() string {
	return l.lock.Key()
}

// Release will release the locking, an already expired lock is not an error
func (l *LockRedis) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}

	return err
}
