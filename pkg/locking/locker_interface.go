package locking

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when a lock could not be acquired with tryOnlyOnce
var ErrNotObtained = errors.New("lock not obtained")

// LockerInterface represents a Locker
type LockerInterface interface {
	// Acquire blocks until the lock is held, unless tryOnlyOnce is set in which case it fails fast with ErrNotObtained
	Acquire(ctx context.Context, key string, ttl time.Duration, tryOnlyOnce bool) (LockInterface, error)
}

// LockInterface represents a Lock
type LockInterface interface {
	Key() string
	Release(ctx context.Context) error
}
