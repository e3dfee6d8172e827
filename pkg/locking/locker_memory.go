package locking

import (
	"context"
	"sync"
	"time"
)

// LockerMemory is a process local LockerInterface, the ttl is ignored
type LockerMemory struct {
	locks sync.Map
}

// NewLockerMemory builds a new LockerMemory instance
func NewLockerMemory() *LockerMemory {
	return &LockerMemory{}
}

// Acquire acquires a LockInterface
func (l *LockerMemory) Acquire(ctx context.Context, key string, _ time.Duration, tryOnlyOnce bool) (LockInterface, error) {
	mutex := l.getLock(key)

	if tryOnlyOnce {
		if !mutex.TryLock() {
			return nil, ErrNotObtained
		}
	} else {
		for !mutex.TryLock() {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
	}

	return &LockMemory{
		key:     key,
		release: mutex.Unlock,
	}, nil
}

func (l *LockerMemory) getLock(key string) *sync.Mutex {
	lock, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// LockMemory is a memory implementation of a LockInterface
type LockMemory struct {
	key     string
	once    sync.Once
	release func()
}

// Key returns a key
func (l *LockMemory) Key() string {
	return l.key
}

// Release releases a LockMemory, releasing twice is a no-op
func (l *LockMemory) Release(_ context.Context) error {
	l.once.Do(l.release)
	return nil
}
