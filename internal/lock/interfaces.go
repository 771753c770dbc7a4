// Package lock provides mutual exclusion for background jobs that must run
// on one instance at a time. A single process uses MemoryLocker; instances
// sharing a Redis use RedisLocker.
package lock

import (
	"context"
	"time"
)

// Locker grants named, expiring locks.
type Locker interface {
	// Acquire takes the lock for ttl. It returns false without error when
	// the lock is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives up a lock taken by this locker.
	// It returns false when the lock was not held.
	Release(ctx context.Context, key string) (bool, error)

	// IsHeld reports whether anyone holds the lock.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Lock binds a Locker to one key and remembers whether it was acquired,
// so Release is safe to defer unconditionally.
type Lock struct {
	locker Locker
	key    string
	held   bool
}

// NewLock returns an unacquired Lock for key.
func NewLock(locker Locker, key string) *Lock {
	return &Lock{locker: locker, key: key}
}

// Acquire takes the lock for ttl.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	acquired, err := l.locker.Acquire(ctx, l.key, ttl)
	if err != nil {
		return false, err
	}
	l.held = acquired
	return acquired, nil
}

// Release is a no-op unless Acquire succeeded.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	_, err := l.locker.Release(ctx, l.key)
	return err
}

// IsHeld reports whether this Lock acquired its key.
func (l *Lock) IsHeld() bool {
	return l.held
}

// Key returns the lock key.
func (l *Lock) Key() string {
	return l.key
}

// Keys names the locks used by Vaultbox.
var Keys = lockKeys{}

type lockKeys struct{}

// ReconcileOrphans guards the orphaned-object sweep.
func (lockKeys) ReconcileOrphans() string {
	return "lock:reconcile:orphans"
}
