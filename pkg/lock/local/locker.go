package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lukewwww/community-intern/pkg/lock"
)

// ErrUnlockUnknownKey is returned when attempting to unlock a key that is
// not currently locked.
var ErrUnlockUnknownKey = fmt.Errorf("local.Locker: unlock of unknown key")

// Locker implements lock.Locker using per-key mutexes. A ref-counted map
// entry is removed once no goroutine holds or waits on its key, so the
// common case of a single key never leaks memory.
type Locker struct {
	mu      sync.Mutex
	lockers map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refCount  int
	startTime time.Time
}

// NewLocker creates a new local locker.
func NewLocker() lock.Locker {
	return &Locker{
		lockers: make(map[string]*keyLock),
	}
}

func (l *Locker) getLock(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.lockers[key]
	if !ok {
		kl = &keyLock{}
		l.lockers[key] = kl
	}

	kl.refCount++

	return kl
}

func (l *Locker) releaseLock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl := l.lockers[key]

	kl.refCount--
	if kl.refCount == 0 {
		delete(l.lockers, key)
	}
}

// markAcquired stamps kl's hold start time and records the acquisition.
func markAcquired(ctx context.Context, kl *keyLock, key string) {
	kl.startTime = time.Now()

	lock.RecordLockAcquisition(ctx, key, lock.LockResultSuccess)
}

// Lock acquires an exclusive lock for key.
func (l *Locker) Lock(ctx context.Context, key string) error {
	kl := l.getLock(key)

	kl.Lock()
	markAcquired(ctx, kl, key)

	return nil
}

// Unlock releases the exclusive lock for key.
func (l *Locker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()

	kl, ok := l.lockers[key]
	if !ok {
		l.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnlockUnknownKey, key)
	}

	startTime := kl.startTime
	kl.startTime = time.Time{}

	kl.refCount--
	if kl.refCount == 0 {
		delete(l.lockers, key)
	}

	l.mu.Unlock()

	if !startTime.IsZero() {
		lock.RecordLockDuration(ctx, key, time.Since(startTime).Seconds())
	}

	kl.Unlock()

	return nil
}

// TryLock attempts to acquire the exclusive lock for key without blocking.
func (l *Locker) TryLock(ctx context.Context, key string) (bool, error) {
	kl := l.getLock(key)

	acquired := kl.TryLock()
	if !acquired {
		lock.RecordLockAcquisition(ctx, key, lock.LockResultContention)
		l.releaseLock(key)

		return false, nil
	}

	markAcquired(ctx, kl, key)

	return true, nil
}
