// Package lock provides the exclusive locking primitive used to serialize
// index refresh cycles.
//
// The index is refreshed by a single process at a time; there is no
// distributed coordination (see Non-goals). The interface still takes a key
// so a process hosting more than one index can lock them independently.
package lock

import "context"

// Locker provides exclusive locking semantics keyed by name.
type Locker interface {
	// Lock acquires the exclusive lock for key, blocking until it is
	// available or ctx is done.
	Lock(ctx context.Context, key string) error

	// Unlock releases the exclusive lock for key.
	//
	// It is an error to call Unlock on a key that is not currently locked
	// by the caller.
	Unlock(ctx context.Context, key string) error

	// TryLock attempts to acquire the exclusive lock for key without
	// blocking. It reports whether the lock was acquired.
	TryLock(ctx context.Context, key string) (bool, error)
}
