// Package local provides an in-process exclusive locker built on
// sync.Mutex. It is the only lock.Locker implementation this module ships,
// since index refresh coordination never crosses process boundaries.
//
// The per-key ref-counted mutex map in locker.go follows the upstream
// cache's local locker closely: that structure is how you implement
// "one mutex per key, cleaned up when nobody's waiting on it" in Go
// regardless of domain, so it is kept. What doesn't belong to this module
// was cut rather than carried and ignored: the TTL parameter on Lock/TryLock
// (distributed backends need a lease length, an in-process mutex does not)
// and the read-lock variant and its ErrRUnlockUnknownKey sibling (nothing
// here ever takes a shared read lock on the refresh cycle).
package local
