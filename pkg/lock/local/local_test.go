package local_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/lock/local"
)

func TestLocker_BasicLockUnlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	require.NoError(t, locker.Lock(ctx, "index"))
	require.NoError(t, locker.Unlock(ctx, "index"))
}

func TestLocker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	var (
		counter int64
		wg      sync.WaitGroup
	)

	for range 10 {
		wg.Go(func() {
			for range 100 {
				require.NoError(t, locker.Lock(ctx, "index"))

				val := atomic.LoadInt64(&counter)
				atomic.StoreInt64(&counter, val+1)

				assert.NoError(t, locker.Unlock(ctx, "index"))
			}
		})
	}

	wg.Wait()

	assert.Equal(t, int64(1000), atomic.LoadInt64(&counter))
}

func TestLocker_TryLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	acquired, err := locker.TryLock(ctx, "index")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired2, err := locker.TryLock(ctx, "index")
	require.NoError(t, err)
	assert.False(t, acquired2, "second attempt should fail while the lock is held")

	require.NoError(t, locker.Unlock(ctx, "index"))

	acquired3, err := locker.TryLock(ctx, "index")
	require.NoError(t, err)
	assert.True(t, acquired3)

	require.NoError(t, locker.Unlock(ctx, "index"))
}

func TestLocker_IndependentKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	require.NoError(t, locker.Lock(ctx, "index-a"))

	acquired, err := locker.TryLock(ctx, "index-b")
	require.NoError(t, err)
	assert.True(t, acquired, "distinct keys use distinct mutexes")

	acquired2, err := locker.TryLock(ctx, "index-a")
	require.NoError(t, err)
	assert.False(t, acquired2, "same key should still be locked")

	require.NoError(t, locker.Unlock(ctx, "index-a"))
	require.NoError(t, locker.Unlock(ctx, "index-b"))
}

func TestLocker_UnlockUnknownKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	err := locker.Unlock(ctx, "never-locked")
	assert.ErrorIs(t, err, local.ErrUnlockUnknownKey)
}

// TestLocker_ConcurrentUnlock exercises concurrent Unlock calls on the same
// key; without the refcount map being guarded, both callers could pass the
// existence check before either finishes releasing.
func TestLocker_ConcurrentUnlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := local.NewLocker()

	require.NoError(t, locker.Lock(ctx, "index"))

	var wg sync.WaitGroup

	start := make(chan struct{})

	for range 10 {
		wg.Go(func() {
			<-start

			_ = locker.Unlock(ctx, "index")
		})
	}

	close(start)
	wg.Wait()
}
