package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockMutualExclusion(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	l := p.ForClient("ab", "tok-1")
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// 同一个 key 拿到的是同一把锁
	same := p.ForClient("ab", "tok-2")
	ok, err = same.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Unlock(ctx))
	ok, err = same.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, same.Unlock(ctx))
}

func TestLocalLockBoundedWait(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	held := p.ForClient("ab", "tok-1")
	ok, err := held.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock(ctx)

	// 重试次数用完必须返回可重试的 busy，而不是挂起
	start := time.Now()
	err = p.ForClient("ab", "tok-2").Lock(ctx, time.Millisecond, 5)
	require.ErrorIs(t, err, ErrLockFailed)
	require.Less(t, time.Since(start), time.Second)
}

func TestLocalLockDifferentKeysIndependent(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	a := p.ForClient("a", "tok")
	b := p.ForClient("b", "tok")
	catalog := p.ForCatalog("tok")

	for _, l := range []Lock{a, b, catalog} {
		ok, err := l.TryLock(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLocalLockRespectsContext(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	held := p.ForClient("ab", "tok-1")
	ok, err := held.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock(ctx)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = p.ForClient("ab", "tok-2").Lock(cancelled, 10*time.Millisecond, 100)
	require.ErrorIs(t, err, context.Canceled)
}
