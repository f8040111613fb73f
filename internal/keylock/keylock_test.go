package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.LockContext(context.Background(), "order:1")
			if !assert.NoError(t, err) {
				return
			}
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, l.Size())
}

func TestLockAllOverlappingSetsDoNotDeadlock(t *testing.T) {
	l := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := l.LockAllContext(ctx, "product:a", "product:b", "product:a")
			if assert.NoError(t, err) {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			unlock, err := l.LockAllContext(ctx, "product:b", "product:a")
			if assert.NoError(t, err) {
				unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, l.Size())
}

func TestLockContextGivesUpWhenDone(t *testing.T) {
	l := New()
	unlock, err := l.LockContext(context.Background(), "user:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = l.LockContext(ctx, "user:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	unlock()
	assert.Equal(t, 0, l.Size())

	unlock, err = l.LockContext(context.Background(), "user:1")
	require.NoError(t, err)
	unlock()
}

func TestLockAllContextReleasesPartialSet(t *testing.T) {
	l := New()
	unlockB, err := l.LockContext(context.Background(), "product:b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.LockAllContext(ctx, "product:a", "product:b")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA, err := l.LockContext(context.Background(), "product:a")
	require.NoError(t, err)
	unlockA()
	unlockB()
	assert.Equal(t, 0, l.Size())
}
