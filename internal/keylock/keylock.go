// Package keylock serializes work per aggregate key (order id, product id,
// user id) inside one process.
package keylock

import (
	"context"
	"sort"
	"sync"
)

// entry is a one-slot semaphore so waiters can give up on ctx.
type entry struct {
	sem  chan struct{}
	refs int
}

// Locker hands out one lock per key and forgets keys nobody holds.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// LockContext blocks until key is held or ctx is done. On success it
// returns the matching unlock func.
func (l *Locker) LockContext(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.sem
		l.release(key, e)
	}, nil
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// LockAllContext acquires every distinct key in sorted order so that two
// callers locking overlapping sets cannot deadlock. Unlock releases in
// reverse. If ctx ends midway the keys already taken are released.
func (l *Locker) LockAllContext(ctx context.Context, keys ...string) (func(), error) {
	uniq := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range sorted {
		unlock, err := l.LockContext(ctx, k)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}

// Size returns the number of keys currently held or waited on.
func (l *Locker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
