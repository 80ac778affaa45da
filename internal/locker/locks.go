package locker

import (
	"context"
	"sync"
)

// LocalLocks is an in-process DayLocker. It is enough for a single API node;
// multi-node deployments use the Redis lease.
type LocalLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocks() *LocalLocks {
	return &LocalLocks{slots: make(map[string]chan struct{})}
}

func (l *LocalLocks) slot(day string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[day]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[day] = ch
	}
	return ch
}

// Acquire blocks until the day is free or ctx is done.
func (l *LocalLocks) Acquire(ctx context.Context, day string) (func(), error) {
	ch := l.slot(day)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
