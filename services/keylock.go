package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

// keyLock serialises work per user inside this process with a bounded wait.
// An entry lives only while someone holds or waits for its key.
type keyLock struct {
	mu      sync.Mutex
	entries map[uint]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[uint]*keyEntry)}
}

// acquire blocks until key is free, wait elapses or ctx ends.
// wait <= 0 waits on ctx alone.
func (l *keyLock) acquire(ctx context.Context, key uint, wait time.Duration) (func(), error) {
	entry := l.ref(key)

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case entry.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.ch
				l.unref(key, entry)
			})
		}, nil
	case <-timeout:
		l.unref(key, entry)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.unref(key, entry)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}
}

func (l *keyLock) ref(key uint) *keyEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &keyEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *keyLock) unref(key uint, entry *keyEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports how many keys are held or awaited.
func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
