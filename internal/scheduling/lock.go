package scheduling

import (
	"context"
	"sync"
)

// Locker serializes critical sections by key. The agenda locks one key per
// calendar day so that the conflict check and the write that follows it are
// never interleaved with another booking on the same day.
//
// Lock blocks until the key is acquired or ctx is done. The returned unlock
// function is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// DayKey is the lock key for a calendar date.
func DayKey(date string) string { return "agenda:" + date }

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Entries are reference counted
// and dropped once no goroutine holds or waits on them, so memory stays
// bounded by the number of days being booked concurrently.
//
// This type is safe for concurrent use. Its zero value is ready to use.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

// Lock acquires key, honoring ctx cancellation while waiting.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = make(map[string]*lockEntry)
	}
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size returns the number of live entries (tests only).
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
