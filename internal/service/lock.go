package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLocked = errors.New("lock held by another grader")

// Locker grants at most one holder per key. TryLock never blocks waiting for
// the holder; it returns ErrLocked instead.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// LocalLocker is an in-process Locker. ttl is ignored: the holder is in the
// same process and always releases.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
