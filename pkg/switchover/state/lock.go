package state

import (
	"context"
	"os"
	"time"
)

// fileLock serializes writers across processes via an advisory exclusive
// lock on a sibling .lock file (spec.md §4.1, §5 "Shared-resource
// policy"). The platform-specific primitive lives in lock_unix.go /
// lock_other.go; this file holds the common acquire-with-timeout loop.
type fileLock struct {
	f *os.File
}

// acquire blocks until the lock is held, ctx is done, or wait elapses,
// whichever comes first. An invocation that cannot acquire the lock
// within the configured wait fails fast, per spec.md §5.
func (l *fileLock) acquire(ctx context.Context, path string, wait time.Duration) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := tryFlock(f)
		if err != nil {
			f.Close()
			return err
		}
		if ok {
			l.f = f
			return nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			f.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *fileLock) release() error {
	if l.f == nil {
		return nil
	}
	err := unlockFlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}
