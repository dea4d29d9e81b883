// Package lockfile implements a sentinel-file advisory lock with bounded wait.
//
// Acquisition creates the sentinel with O_EXCL; release deletes it. The lock
// coordinates writers on a single host only and carries no consensus
// semantics: a contended acquire degrades to a timeout the caller can defer on.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimedOut indicates the sentinel stayed held for the whole bounded wait.
var ErrTimedOut = errors.New("lockfile: acquire timed out")

const defaultPollInterval = 100 * time.Millisecond

// Lock is one sentinel-file mutual-exclusion resource.
type Lock struct {
	path         string
	pollInterval time.Duration
}

// Option configures a Lock.
type Option func(*Lock)

// WithPollInterval overrides the contention polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(l *Lock) {
		if interval > 0 {
			l.pollInterval = interval
		}
	}
}

// New creates a lock over the sentinel file at path.
func New(path string, options ...Option) *Lock {
	lock := &Lock{
		path:         path,
		pollInterval: defaultPollInterval,
	}
	for _, option := range options {
		option(lock)
	}

	return lock
}

// Path returns the sentinel file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire attempts to create the sentinel, polling until the bounded wait
// elapses. It returns ErrTimedOut when the sentinel stays held, and the
// context error when ctx is canceled first.
func (l *Lock) Acquire(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)

	for {
		created, err := l.tryCreate()
		if err != nil {
			return fmt.Errorf("acquire %s: %w", l.path, err)
		}
		if created {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire %s: %w", l.path, ErrTimedOut)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w", l.path, ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}
}

// Release deletes the sentinel, releasing the lock for the next writer.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release %s: %w", l.path, err)
	}

	return nil
}

func (l *Lock) tryCreate() (bool, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}

	// The owner pid makes a leaked sentinel diagnosable by hand.
	fmt.Fprintf(file, "%d\n", os.Getpid())
	if err := file.Close(); err != nil {
		return true, err
	}

	return true, nil
}
