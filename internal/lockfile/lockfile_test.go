package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stats.json.lock")
	lock := New(path)

	if err := lock.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sentinel not created: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("sentinel still present after release: %v", err)
	}
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stats.json.lock")
	holder := New(path)
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	contender := New(path, WithPollInterval(5*time.Millisecond))
	err := contender.Acquire(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("contender acquire = %v, want ErrTimedOut", err)
	}
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stats.json.lock")
	holder := New(path)
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}

	contender := New(path, WithPollInterval(5*time.Millisecond))
	done := make(chan error, 1)
	go func() {
		done <- contender.Acquire(context.Background(), 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := holder.Release(); err != nil {
		t.Fatalf("holder release: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("contender acquire after release: %v", err)
	}
	if err := contender.Release(); err != nil {
		t.Fatalf("contender release: %v", err)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stats.json.lock")
	holder := New(path)
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	contender := New(path, WithPollInterval(5*time.Millisecond))
	err := contender.Acquire(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("contender acquire = %v, want context.Canceled", err)
	}
}

func TestReleaseWithoutSentinelIsNotAnError(t *testing.T) {
	t.Parallel()

	lock := New(filepath.Join(t.TempDir(), "stats.json.lock"))
	if err := lock.Release(); err != nil {
		t.Fatalf("release without sentinel: %v", err)
	}
}
