// Package stats accumulates process-local play counters and merges them into
// the durable statistics file under an advisory lock.
//
// Pending counters live only in memory and survive a contended merge cycle
// untouched; they are reduced only after the merged snapshot has been written
// and the lock released. A failed merge or shutdown flush appends the pending
// snapshot to a crash-recovery log so the counts are never lost silently.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"memebot/internal/lockfile"
	"memebot/internal/store"
	"memebot/pkg/memebot"
)

const (
	statsFile       = "stats.json"
	statsBackupFile = "stats-backup.json"
	statsLockFile   = "stats.json.lock"

	defaultLockWait = 5 * time.Second
)

// Aggregator owns the pending counters and the locked merge cycle.
//
// Counter mutation is safe to call concurrently with a running merge.
type Aggregator struct {
	dir          string
	crashLogPath string
	lock         *lockfile.Lock
	lockWait     time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	guilds int
	counts map[string]int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLockWait overrides the bounded wait for the stats lock.
func WithLockWait(wait time.Duration) Option {
	return func(a *Aggregator) {
		if wait > 0 {
			a.lockWait = wait
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLockPollInterval overrides the lock contention polling interval.
func WithLockPollInterval(interval time.Duration) Option {
	return func(a *Aggregator) {
		a.lock = lockfile.New(
			filepath.Join(a.dir, statsLockFile),
			lockfile.WithPollInterval(interval),
		)
	}
}

// New creates an aggregator persisting under dir and crash-logging to
// crashLogPath.
func New(dir, crashLogPath string, options ...Option) *Aggregator {
	aggregator := &Aggregator{
		dir:          dir,
		crashLogPath: crashLogPath,
		lock:         lockfile.New(filepath.Join(dir, statsLockFile)),
		lockWait:     defaultLockWait,
		logger:       slog.Default(),
		counts:       make(map[string]int),
	}
	for _, option := range options {
		option(aggregator)
	}

	return aggregator
}

// RecordPlay increments the pending counter for one meme name.
func (a *Aggregator) RecordPlay(memeName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[memeName]++
}

// InitCounter registers a zero-valued pending counter for a new meme.
func (a *Aggregator) InitCounter(memeName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.counts[memeName]; !exists {
		a.counts[memeName] = 0
	}
}

// RemoveCounter drops the pending counter for a deleted meme.
func (a *Aggregator) RemoveCounter(memeName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.counts, memeName)
}

// RecordGuildJoin increments the pending guild counter.
func (a *Aggregator) RecordGuildJoin() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.guilds++
}

// PendingCount returns the pending play count for one meme name.
func (a *Aggregator) PendingCount(memeName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.counts[memeName]
}

// PendingSnapshot returns a copy of all pending counters.
func (a *Aggregator) PendingSnapshot() memebot.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshotLocked()
}

// Merge runs one scheduled merge cycle.
//
// A contended lock defers the cycle: pending counters stay queued and the
// returned error wraps memebot.ErrContention. Any other failure appends the
// pending snapshot to the crash-recovery log.
func (a *Aggregator) Merge(ctx context.Context) error {
	err := a.mergeOnce(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, memebot.ErrContention) {
		a.logger.Debug("stats file already locked, merge deferred")
		return err
	}

	a.appendCrashLog()

	return err
}

// Flush runs the synchronous shutdown merge. Every failure, contention
// included, appends the pending snapshot to the crash-recovery log.
func (a *Aggregator) Flush(ctx context.Context) error {
	err := a.mergeOnce(ctx)
	if err == nil {
		return nil
	}

	a.appendCrashLog()

	return fmt.Errorf("flush stats: %w", err)
}

func (a *Aggregator) mergeOnce(ctx context.Context) error {
	pending := a.PendingSnapshot()
	if pending.Guilds == 0 && len(pending.Counts) == 0 {
		a.logger.Debug("no pending stats to merge")
		return nil
	}

	if err := a.lock.Acquire(ctx, a.lockWait); err != nil {
		if errors.Is(err, lockfile.ErrTimedOut) {
			return fmt.Errorf("%w: %w", memebot.ErrContention, err)
		}
		return fmt.Errorf("acquire stats lock: %w", err)
	}

	durable := a.readDurable()
	durable.Merge(pending)

	if err := a.writeDurable(durable); err != nil {
		a.lock.Release()
		return err
	}
	if err := a.lock.Release(); err != nil {
		return fmt.Errorf("release stats lock: %w", err)
	}

	a.reducePending(pending)
	a.logger.Debug("merged stats", "guilds", durable.Guilds, "memes", len(durable.Counts))

	return nil
}

// readDurable loads the durable snapshot, treating a missing or unreadable
// file as empty.
func (a *Aggregator) readDurable() memebot.StatsSnapshot {
	var snapshot memebot.StatsSnapshot

	data, err := os.ReadFile(filepath.Join(a.dir, statsFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("unreadable stats file, treating as empty", "error", err)
		}
		return snapshot
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		a.logger.Warn("corrupt stats file, treating as empty", "error", err)
		return memebot.StatsSnapshot{}
	}

	return snapshot
}

func (a *Aggregator) writeDurable(snapshot memebot.StatsSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := store.WriteFileAtomic(filepath.Join(a.dir, statsFile), data); err != nil {
		return fmt.Errorf("%w: write %s: %w", memebot.ErrPersistence, statsFile, err)
	}
	if err := store.WriteFileAtomic(filepath.Join(a.dir, statsBackupFile), data); err != nil {
		return fmt.Errorf("%w: write %s: %w", memebot.ErrPersistence, statsBackupFile, err)
	}

	return nil
}

// reducePending subtracts a merged snapshot so increments recorded during the
// merge survive into the next cycle.
func (a *Aggregator) reducePending(merged memebot.StatsSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.guilds -= merged.Guilds
	if a.guilds < 0 {
		a.guilds = 0
	}
	for memeName, count := range merged.Counts {
		remaining := a.counts[memeName] - count
		if remaining > 0 {
			a.counts[memeName] = remaining
		} else {
			delete(a.counts, memeName)
		}
	}
}

func (a *Aggregator) appendCrashLog() {
	snapshot := a.PendingSnapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		a.logger.Error("marshal pending stats for crash log", "error", err)
		return
	}

	if dir := filepath.Dir(a.crashLogPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.logger.Error("create crash log dir", "error", err)
			return
		}
	}
	file, err := os.OpenFile(a.crashLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		a.logger.Error("open stats crash log", "error", err)
		return
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s\n", data); err != nil {
		a.logger.Error("append stats crash log", "error", err)
	}
}

func (a *Aggregator) snapshotLocked() memebot.StatsSnapshot {
	snapshot := memebot.StatsSnapshot{
		Guilds: a.guilds,
		Counts: make(map[string]int, len(a.counts)),
	}
	for memeName, count := range a.counts {
		snapshot.Counts[memeName] = count
	}

	return snapshot
}

