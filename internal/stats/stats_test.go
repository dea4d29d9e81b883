package stats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"memebot/internal/lockfile"
	"memebot/pkg/memebot"
)

func newTestAggregator(t *testing.T) (*Aggregator, string) {
	t.Helper()

	dir := t.TempDir()
	aggregator := New(
		dir,
		filepath.Join(dir, "logs", "stats-crash.log"),
		WithLockWait(50*time.Millisecond),
		WithLockPollInterval(5*time.Millisecond),
	)

	return aggregator, dir
}

func readDurableStats(t *testing.T, dir string) memebot.StatsSnapshot {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "stats.json"))
	if err != nil {
		t.Fatalf("read stats.json: %v", err)
	}
	var snapshot memebot.StatsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("parse stats.json: %v", err)
	}

	return snapshot
}

func TestMergeSumsPendingIntoDurable(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)

	durable := memebot.StatsSnapshot{Guilds: 2, Counts: map[string]int{"duck": 5}}
	data, err := json.Marshal(durable)
	if err != nil {
		t.Fatalf("marshal durable: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stats.json"), data, 0o644); err != nil {
		t.Fatalf("seed stats.json: %v", err)
	}

	aggregator.RecordPlay("duck")
	aggregator.RecordPlay("duck")
	aggregator.RecordPlay("goose")
	aggregator.RecordGuildJoin()

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged := readDurableStats(t, dir)
	want := memebot.StatsSnapshot{Guilds: 3, Counts: map[string]int{"duck": 7, "goose": 1}}
	if merged.Guilds != want.Guilds || !reflect.DeepEqual(merged.Counts, want.Counts) {
		t.Fatalf("durable = %+v, want %+v", merged, want)
	}

	pending := aggregator.PendingSnapshot()
	if pending.Guilds != 0 || len(pending.Counts) != 0 {
		t.Fatalf("pending not cleared after merge: %+v", pending)
	}

	if _, err := os.Stat(filepath.Join(dir, "stats-backup.json")); err != nil {
		t.Fatalf("backup copy missing: %v", err)
	}
}

func TestMergeMissingDurableTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)
	aggregator.RecordPlay("duck")

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	merged := readDurableStats(t, dir)
	if merged.Counts["duck"] != 1 {
		t.Fatalf("durable counts = %v, want duck:1", merged.Counts)
	}
}

func TestMergeContentionKeepsPendingQueued(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)
	aggregator.RecordPlay("duck")
	aggregator.RecordGuildJoin()
	before := aggregator.PendingSnapshot()

	holder := lockfile.New(filepath.Join(dir, "stats.json.lock"))
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	err := aggregator.Merge(context.Background())
	if !errors.Is(err, memebot.ErrContention) {
		t.Fatalf("merge = %v, want ErrContention", err)
	}

	after := aggregator.PendingSnapshot()
	if after.Guilds != before.Guilds || !reflect.DeepEqual(after.Counts, before.Counts) {
		t.Fatalf("pending mutated by deferred merge: before %+v, after %+v", before, after)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "stats.json")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("durable stats written despite contention: %v", statErr)
	}
}

func TestMergeNoDoubleCountAfterContention(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)
	aggregator.RecordPlay("duck")

	holder := lockfile.New(filepath.Join(dir, "stats.json.lock"))
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	if err := aggregator.Merge(context.Background()); !errors.Is(err, memebot.ErrContention) {
		t.Fatalf("merge under contention = %v, want ErrContention", err)
	}
	if err := holder.Release(); err != nil {
		t.Fatalf("holder release: %v", err)
	}

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("merge after release: %v", err)
	}
	merged := readDurableStats(t, dir)
	if merged.Counts["duck"] != 1 {
		t.Fatalf("durable counts = %v, want duck:1 exactly once", merged.Counts)
	}
}

func TestMergeNothingPendingSkipsLock(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)

	// A held lock proves the no-op path never attempts acquisition.
	holder := lockfile.New(filepath.Join(dir, "stats.json.lock"))
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("merge with nothing pending: %v", err)
	}
}

func TestInitAndRemoveCounter(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)

	aggregator.InitCounter("duck")
	if got := aggregator.PendingCount("duck"); got != 0 {
		t.Fatalf("pending count = %d, want 0", got)
	}

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("merge: %v", err)
	}
	merged := readDurableStats(t, dir)
	if count, exists := merged.Counts["duck"]; !exists || count != 0 {
		t.Fatalf("durable counts = %v, want duck:0 present", merged.Counts)
	}

	aggregator.RecordPlay("duck")
	aggregator.RemoveCounter("duck")
	pending := aggregator.PendingSnapshot()
	if _, exists := pending.Counts["duck"]; exists {
		t.Fatalf("pending counts = %v, want duck removed", pending.Counts)
	}
}

func TestFlushFailureAppendsCrashLog(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)
	aggregator.RecordPlay("duck")

	holder := lockfile.New(filepath.Join(dir, "stats.json.lock"))
	if err := holder.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	if err := aggregator.Flush(context.Background()); err == nil {
		t.Fatal("expected flush failure while lock held")
	}

	data, err := os.ReadFile(filepath.Join(dir, "logs", "stats-crash.log"))
	if err != nil {
		t.Fatalf("read crash log: %v", err)
	}
	var logged memebot.StatsSnapshot
	if err := json.Unmarshal(data, &logged); err != nil {
		t.Fatalf("parse crash log line: %v", err)
	}
	if logged.Counts["duck"] != 1 {
		t.Fatalf("crash log counts = %v, want duck:1", logged.Counts)
	}

	pending := aggregator.PendingSnapshot()
	if pending.Counts["duck"] != 1 {
		t.Fatalf("pending lost after failed flush: %+v", pending)
	}
}

func TestConcurrentRecordDuringMergeSurvives(t *testing.T) {
	t.Parallel()

	aggregator, dir := newTestAggregator(t)
	aggregator.RecordPlay("duck")

	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	aggregator.RecordPlay("duck")
	if err := aggregator.Merge(context.Background()); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	merged := readDurableStats(t, dir)
	if merged.Counts["duck"] != 2 {
		t.Fatalf("durable counts = %v, want duck:2", merged.Counts)
	}
}
