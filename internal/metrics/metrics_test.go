package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCommand(t *testing.T) {
	collector := NewCollector()

	collector.RecordCommand("add", "ok")
	collector.RecordCommand("add", "ok")
	collector.RecordCommand("add", "error")
	collector.RecordCommand("vote", "ok")

	if got := testutil.CollectAndCount(collector.commandsTotal); got != 3 {
		t.Errorf("expected 3 command series, got %d", got)
	}
	if got := testutil.ToFloat64(collector.commandsTotal.WithLabelValues("add", "ok")); got != 2 {
		t.Errorf("expected 2 add/ok commands, got %f", got)
	}
}

func TestRecordPlayAndLockTimeout(t *testing.T) {
	collector := NewCollector()

	collector.RecordPlay()
	collector.RecordPlay()
	collector.RecordLockTimeout()

	if got := testutil.ToFloat64(collector.playsTotal); got != 2 {
		t.Errorf("expected 2 plays, got %f", got)
	}
	if got := testutil.ToFloat64(collector.lockTimeoutsTotal); got != 1 {
		t.Errorf("expected 1 lock timeout, got %f", got)
	}
}

func TestRecordBallotAndMerge(t *testing.T) {
	collector := NewCollector()

	collector.RecordBallot("pending")
	collector.RecordBallot("passed")
	collector.RecordMerge("ok")
	collector.RecordMerge("deferred")

	if got := testutil.ToFloat64(collector.ballotsTotal.WithLabelValues("passed")); got != 1 {
		t.Errorf("expected 1 passed ballot, got %f", got)
	}
	if got := testutil.ToFloat64(collector.mergesTotal.WithLabelValues("deferred")); got != 1 {
		t.Errorf("expected 1 deferred merge, got %f", got)
	}
}

func TestSetMemeCount(t *testing.T) {
	collector := NewCollector()

	collector.SetMemeCount(7)
	collector.SetMemeCount(4)

	if got := testutil.ToFloat64(collector.memeCount); got != 4 {
		t.Errorf("expected gauge 4, got %f", got)
	}
}
