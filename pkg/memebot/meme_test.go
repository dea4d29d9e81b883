package memebot

import (
	"reflect"
	"testing"
)

func TestMemeHasCommand(t *testing.T) {
	t.Parallel()

	meme := &Meme{Name: "duck", Commands: []string{"duck", "quack"}}
	if !meme.HasCommand("quack") {
		t.Fatal("expected quack to match")
	}
	if !meme.HasCommand("QUACK") {
		t.Fatal("expected case-insensitive match")
	}
	if meme.HasCommand("goose") {
		t.Fatal("expected goose not to match")
	}

	var nilMeme *Meme
	if nilMeme.HasCommand("duck") {
		t.Fatal("expected nil meme not to match")
	}
}

func TestMemeCloneIsIndependent(t *testing.T) {
	t.Parallel()

	meme := &Meme{Name: "duck", Commands: []string{"duck", "quack"}}
	cloned := meme.Clone()
	cloned.Commands[1] = "honk"
	if meme.Commands[1] != "quack" {
		t.Fatalf("original commands mutated: %v", meme.Commands)
	}
}

func TestStatsSnapshotMerge(t *testing.T) {
	tests := []struct {
		name       string
		durable    StatsSnapshot
		pending    StatsSnapshot
		wantGuilds int
		wantCounts map[string]int
	}{
		{
			name:       "pending sums into durable",
			durable:    StatsSnapshot{Guilds: 3, Counts: map[string]int{"duck": 5}},
			pending:    StatsSnapshot{Guilds: 1, Counts: map[string]int{"duck": 2, "goose": 1}},
			wantGuilds: 4,
			wantCounts: map[string]int{"duck": 7, "goose": 1},
		},
		{
			name:       "empty durable adopts pending",
			durable:    StatsSnapshot{},
			pending:    StatsSnapshot{Guilds: 2, Counts: map[string]int{"duck": 1}},
			wantGuilds: 2,
			wantCounts: map[string]int{"duck": 1},
		},
		{
			name:       "empty pending leaves durable untouched",
			durable:    StatsSnapshot{Guilds: 7, Counts: map[string]int{"duck": 9}},
			pending:    StatsSnapshot{},
			wantGuilds: 7,
			wantCounts: map[string]int{"duck": 9},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			merged := testCase.durable
			merged.Counts = make(map[string]int, len(testCase.durable.Counts))
			for memeName, count := range testCase.durable.Counts {
				merged.Counts[memeName] = count
			}

			merged.Merge(testCase.pending)
			if merged.Guilds != testCase.wantGuilds {
				t.Fatalf("guilds = %d, want %d", merged.Guilds, testCase.wantGuilds)
			}
			if len(testCase.wantCounts) == 0 && len(merged.Counts) != 0 {
				t.Fatalf("counts = %v, want empty", merged.Counts)
			}
			if len(testCase.wantCounts) != 0 && !reflect.DeepEqual(merged.Counts, testCase.wantCounts) {
				t.Fatalf("counts = %v, want %v", merged.Counts, testCase.wantCounts)
			}
		})
	}
}

func TestStatsSnapshotMergeKeyOrderIndependent(t *testing.T) {
	t.Parallel()

	left := StatsSnapshot{Counts: map[string]int{"a": 5}}
	left.Merge(StatsSnapshot{Counts: map[string]int{"a": 2, "b": 1}})

	right := StatsSnapshot{Counts: map[string]int{"a": 5}}
	right.Merge(StatsSnapshot{Counts: map[string]int{"b": 1}})
	right.Merge(StatsSnapshot{Counts: map[string]int{"a": 2}})

	if !reflect.DeepEqual(left.Counts, right.Counts) {
		t.Fatalf("merge order changed result: %v vs %v", left.Counts, right.Counts)
	}
	if left.Counts["a"] != 7 || left.Counts["b"] != 1 {
		t.Fatalf("counts = %v, want a:7 b:1", left.Counts)
	}
}
