package registry

import (
	"errors"
	"testing"
	"time"

	"memebot/internal/store"
	"memebot/pkg/memebot"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	testStore := store.New(t.TempDir(), nil)
	reg := New(testStore, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	if err := reg.Load(); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	return reg
}

func mustRegister(t *testing.T, reg *Registry, tokens ...string) *memebot.Meme {
	t.Helper()

	meme, err := reg.Register(tokens, "author", "author-1", tokens[0]+".mp3")
	if err != nil {
		t.Fatalf("register %v: %v", tokens, err)
	}

	return meme
}

func TestRegisterCreatesMemeWithDefaults(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	meme := mustRegister(t, reg, "duck", "quack")

	if meme.Name != "duck" {
		t.Fatalf("name = %q, want duck", meme.Name)
	}
	if meme.AudioModifier != 1 {
		t.Fatalf("audio modifier = %v, want 1", meme.AudioModifier)
	}
	if meme.PlayCount != 0 || meme.Archived {
		t.Fatalf("fresh meme has play count %d, archived %v", meme.PlayCount, meme.Archived)
	}
	if meme.DateAdded.IsZero() || !meme.DateAdded.Equal(meme.LastModified) {
		t.Fatalf("timestamps not stamped: added %v, modified %v", meme.DateAdded, meme.LastModified)
	}
}

func TestRegisterSanitizesTokens(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	meme := mustRegister(t, reg, "du-ck!", "qu.ack")

	if meme.Name != "duck" {
		t.Fatalf("name = %q, want duck", meme.Name)
	}
	if _, exists := reg.Resolve("quack"); !exists {
		t.Fatal("sanitized alias quack not resolvable")
	}
}

func TestRegisterRejectsReservedWordWithoutPartialInsert(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Register([]string{"duck", "Vote"}, "author", "author-1", "duck.mp3")

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if !errors.Is(err, memebot.ErrConflict) {
		t.Fatalf("error %v does not wrap ErrConflict", err)
	}
	if len(conflict.Reserved) != 1 || conflict.Reserved[0] != "Vote" {
		t.Fatalf("reserved = %v, want [Vote]", conflict.Reserved)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry size = %d after rejected registration, want 0", reg.Len())
	}
}

func TestRegisterRejectsTakenCommandAnywhere(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck", "quack")

	_, err := reg.Register([]string{"goose", "QUACK"}, "author", "author-2", "goose.mp3")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if len(conflict.Taken) != 1 || conflict.Taken[0] != "QUACK" {
		t.Fatalf("taken = %v, want [QUACK]", conflict.Taken)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry size = %d, want 1", reg.Len())
	}
}

func TestRegisterReportsEveryOffendingToken(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck")

	_, err := reg.Register([]string{"goose", "duck", "list", "add"}, "author", "author-2", "goose.mp3")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if len(conflict.Reserved) != 2 {
		t.Fatalf("reserved = %v, want two entries", conflict.Reserved)
	}
	if len(conflict.Taken) != 1 {
		t.Fatalf("taken = %v, want one entry", conflict.Taken)
	}
}

func TestRegisterRejectsEmptyAfterSanitize(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Register([]string{"!!!"}, "author", "author-1", "x.mp3")
	if !errors.Is(err, memebot.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry size = %d, want 0", reg.Len())
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck", "quack")

	lower, lowerOK := reg.Resolve("quack")
	upper, upperOK := reg.Resolve("QUACK")
	if !lowerOK || !upperOK {
		t.Fatal("expected both casings to resolve")
	}
	if lower != upper {
		t.Fatalf("resolve indices differ by case: %d vs %d", lower, upper)
	}
}

func TestDeleteRemovesFromCommandIndex(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck", "quack")

	index, _ := reg.Resolve("duck")
	deleted, err := reg.Delete(index)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Name != "duck" {
		t.Fatalf("deleted name = %q, want duck", deleted.Name)
	}
	if _, exists := reg.Resolve("quack"); exists {
		t.Fatal("former alias quack still resolves after delete")
	}
	if _, exists := reg.Resolve("duck"); exists {
		t.Fatal("former name duck still resolves after delete")
	}
}

func TestAddAliasesSkipsClaimedTokens(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck", "quack")
	mustRegister(t, reg, "goose")

	index, _ := reg.Resolve("duck")
	added, err := reg.AddAliases(index, []string{"honk", "QUACK", "goose", "honk"})
	if err != nil {
		t.Fatalf("add aliases: %v", err)
	}
	if len(added) != 1 || added[0] != "honk" {
		t.Fatalf("added = %v, want [honk]", added)
	}
	if _, exists := reg.Resolve("honk"); !exists {
		t.Fatal("honk not resolvable after add")
	}
}

func TestAddAliasesSkipsReservedWords(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck")

	index, _ := reg.Resolve("duck")
	added, err := reg.AddAliases(index, []string{"vote", "Airhorn", "honk"})
	if err != nil {
		t.Fatalf("add aliases: %v", err)
	}
	if len(added) != 1 || added[0] != "honk" {
		t.Fatalf("added = %v, want [honk]", added)
	}
	if _, exists := reg.Resolve("vote"); exists {
		t.Fatal("reserved word resolvable after alias add")
	}
	if _, exists := reg.Resolve("Airhorn"); exists {
		t.Fatal("reserved word resolvable after alias add")
	}
}

func TestRemoveAliasesNeverRemovesPrimaryName(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck", "quack", "honk")

	index, _ := reg.Resolve("duck")
	removed, err := reg.RemoveAliases(index, []string{"DUCK", "quack", "absent"})
	if err != nil {
		t.Fatalf("remove aliases: %v", err)
	}
	if len(removed) != 1 || removed[0] != "quack" {
		t.Fatalf("removed = %v, want [quack]", removed)
	}

	meme := reg.Meme(index)
	if !meme.HasCommand("duck") {
		t.Fatal("primary name removed from command set")
	}
	if meme.HasCommand("quack") {
		t.Fatal("quack still present after removal")
	}
}

func TestAliasChurnPreservesPrimaryName(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck")
	index, _ := reg.Resolve("duck")

	for round := 0; round < 5; round++ {
		if _, err := reg.AddAliases(index, []string{"quack", "honk"}); err != nil {
			t.Fatalf("round %d add: %v", round, err)
		}
		if _, err := reg.RemoveAliases(index, []string{"duck", "quack", "honk"}); err != nil {
			t.Fatalf("round %d remove: %v", round, err)
		}
	}

	meme := reg.Meme(index)
	if !meme.HasCommand("duck") {
		t.Fatal("primary name lost after alias churn")
	}
	if len(meme.Commands) != 1 {
		t.Fatalf("commands = %v, want only the primary name", meme.Commands)
	}
}

func TestSetVolumeRejectsNegative(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck")
	index, _ := reg.Resolve("duck")

	if err := reg.SetVolume(index, -0.5); !errors.Is(err, memebot.ErrValidation) {
		t.Fatalf("set volume = %v, want ErrValidation", err)
	}
	if err := reg.SetVolume(index, 2.0); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if got := reg.Meme(index).AudioModifier; got != 2.0 {
		t.Fatalf("audio modifier = %v, want 2.0", got)
	}
}

func TestRecordPlayStampsAndCounts(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "duck")
	index, _ := reg.Resolve("duck")

	if err := reg.RecordPlay(index); err != nil {
		t.Fatalf("record play: %v", err)
	}
	if err := reg.RecordPlay(index); err != nil {
		t.Fatalf("record play: %v", err)
	}
	if got := reg.Meme(index).PlayCount; got != 2 {
		t.Fatalf("play count = %d, want 2", got)
	}
}

func TestHasAccess(t *testing.T) {
	tests := []struct {
		name        string
		meme        *memebot.Meme
		requesterID string
		adminID     string
		want        bool
	}{
		{
			name:        "author may delete",
			meme:        &memebot.Meme{AuthorID: "user-1"},
			requesterID: "user-1",
			want:        true,
		},
		{
			name:        "admin may delete",
			meme:        &memebot.Meme{AuthorID: "user-1"},
			requesterID: "admin-1",
			adminID:     "admin-1",
			want:        true,
		},
		{
			name:        "other identity may not delete",
			meme:        &memebot.Meme{AuthorID: "user-1"},
			requesterID: "user-2",
			adminID:     "admin-1",
			want:        false,
		},
		{
			name:        "missing author id never matches empty requester",
			meme:        &memebot.Meme{},
			requesterID: "",
			want:        false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := HasAccess(testCase.meme, testCase.requesterID, testCase.adminID)
			if got != testCase.want {
				t.Fatalf("has access = %v, want %v", got, testCase.want)
			}
		})
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	t.Parallel()

	testStore := store.New(t.TempDir(), nil)
	reg := New(testStore)
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	mustRegister(t, reg, "duck", "quack")

	reloaded := New(testStore)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, exists := reloaded.Resolve("quack"); !exists {
		t.Fatal("quack not resolvable after reload")
	}
}
