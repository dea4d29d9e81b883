package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"memebot/pkg/memebot"
)

func TestSaveMemesWritesSortedWithBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testStore := New(dir, nil)

	memes := []*memebot.Meme{
		{Name: "Zebra", Commands: []string{"Zebra"}, DateAdded: time.Unix(10, 0).UTC()},
		{Name: "apple", Commands: []string{"apple"}, DateAdded: time.Unix(20, 0).UTC()},
	}
	if err := testStore.SaveMemes(memes); err != nil {
		t.Fatalf("save memes: %v", err)
	}

	for _, fileName := range []string{"memes.json", "memes-backup.json"} {
		data, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			t.Fatalf("read %s: %v", fileName, err)
		}
		var loaded []*memebot.Meme
		if err := json.Unmarshal(data, &loaded); err != nil {
			t.Fatalf("parse %s: %v", fileName, err)
		}
		if len(loaded) != 2 {
			t.Fatalf("%s holds %d memes, want 2", fileName, len(loaded))
		}
		if loaded[0].Name != "apple" || loaded[1].Name != "Zebra" {
			t.Fatalf("%s order = %s, %s; want apple, Zebra", fileName, loaded[0].Name, loaded[1].Name)
		}
	}
}

func TestSaveMemesDoesNotReorderCallerSlice(t *testing.T) {
	t.Parallel()

	testStore := New(t.TempDir(), nil)
	memes := []*memebot.Meme{
		{Name: "zebra", Commands: []string{"zebra"}},
		{Name: "apple", Commands: []string{"apple"}},
	}
	if err := testStore.SaveMemes(memes); err != nil {
		t.Fatalf("save memes: %v", err)
	}
	if memes[0].Name != "zebra" {
		t.Fatalf("caller slice reordered: first = %s", memes[0].Name)
	}
}

func TestLoadMemesMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	testStore := New(t.TempDir(), nil)
	memes, err := testStore.LoadMemes()
	if err != nil {
		t.Fatalf("load memes: %v", err)
	}
	if len(memes) != 0 {
		t.Fatalf("loaded %d memes, want 0", len(memes))
	}
}

func TestLoadMemesCorruptFileFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "memes.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	testStore := New(dir, nil)
	if _, err := testStore.LoadMemes(); err == nil {
		t.Fatal("expected error for corrupt memes.json")
	}
}

func TestMemeRoundTripPreservesFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testStore := New(dir, nil)

	added := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	meme := &memebot.Meme{
		Name:          "duck",
		Author:        "mallard",
		AuthorID:      "user-1",
		Commands:      []string{"duck", "quack"},
		File:          "duck.mp3",
		DateAdded:     added,
		LastPlayed:    added,
		LastModified:  added,
		AudioModifier: 1.5,
		PlayCount:     3,
		Archived:      true,
	}
	if err := testStore.SaveMemes([]*memebot.Meme{meme}); err != nil {
		t.Fatalf("save memes: %v", err)
	}

	loaded, err := testStore.LoadMemes()
	if err != nil {
		t.Fatalf("load memes: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d memes, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Name != meme.Name || got.AuthorID != meme.AuthorID || got.File != meme.File {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if !got.DateAdded.Equal(added) || !got.Archived || got.AudioModifier != 1.5 || got.PlayCount != 3 {
		t.Fatalf("state fields lost: %+v", got)
	}
	if len(got.Commands) != 2 || got.Commands[1] != "quack" {
		t.Fatalf("commands lost: %v", got.Commands)
	}
}

func TestCitizenRoundTripAndVoteMapDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testStore := New(dir, nil)

	citizens := []*memebot.Citizen{
		{Name: "beta", ID: "2", Votes: map[string]memebot.VoteValue{"duck": memebot.VoteKeep}},
		{Name: "Alpha", ID: "1"},
	}
	if err := testStore.SaveCitizens(citizens); err != nil {
		t.Fatalf("save citizens: %v", err)
	}

	loaded, err := testStore.LoadCitizens()
	if err != nil {
		t.Fatalf("load citizens: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d citizens, want 2", len(loaded))
	}
	if loaded[0].Name != "Alpha" {
		t.Fatalf("citizens not sorted: first = %s", loaded[0].Name)
	}
	for _, citizen := range loaded {
		if citizen.Votes == nil {
			t.Fatalf("citizen %s has nil vote map", citizen.Name)
		}
	}
	if loaded[1].Votes["duck"] != memebot.VoteKeep {
		t.Fatalf("vote lost: %v", loaded[1].Votes)
	}
}
