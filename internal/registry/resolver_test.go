package registry

import (
	"testing"

	"memebot/internal/store"
)

func TestSuggestFindsNearestCommand(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "airhorn")
	mustRegister(t, reg, "sadtrombone", "womp")
	mustRegister(t, reg, "dialup")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single typo", input: "airhron", want: "airhorn"},
		{name: "missing letter", input: "sadtrombne", want: "sadtrombone"},
		{name: "alias beats distant primary", input: "womp3", want: "womp"},
		{name: "exact text still suggested", input: "dialup", want: "dialup"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, ok := reg.Suggest(testCase.input)
			if !ok {
				t.Fatalf("no suggestion for %q", testCase.input)
			}
			if got != testCase.want {
				t.Fatalf("suggest(%q) = %q, want %q", testCase.input, got, testCase.want)
			}
		})
	}
}

func TestSuggestEmptyRegistry(t *testing.T) {
	t.Parallel()

	testStore := store.New(t.TempDir(), nil)
	reg := New(testStore)
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, ok := reg.Suggest("anything"); ok {
		t.Fatal("suggestion produced from an empty registry")
	}
}

func TestSuggestTieBreaksByFirstOccurrence(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	mustRegister(t, reg, "abcd")
	mustRegister(t, reg, "abdc")

	// Both candidates share exactly one bigram with the input, so the
	// earlier command wins.
	got, ok := reg.Suggest("abxx")
	if !ok {
		t.Fatal("expected a suggestion")
	}
	if got != "abcd" {
		t.Fatalf("suggest = %q, want abcd", got)
	}
}

func TestBigramSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "night", b: "night", want: 1},
		{name: "case folded identical", a: "Night", b: "night", want: 1},
		{name: "classic pair", a: "night", b: "nacht", want: 0.25},
		{name: "disjoint", a: "aaaa", b: "bbbb", want: 0},
		{name: "single rune input", a: "a", b: "abcd", want: 0},
		{name: "empty input", a: "", b: "abcd", want: 0},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := bigramSimilarity(testCase.a, testCase.b)
			if got != testCase.want {
				t.Fatalf("similarity(%q, %q) = %v, want %v", testCase.a, testCase.b, got, testCase.want)
			}
		})
	}
}
