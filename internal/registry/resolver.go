package registry

import "strings"

// Resolve returns the index of the meme owning the input command,
// case-insensitively. The registry guarantees command uniqueness, so the
// first match is the only match.
func (r *Registry) Resolve(input string) (int, bool) {
	if input == "" {
		return -1, false
	}
	for index, meme := range r.memes {
		if meme.HasCommand(input) {
			return index, true
		}
	}

	return -1, false
}

// Suggest returns the best approximate match for input over the flattened
// list of every registered command, for display in not-found messages. A
// suggestion is never a resolution: playback must not be triggered from it.
//
// Scoring is Sorensen-Dice bigram similarity over lowercased strings; ties
// break toward the first occurrence in registry iteration order.
func (r *Registry) Suggest(input string) (string, bool) {
	var (
		best      string
		bestScore = -1.0
	)
	for _, meme := range r.memes {
		for _, command := range meme.Commands {
			score := bigramSimilarity(input, command)
			if score > bestScore {
				best = command
				bestScore = score
			}
		}
	}
	if bestScore < 0 {
		return "", false
	}

	return best, true
}

// bigramSimilarity computes the Sorensen-Dice coefficient of the two
// strings' character-bigram multisets, lowercased. Identical strings score
// 1; strings shorter than one bigram score 0 unless identical.
func bigramSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(a)-1)
	for i := 0; i < len(a)-1; i++ {
		bigrams[a[i:i+2]]++
	}

	matches := 0
	for i := 0; i < len(b)-1; i++ {
		bigram := b[i : i+2]
		if bigrams[bigram] > 0 {
			bigrams[bigram]--
			matches++
		}
	}

	return 2 * float64(matches) / float64(len(a)+len(b)-2)
}
