package memebot

import (
	"strings"
	"time"
)

// Meme is a registered audio alias and its governance state.
//
// JSON field names match the on-disk collection format.
type Meme struct {
	// Name is the primary command, unique case-insensitively across the registry.
	Name string `json:"name"`
	// Author is the display name of the creator identity.
	Author string `json:"author"`
	// AuthorID is the stable creator identity key.
	AuthorID string `json:"authorID"`
	// Commands is the full alias set; the first element is always Name.
	Commands []string `json:"commands"`
	// File is an opaque reference to the audio asset owned by the ingester.
	File string `json:"file"`
	// DateAdded is the registration timestamp.
	DateAdded time.Time `json:"dateAdded"`
	// LastPlayed is the most recent playback timestamp.
	LastPlayed time.Time `json:"lastPlayed"`
	// LastModified is the most recent mutation timestamp.
	LastModified time.Time `json:"lastModified"`
	// AudioModifier scales playback volume; non-negative, 1.0 by default.
	AudioModifier float64 `json:"audioModifier"`
	// PlayCount counts process-lifetime playbacks recorded on this record.
	PlayCount int `json:"playCount"`
	// Archived marks the meme as withdrawn from playback by resolution.
	Archived bool `json:"archived"`
}

// HasCommand reports whether token matches any of the meme's commands,
// case-insensitively.
func (m *Meme) HasCommand(token string) bool {
	if m == nil {
		return false
	}
	for _, command := range m.Commands {
		if strings.EqualFold(command, token) {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the meme.
func (m *Meme) Clone() *Meme {
	if m == nil {
		return nil
	}
	cloned := *m
	cloned.Commands = append([]string(nil), m.Commands...)

	return &cloned
}

// VoteValue is one recorded ballot position on a meme.
type VoteValue string

const (
	// VoteKeep records a position that the meme should remain in the registry.
	VoteKeep VoteValue = "keep"
	// VoteRemove records a position that the meme should be archived.
	VoteRemove VoteValue = "remove"
	// VoteAbstain records a deliberate non-position.
	VoteAbstain VoteValue = "abstain"
)

// Valid reports whether the vote value is one of the recognized positions.
func (v VoteValue) Valid() bool {
	switch v {
	case VoteKeep, VoteRemove, VoteAbstain:
		return true
	default:
		return false
	}
}

// Citizen is a naturalized identity with a per-meme vote ledger.
type Citizen struct {
	// Name is the display name recorded at naturalization.
	Name string `json:"name"`
	// ID is the unique, stable identity key.
	ID string `json:"id"`
	// Votes maps meme name to the citizen's current ballot position.
	Votes map[string]VoteValue `json:"votes"`
}

// Clone returns a deep copy of the citizen record.
func (c *Citizen) Clone() *Citizen {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.Votes = make(map[string]VoteValue, len(c.Votes))
	for memeName, value := range c.Votes {
		cloned.Votes[memeName] = value
	}

	return &cloned
}

// StatsSnapshot is the durable play-statistics totals document.
type StatsSnapshot struct {
	// Guilds is the monotonically accumulating guild-join counter.
	Guilds int `json:"guilds"`
	// Counts maps meme name to durable total play count.
	Counts map[string]int `json:"counts"`
}

// Merge sums other into the snapshot. Key order never affects the result.
func (s *StatsSnapshot) Merge(other StatsSnapshot) {
	s.Guilds += other.Guilds
	if len(other.Counts) == 0 {
		return
	}
	if s.Counts == nil {
		s.Counts = make(map[string]int, len(other.Counts))
	}
	for memeName, count := range other.Counts {
		s.Counts[memeName] += count
	}
}
