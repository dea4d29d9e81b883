// Package citizens maintains the council roster: who may vote and the
// ballots each member currently holds.
package citizens

import (
	"fmt"
	"log/slog"

	"memebot/internal/store"
	"memebot/pkg/memebot"
)

// Ledger holds the council roster in memory and persists every mutation
// through the backing store. It performs no internal locking: the kernel
// dispatches events sequentially, so mutations never race.
type Ledger struct {
	citizens []*memebot.Citizen
	store    *store.Store
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty ledger backed by s. Call Load before use.
func New(s *store.Store, options ...Option) *Ledger {
	ledger := &Ledger{
		store:  s,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(ledger)
	}

	return ledger
}

// Load reads the roster from the backing store.
func (l *Ledger) Load() error {
	citizens, err := l.store.LoadCitizens()
	if err != nil {
		return fmt.Errorf("citizen ledger load: %w", err)
	}
	l.citizens = citizens
	l.logger.Info("loaded citizen ledger", "citizens", len(citizens))

	return nil
}

// Len returns the number of enrolled citizens.
func (l *Ledger) Len() int {
	return len(l.citizens)
}

// All returns the roster in a fresh slice. The citizens themselves are
// shared, not copied.
func (l *Ledger) All() []*memebot.Citizen {
	return append([]*memebot.Citizen(nil), l.citizens...)
}

// ByID returns the citizen with the platform identity id.
func (l *Ledger) ByID(id string) (*memebot.Citizen, bool) {
	for _, citizen := range l.citizens {
		if citizen.ID == id {
			return citizen, true
		}
	}

	return nil, false
}

// Naturalize enrolls the identity as a citizen. Enrolling an existing
// citizen is a no-op reported through the returned flag, so the caller can
// phrase the reply accordingly.
func (l *Ledger) Naturalize(id, name string) (added bool, err error) {
	if id == "" {
		return false, fmt.Errorf("%w: citizen id is empty", memebot.ErrValidation)
	}
	if _, exists := l.ByID(id); exists {
		return false, nil
	}

	l.citizens = append(l.citizens, &memebot.Citizen{
		Name:  name,
		ID:    id,
		Votes: make(map[string]memebot.VoteValue),
	})
	if err := l.save(); err != nil {
		return false, err
	}
	l.logger.Info("naturalized citizen", "id", id, "name", name)

	return true, nil
}

// SetVote records the citizen's ballot for the named meme, overwriting any
// ballot they already hold for it.
func (l *Ledger) SetVote(citizenID, memeName string, value memebot.VoteValue) error {
	citizen, exists := l.ByID(citizenID)
	if !exists {
		return fmt.Errorf("%w: citizen %q", memebot.ErrNotFound, citizenID)
	}
	if !value.Valid() {
		return fmt.Errorf("%w: vote value %q", memebot.ErrValidation, value)
	}
	if citizen.Votes == nil {
		citizen.Votes = make(map[string]memebot.VoteValue)
	}
	citizen.Votes[memeName] = value

	return l.save()
}

// Vote returns the ballot citizenID holds for memeName, if any.
func (l *Ledger) Vote(citizenID, memeName string) (memebot.VoteValue, bool) {
	citizen, exists := l.ByID(citizenID)
	if !exists || citizen.Votes == nil {
		return "", false
	}
	value, held := citizen.Votes[memeName]

	return value, held
}

// ClearVotes strikes every ballot for memeName from the roster. It is called
// after a vote resolves or when the meme is deleted outright.
func (l *Ledger) ClearVotes(memeName string) error {
	cleared := 0
	for _, citizen := range l.citizens {
		if _, held := citizen.Votes[memeName]; held {
			delete(citizen.Votes, memeName)
			cleared++
		}
	}
	if cleared == 0 {
		return nil
	}

	return l.save()
}

func (l *Ledger) save() error {
	if err := l.store.SaveCitizens(l.citizens); err != nil {
		l.logger.Error("persist citizen ledger", "error", err)
		return err
	}

	return nil
}
