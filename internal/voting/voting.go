// Package voting implements the council's archive/restore process: ballot
// translation, quorum tallies, and resolution of archived-state flips.
package voting

import (
	"fmt"
	"log/slog"
	"strings"

	"memebot/internal/citizens"
	"memebot/internal/registry"
	"memebot/pkg/memebot"
)

// Outcome classifies the state of a resolution after a tally.
type Outcome string

const (
	// OutcomePending means the resolution needs more yeas to pass.
	OutcomePending Outcome = "pending"
	// OutcomePassed means the resolution passed and the archived flag flipped.
	OutcomePassed Outcome = "passed"
	// OutcomeStruckDown means the nays blocked the resolution.
	OutcomeStruckDown Outcome = "struckdown"
	// OutcomeGridlock means every ballot is in with no majority either way.
	OutcomeGridlock Outcome = "gridlock"
)

// Terminal reports whether the outcome ends the resolution. Terminal
// outcomes clear every ballot for the meme.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// Translate maps a ballot token to the stored vote value. Directional
// tokens are relative to the meme's current archived state: "for" an
// archived meme means reviving it, so it records keep; "for" an active meme
// records remove. "against" mirrors. Direct keep/remove/abstain tokens
// bypass translation.
func Translate(token string, archived bool) (memebot.VoteValue, error) {
	switch strings.ToLower(token) {
	case "for", "yea":
		if archived {
			return memebot.VoteKeep, nil
		}
		return memebot.VoteRemove, nil
	case "against", "nay":
		if archived {
			return memebot.VoteRemove, nil
		}
		return memebot.VoteKeep, nil
	case "keep":
		return memebot.VoteKeep, nil
	case "remove":
		return memebot.VoteRemove, nil
	case "abstain":
		return memebot.VoteAbstain, nil
	default:
		return "", fmt.Errorf("%w: unknown ballot %q", memebot.ErrValidation, token)
	}
}

// Resolution reports the full state of a meme's resolution after a tally.
type Resolution struct {
	MemeName    string
	WasArchived bool
	Yeas        int
	Nays        int
	Abstains    int
	NoVotes     int
	Outcome     Outcome
	// YeasNeeded is how many more yeas would pass the resolution. Set only
	// while the outcome is pending.
	YeasNeeded int
}

// Engine casts ballots and resolves archive transitions. Like the registry
// and ledger it mutates, it relies on sequential command dispatch instead of
// internal locking.
type Engine struct {
	registry *registry.Registry
	ledger   *citizens.Ledger
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a voting engine over the registry and citizen ledger.
func New(reg *registry.Registry, ledger *citizens.Ledger, options ...Option) *Engine {
	engine := &Engine{
		registry: reg,
		ledger:   ledger,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(engine)
	}

	return engine
}

// Cast records voterID's ballot for the meme resolved from memeToken, then
// tallies and resolves. An empty ballotToken casts nothing and only reports
// the current tally, which any identity may request. A substantive ballot
// requires citizenship: unknown identities are rejected so the caller can
// prompt for naturalization.
//
// The tally is evaluated against the meme's archived state at entry. On a
// passed resolution the archived flag flips and is persisted; every terminal
// outcome clears all ballots for the meme.
func (e *Engine) Cast(voterID, memeToken, ballotToken string) (Resolution, error) {
	index, exists := e.registry.Resolve(memeToken)
	if !exists {
		return Resolution{}, fmt.Errorf("%w: meme %q", memebot.ErrNotFound, memeToken)
	}
	meme := e.registry.Meme(index)
	archived := meme.Archived

	if ballotToken != "" {
		if _, enrolled := e.ledger.ByID(voterID); !enrolled {
			return Resolution{}, fmt.Errorf("%w: %q is not a citizen", memebot.ErrForbidden, voterID)
		}
		value, err := Translate(ballotToken, archived)
		if err != nil {
			return Resolution{}, err
		}
		if err := e.ledger.SetVote(voterID, meme.Name, value); err != nil {
			return Resolution{}, fmt.Errorf("record ballot: %w", err)
		}
	}

	resolution := e.tally(meme.Name, archived)
	switch resolution.Outcome {
	case OutcomePassed:
		if err := e.registry.SetArchived(index, !archived); err != nil {
			return resolution, fmt.Errorf("flip archived state: %w", err)
		}
		e.logger.Info("resolution passed", "meme", meme.Name, "archived", !archived)
	case OutcomeStruckDown:
		e.logger.Info("resolution struck down", "meme", meme.Name)
	case OutcomeGridlock:
		e.logger.Info("resolution gridlocked", "meme", meme.Name)
	}
	if resolution.Outcome.Terminal() {
		if err := e.ledger.ClearVotes(meme.Name); err != nil {
			return resolution, fmt.Errorf("clear ballots: %w", err)
		}
	}

	return resolution, nil
}

// tally classifies every citizen's ballot for the meme against the archived
// state the resolution was opened under, then applies the resolution rules
// in strict order: the nays check with >= comes first, then the yeas check
// with strict >, then gridlock once every non-abstaining ballot is in.
func (e *Engine) tally(memeName string, archived bool) Resolution {
	resolution := Resolution{MemeName: memeName, WasArchived: archived}

	total := e.ledger.Len()
	for _, citizen := range e.ledger.All() {
		value, held := citizen.Votes[memeName]
		switch {
		case !held:
			resolution.NoVotes++
		case value == memebot.VoteAbstain:
			resolution.Abstains++
		case (value == memebot.VoteKeep) == archived:
			resolution.Yeas++
		default:
			resolution.Nays++
		}
	}

	switch {
	case float64(resolution.Nays) >= float64(total)/2:
		resolution.Outcome = OutcomeStruckDown
	case float64(resolution.Yeas) > float64(total)/2:
		resolution.Outcome = OutcomePassed
	case resolution.Yeas+resolution.Nays >= total:
		resolution.Outcome = OutcomeGridlock
	default:
		resolution.Outcome = OutcomePending
		resolution.YeasNeeded = total/2 + 1 - resolution.Yeas
	}

	return resolution
}
