// Package registry owns the meme collection: registration, alias management,
// authorization, sort orders, and command resolution.
//
// The registry is not internally locked. Command dispatch is sequential, so
// one logical operation always completes before the next begins; persistence
// is requested only after the in-memory mutation is fully applied.
package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"memebot/internal/store"
	"memebot/pkg/memebot"
)

// DefaultReservedWords lists command tokens that may never be registered as
// meme commands. It covers every built-in command plus legacy tokens the bot
// silently ignores.
var DefaultReservedWords = []string{
	"add", "airhorn", "alias", "delete", "help", "info",
	"list", "mb", "naturalize", "random", "volume", "vote",
}

var sanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizeToken strips every non-alphanumeric rune from a command token.
func SanitizeToken(token string) string {
	return sanitizePattern.ReplaceAllString(token, "")
}

// HasAccess reports whether requesterID may delete the meme directly: only
// the author or the single static admin identity qualifies.
func HasAccess(meme *memebot.Meme, requesterID, adminID string) bool {
	if meme == nil || requesterID == "" {
		return false
	}
	if adminID != "" && requesterID == adminID {
		return true
	}

	return meme.AuthorID != "" && meme.AuthorID == requesterID
}

// ConflictError reports registration tokens rejected as reserved words or as
// collisions with commands already claimed anywhere in the registry. The
// whole registration is aborted when it is returned.
type ConflictError struct {
	// Reserved lists offending tokens matching the reserved-word list.
	Reserved []string
	// Taken lists offending tokens already claimed by an existing meme.
	Taken []string
}

// Error renders the per-token rejection summary.
func (e *ConflictError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Reserved) > 0 {
		parts = append(parts, fmt.Sprintf("reserved words: %s", strings.Join(e.Reserved, ", ")))
	}
	if len(e.Taken) > 0 {
		parts = append(parts, fmt.Sprintf("already taken: %s", strings.Join(e.Taken, ", ")))
	}

	return "command conflict: " + strings.Join(parts, "; ")
}

// Unwrap classifies the error under the conflict taxonomy.
func (e *ConflictError) Unwrap() error {
	return memebot.ErrConflict
}

// Registry is the in-memory meme collection with persist-on-mutation lifecycle.
type Registry struct {
	memes    []*memebot.Meme
	store    *store.Store
	reserved map[string]struct{}
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithReservedWords replaces the default reserved-word list.
func WithReservedWords(words []string) Option {
	return func(r *Registry) {
		r.reserved = make(map[string]struct{}, len(words))
		for _, word := range words {
			r.reserved[strings.ToLower(word)] = struct{}{}
		}
	}
}

// New creates an empty registry persisting through s.
func New(s *store.Store, options ...Option) *Registry {
	reg := &Registry{
		store:  s,
		logger: slog.Default(),
		clock:  time.Now,
	}
	WithReservedWords(DefaultReservedWords)(reg)
	for _, option := range options {
		option(reg)
	}

	return reg
}

// IsReserved reports whether token matches the reserved-word list.
func (r *Registry) IsReserved(token string) bool {
	_, reserved := r.reserved[strings.ToLower(token)]

	return reserved
}

// Load replaces the in-memory collection with the persisted one.
func (r *Registry) Load() error {
	memes, err := r.store.LoadMemes()
	if err != nil {
		return fmt.Errorf("registry load: %w", err)
	}
	r.memes = memes
	r.logger.Info("loaded meme registry", "memes", len(memes))

	return nil
}

// Len returns the number of registered memes.
func (r *Registry) Len() int {
	return len(r.memes)
}

// Meme returns the meme at index, or nil when index is out of range.
func (r *Registry) Meme(index int) *memebot.Meme {
	if index < 0 || index >= len(r.memes) {
		return nil
	}

	return r.memes[index]
}

// All returns the memes in registry iteration order. The slice is a copy;
// the records are shared.
func (r *Registry) All() []*memebot.Meme {
	return append([]*memebot.Meme(nil), r.memes...)
}

// Register creates a meme from raw command tokens.
//
// Tokens are sanitized to alphanumeric. The whole operation is rejected when
// no usable token remains, when any token is a reserved word, or when any
// token collides with a command already claimed by any meme; conflicts are
// reported per offending token. No partial insert ever occurs.
func (r *Registry) Register(tokens []string, author, authorID, file string) (*memebot.Meme, error) {
	commands := make([]string, 0, len(tokens))
	for _, token := range tokens {
		sanitized := SanitizeToken(token)
		if sanitized == "" {
			return nil, fmt.Errorf("%w: command %q is empty after sanitization", memebot.ErrValidation, token)
		}
		commands = append(commands, sanitized)
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("%w: at least one command is required", memebot.ErrValidation)
	}

	conflict := &ConflictError{}
	seen := make(map[string]struct{}, len(commands))
	for _, command := range commands {
		lowered := strings.ToLower(command)
		if r.IsReserved(command) {
			conflict.Reserved = append(conflict.Reserved, command)
			continue
		}
		if _, exists := r.Resolve(command); exists {
			conflict.Taken = append(conflict.Taken, command)
			continue
		}
		if _, duplicate := seen[lowered]; duplicate {
			conflict.Taken = append(conflict.Taken, command)
			continue
		}
		seen[lowered] = struct{}{}
	}
	if len(conflict.Reserved) > 0 || len(conflict.Taken) > 0 {
		return nil, conflict
	}

	now := r.clock().UTC()
	meme := &memebot.Meme{
		Name:          commands[0],
		Author:        author,
		AuthorID:      authorID,
		Commands:      commands,
		File:          file,
		DateAdded:     now,
		LastPlayed:    now,
		LastModified:  now,
		AudioModifier: 1,
		PlayCount:     0,
		Archived:      false,
	}
	r.memes = append(r.memes, meme)
	if err := r.Save(); err != nil {
		return meme, err
	}
	r.logger.Info("registered meme", "name", meme.Name, "commands", len(commands))

	return meme, nil
}

// Delete removes the meme at index from the registry and persists. Ledger,
// stats, and asset cascades are owned by the caller.
func (r *Registry) Delete(index int) (*memebot.Meme, error) {
	meme := r.Meme(index)
	if meme == nil {
		return nil, fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}

	r.memes = append(r.memes[:index], r.memes[index+1:]...)
	if err := r.Save(); err != nil {
		return meme, err
	}
	r.logger.Info("deleted meme", "name", meme.Name)

	return meme, nil
}

// AddAliases adds new command tokens to the meme at index, skipping reserved
// words and tokens already claimed anywhere in the registry. It returns the
// tokens actually added and persists when that count is positive.
func (r *Registry) AddAliases(index int, tokens []string) ([]string, error) {
	meme := r.Meme(index)
	if meme == nil {
		return nil, fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}

	added := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if r.IsReserved(token) {
			continue
		}
		if _, exists := r.Resolve(token); exists {
			continue
		}
		if containsFold(added, token) {
			continue
		}
		meme.Commands = append(meme.Commands, token)
		added = append(added, token)
	}
	if len(added) == 0 {
		return added, nil
	}

	meme.LastModified = r.clock().UTC()
	if err := r.Save(); err != nil {
		return added, err
	}

	return added, nil
}

// RemoveAliases removes command tokens from the meme at index. The primary
// name is immutable and tokens not present are skipped. It returns the tokens
// actually removed and persists when that count is positive.
func (r *Registry) RemoveAliases(index int, tokens []string) ([]string, error) {
	meme := r.Meme(index)
	if meme == nil {
		return nil, fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}

	removed := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.EqualFold(token, meme.Name) {
			continue
		}
		position := -1
		for i, command := range meme.Commands {
			if strings.EqualFold(command, token) {
				position = i
				break
			}
		}
		if position < 0 {
			continue
		}
		meme.Commands = append(meme.Commands[:position], meme.Commands[position+1:]...)
		removed = append(removed, token)
	}
	if len(removed) == 0 {
		return removed, nil
	}

	meme.LastModified = r.clock().UTC()
	if err := r.Save(); err != nil {
		return removed, err
	}

	return removed, nil
}

// SetVolume sets the audio modifier of the meme at index and persists.
func (r *Registry) SetVolume(index int, modifier float64) error {
	meme := r.Meme(index)
	if meme == nil {
		return fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}
	if modifier < 0 {
		return fmt.Errorf("%w: audio modifier must be non-negative", memebot.ErrValidation)
	}

	meme.AudioModifier = modifier
	meme.LastModified = r.clock().UTC()

	return r.Save()
}

// SetArchived flips the archived flag of the meme at index and persists.
func (r *Registry) SetArchived(index int, archived bool) error {
	meme := r.Meme(index)
	if meme == nil {
		return fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}

	meme.Archived = archived
	meme.LastModified = r.clock().UTC()

	return r.Save()
}

// RecordPlay increments the play count of the meme at index, stamps the
// playback time, and persists. The pending stats counter is owned by the
// caller.
func (r *Registry) RecordPlay(index int) error {
	meme := r.Meme(index)
	if meme == nil {
		return fmt.Errorf("%w: meme index %d", memebot.ErrNotFound, index)
	}

	meme.PlayCount++
	meme.LastPlayed = r.clock().UTC()

	return r.Save()
}

// Save persists the current collection.
func (r *Registry) Save() error {
	if err := r.store.SaveMemes(r.memes); err != nil {
		// In-memory state stays the source of truth; the write is retried on
		// the next mutation.
		r.logger.Error("persist meme registry", "error", err)
		return err
	}

	return nil
}

func containsFold(tokens []string, target string) bool {
	for _, token := range tokens {
		if strings.EqualFold(token, target) {
			return true
		}
	}

	return false
}
