// Package audio owns the meme audio assets: on-disk storage, production
// from video sources, and voice-channel playback.
package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"memebot/pkg/memebot"
)

const assetExtension = ".mp3"

// Store manages the audio asset directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created when missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create audio directory: %w", memebot.ErrPersistence, err)
	}

	return &Store{dir: dir}, nil
}

// Path returns the absolute path of a stored asset.
func (s *Store) Path(fileName string) string {
	return filepath.Join(s.dir, fileName)
}

// NewFileName returns a collision-free asset file name for base: base.mp3,
// then base1.mp3, base2.mp3 and so on.
func (s *Store) NewFileName(base string) string {
	for number := 0; ; number++ {
		name := base
		if number > 0 {
			name = fmt.Sprintf("%s%d", base, number)
		}
		name += assetExtension
		if _, err := os.Stat(s.Path(name)); errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
}

// Remove deletes the named asset. Missing assets are not an error.
func (s *Store) Remove(fileName string) error {
	if fileName == "" {
		return nil
	}
	if err := os.Remove(s.Path(fileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove asset %s: %w", memebot.ErrPersistence, fileName, err)
	}

	return nil
}

var _ memebot.AssetStore = (*Store)(nil)
