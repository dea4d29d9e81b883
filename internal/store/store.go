// Package store persists the meme and citizen collections as JSON documents.
//
// Writes are full-snapshot overwrites: the document is marshaled, written to a
// temp file, and renamed into place, so a crashed write never leaves a partial
// file. The meme collection additionally keeps a backup sibling copy.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"memebot/pkg/memebot"
)

const (
	memesFile       = "memes.json"
	memesBackupFile = "memes-backup.json"
	citizensFile    = "citizens.json"
)

// Store reads and writes the durable collections under one data directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{dir: dir, logger: logger}
}

// LoadMemes reads the meme collection. A missing file loads as empty.
func (s *Store) LoadMemes() ([]*memebot.Meme, error) {
	var memes []*memebot.Meme
	if err := s.loadJSON(memesFile, &memes); err != nil {
		return nil, fmt.Errorf("load memes: %w", err)
	}

	return memes, nil
}

// SaveMemes writes the meme collection sorted by name, plus a backup copy.
func (s *Store) SaveMemes(memes []*memebot.Meme) error {
	sorted := append([]*memebot.Meme(nil), memes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	if err := s.saveJSON(memesFile, memesBackupFile, sorted); err != nil {
		return fmt.Errorf("save memes: %w", err)
	}

	return nil
}

// LoadCitizens reads the citizen collection. A missing file loads as empty.
func (s *Store) LoadCitizens() ([]*memebot.Citizen, error) {
	var citizens []*memebot.Citizen
	if err := s.loadJSON(citizensFile, &citizens); err != nil {
		return nil, fmt.Errorf("load citizens: %w", err)
	}
	for _, citizen := range citizens {
		if citizen.Votes == nil {
			citizen.Votes = make(map[string]memebot.VoteValue)
		}
	}

	return citizens, nil
}

// SaveCitizens writes the citizen collection sorted by name.
func (s *Store) SaveCitizens(citizens []*memebot.Citizen) error {
	sorted := append([]*memebot.Citizen(nil), citizens...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	if err := s.saveJSON(citizensFile, "", sorted); err != nil {
		return fmt.Errorf("save citizens: %w", err)
	}

	return nil
}

func (s *Store) loadJSON(name string, target any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("collection file missing, starting empty", "file", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	return nil
}

func (s *Store) saveJSON(name, backupName string, document any) error {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", memebot.ErrPersistence, err)
	}
	if err := WriteFileAtomic(filepath.Join(s.dir, name), data); err != nil {
		return fmt.Errorf("%w: write %s: %w", memebot.ErrPersistence, name, err)
	}
	if backupName != "" {
		if err := WriteFileAtomic(filepath.Join(s.dir, backupName), data); err != nil {
			return fmt.Errorf("%w: write %s: %w", memebot.ErrPersistence, backupName, err)
		}
	}
	s.logger.Debug("saved collection", "file", name, "bytes", len(data))

	return nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}
