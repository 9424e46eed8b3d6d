package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"marketplace-watcher/models"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("snapshot file not found")

// JSONStore persists the snapshot as one JSON object keyed by canonical URL.
// There is no cross-process locking: the last writer wins.
type JSONStore struct {
	path string
	log  zerolog.Logger
}

func NewJSONStore(path string, log zerolog.Logger) *JSONStore {
	return &JSONStore{
		path: path,
		log:  log.With().Str("component", "JSONStore").Logger(),
	}
}

func (s *JSONStore) Path() string { return s.path }

// Load returns the stored snapshot. A missing or unreadable file yields an
// empty snapshot; the cause is logged, never returned.
func (s *JSONStore) Load() models.Snapshot {
	snap, err := s.LoadStrict()
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Info().Str("path", s.path).Msg("No saved listings yet, starting empty")
		return models.Snapshot{}
	case err != nil:
		s.log.Warn().Err(err).Str("path", s.path).Msg("Saved listings unreadable, starting empty")
		return models.Snapshot{}
	}
	return snap
}

// LoadStrict is Load without the fallback: ErrNotFound when the file does
// not exist and the parse error when it is corrupt.
func (s *JSONStore) LoadStrict() (models.Snapshot, error) {
	data, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}

	snap := models.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", s.path, err)
	}
	if snap == nil {
		snap = models.Snapshot{}
	}
	return snap, nil
}

// ReadRaw returns the file contents verbatim.
func (s *JSONStore) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", s.path, err)
	}
	return data, nil
}

// Save overwrites the file with the full snapshot. The data is written to a
// temp file in the same directory and renamed over the target.
func (s *JSONStore) Save(snap models.Snapshot) error {
	if snap == nil {
		snap = models.Snapshot{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("could not encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("could not replace %s: %w", s.path, err)
	}

	s.log.Debug().Str("path", s.path).Int("listings", len(snap)).Msg("Saved listings")
	return nil
}
