// Package settings persists the user-editable applet settings: the observed
// location and the temperature unit preference.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/wind-applet/internal/models"
	"github.com/kjstillabower/wind-applet/internal/validation"
)

// ErrNotFinite is returned when a coordinate to persist is NaN or infinite.
var ErrNotFinite = errors.New("coordinate must be finite")

// Store is the persisted settings contract used by the applet. Every setter
// writes through to durable storage before returning.
type Store interface {
	Location() models.Location
	UseFahrenheit() bool
	SetLatitude(v float64) error
	SetLongitude(v float64) error
	SetUseFahrenheit(v bool) error
}

// document is the on-disk layout. Missing keys decode as zero values and
// unknown keys are ignored, so older and newer files both load.
type document struct {
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	UseFahrenheit bool    `yaml:"use_fahrenheit"`
}

// FileStore implements Store on a YAML file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	doc    document
	logger *zap.Logger
}

// Open loads settings from path. A missing file yields defaults and is created on
// the first write. An unreadable or corrupt file is logged and replaced by
// defaults rather than failing startup.
func Open(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("settings: path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s.doc); err != nil {
			logger.Warn("settings file unreadable, using defaults", zap.String("path", path), zap.Error(err))
			s.doc = document{}
		}
	case os.IsNotExist(err):
		logger.Info("settings file not found, using defaults", zap.String("path", path))
	default:
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	if !validation.IsFinite(s.doc.Latitude) || !validation.IsFinite(s.doc.Longitude) {
		logger.Warn("settings file has non-finite coordinates, resetting location", zap.String("path", path))
		s.doc.Latitude, s.doc.Longitude = 0, 0
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Location returns the persisted location.
func (s *FileStore) Location() models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Location{Latitude: s.doc.Latitude, Longitude: s.doc.Longitude}
}

// UseFahrenheit returns the persisted unit preference.
func (s *FileStore) UseFahrenheit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.UseFahrenheit
}

// SetLatitude persists the latitude.
func (s *FileStore) SetLatitude(v float64) error {
	if !validation.IsFinite(v) {
		return fmt.Errorf("set latitude: %w", ErrNotFinite)
	}
	return s.update("latitude", func(d *document) { d.Latitude = v })
}

// SetLongitude persists the longitude.
func (s *FileStore) SetLongitude(v float64) error {
	if !validation.IsFinite(v) {
		return fmt.Errorf("set longitude: %w", ErrNotFinite)
	}
	return s.update("longitude", func(d *document) { d.Longitude = v })
}

// SetUseFahrenheit persists the unit preference.
func (s *FileStore) SetUseFahrenheit(v bool) error {
	return s.update("use_fahrenheit", func(d *document) { d.UseFahrenheit = v })
}

// update applies fn and rewrites the whole file. The in-memory document keeps
// the new value even when the write fails, matching what the applet shows.
func (s *FileStore) update(field string, fn func(*document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.doc)
	if err := s.write(); err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}
	return nil
}

func (s *FileStore) write() error {
	raw, err := yaml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
