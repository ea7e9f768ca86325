package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFileName = "reaction.yaml"
	// LegacyFileName is the JSON settings file of earlier releases.
	LegacyFileName = "LTC-Cursed.forgotten"
)

var (
	ErrConfigLoad = errors.New("load reaction config")
	ErrConfigSave = errors.New("save reaction config")
)

// Store owns the live Reaction snapshot and its file.
type Store struct {
	path   string
	legacy string
	log    *zap.Logger

	mu      sync.RWMutex
	current Reaction
	written []byte // last bytes we wrote, to recognise our own rename in Watch
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// ImportLegacy makes Load fall back to path when the settings file does not
// exist yet. The imported settings are written to the new file.
func (s *Store) ImportLegacy(path string) *Store {
	s.legacy = path
	return s
}

// Current returns a copy of the live snapshot.
func (s *Store) Current() Reaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Load reads the file into the live snapshot. A missing file yields the
// defaults without error; an unreadable or unparsable file yields the
// defaults and ErrConfigLoad.
func (s *Store) Load() (Reaction, error) {
	if s.legacy != "" && !exists(s.path) && exists(s.legacy) {
		return s.importLegacy()
	}
	cfg, err := readFile(s.path)
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Reaction config load failed, using defaults", zap.String("path", s.path), zap.Error(err))
		return cfg.Clone(), err
	}
	s.log.Info("Reaction config loaded", zap.String("path", s.path), zap.Any("config", cfg))
	return cfg.Clone(), nil
}

func (s *Store) importLegacy() (Reaction, error) {
	cfg, err := readFile(s.legacy)
	if err != nil {
		s.mu.Lock()
		s.current = Reaction{}
		s.mu.Unlock()
		s.log.Warn("Legacy reaction config unreadable, using defaults", zap.String("path", s.legacy), zap.Error(err))
		return Reaction{}, err
	}
	s.log.Info("Importing legacy reaction config", zap.String("from", s.legacy), zap.String("to", s.path))
	if err := s.Save(cfg); err != nil {
		return cfg.Clone(), err
	}
	return cfg.Clone(), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readFile(path string) (Reaction, error) {
	var cfg Reaction
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Reaction{}, fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}
	return decode(data)
}

// decode accepts YAML and the JSON files written by earlier releases.
func decode(data []byte) (Reaction, error) {
	var cfg Reaction
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Reaction{}, fmt.Errorf("%w: parse: %v", ErrConfigLoad, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save makes cfg the live snapshot and persists it atomically. If the write
// fails the snapshot is kept and ErrConfigSave is returned.
func (s *Store) Save(cfg Reaction) error {
	cfg = cfg.Clone()
	cfg.Normalize()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrConfigSave, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cfg

	if err := writeAtomic(s.path, data); err != nil {
		s.log.Error("Reaction config save failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConfigSave, err)
	}
	s.written = data
	s.log.Info("Reaction config saved", zap.Any("config", cfg))
	return nil
}

// writeAtomic writes to a temp file next to path and renames it over path,
// so a reader never sees a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Watch reloads the snapshot when the file is changed by someone else and
// calls onChange with the new value. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(Reaction)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if cfg, changed := s.reload(); changed && onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file after an fsnotify event. Content we wrote
// ourselves and unparsable intermediate states are ignored.
func (s *Store) reload() (Reaction, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return Reaction{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(data, s.written) {
		return Reaction{}, false
	}
	cfg, err := decode(data)
	if err != nil {
		s.log.Warn("Ignoring unparsable config edit", zap.String("path", s.path), zap.Error(err))
		return Reaction{}, false
	}
	s.current = cfg
	s.written = data
	s.log.Info("Reaction config reloaded from disk", zap.Any("config", cfg))
	return cfg.Clone(), true
}
