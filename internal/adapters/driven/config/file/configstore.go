package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/config"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// fileName is the config file inside the config directory.
const fileName = "config.toml"

// ConfigStore keeps coachkb settings in a TOML file. Every Set is written
// through to disk.
type ConfigStore struct {
	mu     sync.RWMutex
	path   string
	values config.Values
}

// NewConfigStore opens the config in configDir, defaulting to ~/.coachkb.
// A missing file is an empty config; a malformed one is an error.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".coachkb")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{path: filepath.Join(configDir, fileName), values: config.Values{}}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the raw value stored under a dotted key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// with runs read under the read lock.
func with[T any](s *ConfigStore, read func(config.Values) T) T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return read(s.values)
}

func (s *ConfigStore) GetString(key string) string {
	return with(s, func(v config.Values) string { return v.String(key) })
}

func (s *ConfigStore) GetInt(key string) int {
	return with(s, func(v config.Values) int { return v.Int(key) })
}

func (s *ConfigStore) GetFloat(key string) float64 {
	return with(s, func(v config.Values) float64 { return v.Float(key) })
}

func (s *ConfigStore) GetBool(key string) bool {
	return with(s, func(v config.Values) bool { return v.Bool(key) })
}

func (s *ConfigStore) GetStringSlice(key string) []string {
	return with(s, func(v config.Values) []string { return v.StringSlice(key) })
}

// Set stores value under key and rewrites the file. On failure the previous
// value is restored.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.write(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Save rewrites the file from memory.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// write encodes dotted keys back into TOML tables and replaces the file
// atomically. Caller holds the lock.
func (s *ConfigStore) write() error {
	tables, err := s.values.Nest()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(tables)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load replaces the in-memory values with the file's contents.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.values = config.Values{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.values = config.Flatten(tables)
	return nil
}

// Path returns the config file location.
func (s *ConfigStore) Path() string {
	return s.path
}
