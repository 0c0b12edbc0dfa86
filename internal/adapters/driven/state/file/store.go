// Package file persists per-stage change-detection state as JSON files.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore keeps <dir>/<stage>_state.json files.
type StateStore struct {
	mu  sync.Mutex
	dir string
}

// NewStateStore creates a state store under dir.
func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Path returns the state file of a stage.
func (s *StateStore) Path(stage domain.Stage) string {
	return filepath.Join(s.dir, string(stage)+"_state.json")
}

// Load reads a stage's state. A missing file is an empty state.
func (s *StateStore) Load(stage domain.Stage) (*domain.StageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(stage))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewStageState(), nil
		}
		return nil, fmt.Errorf("read %s state: %w", stage, err)
	}

	state := domain.NewStageState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("%w: %s state: %v", domain.ErrMalformedInput, stage, err)
	}
	if state.Version > domain.StateFileVersion {
		return nil, fmt.Errorf("%w: %s state version %d is newer than %d",
			domain.ErrMalformedInput, stage, state.Version, domain.StateFileVersion)
	}
	if state.Sources == nil {
		state.Sources = make(map[string]domain.SourceState)
	}
	state.Version = domain.StateFileVersion
	return state, nil
}

// Save writes a stage's state through a temp file and rename.
func (s *StateStore) Save(stage domain.Stage, state *domain.StageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s state: %w", stage, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(stage)+"-state-*")
	if err != nil {
		return fmt.Errorf("save %s state: %w", stage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s state: %w", stage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s state: %w", stage, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(stage)); err != nil {
		return fmt.Errorf("save %s state: %w", stage, err)
	}
	return nil
}
