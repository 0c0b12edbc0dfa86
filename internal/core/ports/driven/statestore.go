package driven

import "github.com/custodia-labs/coachkb/internal/core/domain"

// StateStore persists per-stage change-detection state.
// A missing state file loads as an empty state.
type StateStore interface {
	// Load reads the state of one stage.
	Load(stage domain.Stage) (*domain.StageState, error)

	// Save persists the state of one stage atomically.
	Save(stage domain.Stage, state *domain.StageState) error
}
