package domain

import "time"

// StateFileVersion is the on-disk version of stage state files.
const StateFileVersion = 1

// Stage names a pipeline stage that keeps change-detection state.
type Stage string

// Pipeline stages.
const (
	StageChunk  Stage = "chunk"
	StageIngest Stage = "ingest"
)

// SourceState is the last-processed record for one sourceKey.
type SourceState struct {
	Hash      string    `json:"hash"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StageState maps sourceKey to its last-processed record. It is loaded once per
// run, mutated per processed source and persisted after each source completes.
type StageState struct {
	Version int                    `json:"version"`
	Sources map[string]SourceState `json:"sources"`
}

// NewStageState returns an empty state at the current version.
func NewStageState() *StageState {
	return &StageState{
		Version: StateFileVersion,
		Sources: make(map[string]SourceState),
	}
}

// Get returns the recorded state for a sourceKey.
func (s *StageState) Get(sourceKey string) (SourceState, bool) {
	st, ok := s.Sources[sourceKey]
	return st, ok
}

// Record stores the processed hash and item count for a sourceKey.
func (s *StageState) Record(sourceKey, hash string, count int, at time.Time) {
	if s.Sources == nil {
		s.Sources = make(map[string]SourceState)
	}
	s.Sources[sourceKey] = SourceState{Hash: hash, Count: count, UpdatedAt: at.UTC()}
}
