package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Reasons a source is (re)processed.
const (
	ReasonForced          = "forced"
	ReasonNew             = "new"
	ReasonChanged         = "content changed"
	ReasonArtifactMissing = "output missing"
	ReasonArtifactStale   = "output older than input"
)

// Artifact describes the output a stage produced for a source.
// A zero ModTime skips the age comparison (store rows have no timestamp).
type Artifact struct {
	Exists  bool
	ModTime time.Time
}

// HashContent returns the hex sha256 of content.
func HashContent(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tracker is the change-detection state of one stage for one run.
// State is loaded once and saved after every recorded source so an
// interrupted run keeps the sources it already completed.
type Tracker struct {
	store driven.StateStore
	stage domain.Stage
	state *domain.StageState
	now   func() time.Time
}

// NewTracker loads the stage state from the store.
func NewTracker(store driven.StateStore, stage domain.Stage) (*Tracker, error) {
	state, err := store.Load(stage)
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", stage, err)
	}
	return &Tracker{store: store, stage: stage, state: state, now: time.Now}, nil
}

// State returns the loaded state.
func (t *Tracker) State() *domain.StageState {
	return t.state
}

// Decide reports whether a source must be processed and why. It is skipped
// only when not forced, the hash matches, and the output exists and is not
// older than the input.
func (t *Tracker) Decide(key, hash string, inputMod time.Time, out Artifact, force bool) (bool, string) {
	if force {
		return true, ReasonForced
	}
	prev, ok := t.state.Get(key)
	if !ok {
		return true, ReasonNew
	}
	if prev.Hash != hash {
		return true, ReasonChanged
	}
	if !out.Exists {
		return true, ReasonArtifactMissing
	}
	if !out.ModTime.IsZero() && out.ModTime.Before(inputMod) {
		return true, ReasonArtifactStale
	}
	return false, ""
}

// Recorded returns the last recorded state of a source.
func (t *Tracker) Recorded(key string) (domain.SourceState, bool) {
	return t.state.Get(key)
}

// Record stores a processed source and persists the state immediately.
func (t *Tracker) Record(key, hash string, count int) error {
	t.state.Record(key, hash, count, t.now())
	if err := t.store.Save(t.stage, t.state); err != nil {
		return fmt.Errorf("save %s state: %w", t.stage, err)
	}
	return nil
}
