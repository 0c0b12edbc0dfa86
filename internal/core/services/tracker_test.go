package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// mockStateStore is an in-memory StateStore that counts saves.
type mockStateStore struct {
	states  map[domain.Stage]*domain.StageState
	saves   int
	loadErr error
	saveErr error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{states: make(map[domain.Stage]*domain.StageState)}
}

func (m *mockStateStore) Load(stage domain.Stage) (*domain.StageState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if st, ok := m.states[stage]; ok {
		return st, nil
	}
	return domain.NewStageState(), nil
}

func (m *mockStateStore) Save(stage domain.Stage, state *domain.StageState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.states[stage] = state
	return nil
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("abc"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashContent([]byte("a"), []byte("bc")))
	assert.NotEqual(t, a, HashContent([]byte("abd")))
}

func TestTracker_Decide(t *testing.T) {
	input := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := Artifact{Exists: true, ModTime: input.Add(time.Minute)}

	store := newMockStateStore()
	tr, err := NewTracker(store, domain.StageChunk)
	require.NoError(t, err)
	require.NoError(t, tr.Record("chan/abcdef", "h1", 3))

	tests := []struct {
		name   string
		key    string
		hash   string
		out    Artifact
		force  bool
		want   bool
		reason string
	}{
		{"unchanged", "chan/abcdef", "h1", fresh, false, false, ""},
		{"forced", "chan/abcdef", "h1", fresh, true, true, ReasonForced},
		{"new", "chan/other1", "h1", fresh, false, true, ReasonNew},
		{"changed", "chan/abcdef", "h2", fresh, false, true, ReasonChanged},
		{"missing output", "chan/abcdef", "h1", Artifact{}, false, true, ReasonArtifactMissing},
		{"stale output", "chan/abcdef", "h1", Artifact{Exists: true, ModTime: input.Add(-time.Hour)}, false, true, ReasonArtifactStale},
		{"no timestamp", "chan/abcdef", "h1", Artifact{Exists: true}, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := tr.Decide(tt.key, tt.hash, input, tt.out, tt.force)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestTracker_RecordSavesEachSource(t *testing.T) {
	store := newMockStateStore()
	tr, err := NewTracker(store, domain.StageIngest)
	require.NoError(t, err)

	require.NoError(t, tr.Record("a/aaaaaa", "h", 1))
	require.NoError(t, tr.Record("b/bbbbbb", "h", 2))

	assert.Equal(t, 2, store.saves)
	st, ok := store.states[domain.StageIngest].Get("b/bbbbbb")
	require.True(t, ok)
	assert.Equal(t, 2, st.Count)
}

func TestTracker_Errors(t *testing.T) {
	store := newMockStateStore()
	store.loadErr = errors.New("corrupt")
	_, err := NewTracker(store, domain.StageChunk)
	assert.ErrorContains(t, err, "load chunk state")

	store = newMockStateStore()
	tr, err := NewTracker(store, domain.StageChunk)
	require.NoError(t, err)
	store.saveErr = errors.New("disk full")
	assert.ErrorContains(t, tr.Record("a/aaaaaa", "h", 1), "disk full")
}
