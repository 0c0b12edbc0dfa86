package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/postprocessors"
)

type buildFixture struct {
	transcripts *mockTranscriptSource
	artifacts   *mockArtifacts
	states      *mockStateStore
	embedder    *mockEmbedder
	svc         *BuildService
}

func newBuildFixture(t *testing.T) *buildFixture {
	t.Helper()
	settings := domain.DefaultSettings().Chunk
	pipeline, err := postprocessors.NewBuildPipeline(settings)
	require.NoError(t, err)

	f := &buildFixture{
		transcripts: newMockTranscriptSource(),
		artifacts:   newMockArtifacts(),
		states:      newMockStateStore(),
		embedder:    newMockEmbedder(),
	}
	f.svc = NewBuildService(f.transcripts, f.artifacts, f.states, f.embedder, pipeline, settings)
	f.svc.now = func() time.Time { return writeTime }
	return f
}

func (f *buildFixture) run(t *testing.T, opts domain.BuildOptions) (*domain.BuildPlan, *domain.BuildResult) {
	t.Helper()
	plan, err := f.svc.Plan(context.Background(), opts)
	require.NoError(t, err)
	result, err := f.svc.Run(context.Background(), plan)
	require.NoError(t, err)
	return plan, result
}

func TestBuildService_WritesChunksFile(t *testing.T) {
	f := newBuildFixture(t)
	f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")

	plan, result := f.run(t, domain.BuildOptions{})

	assert.Equal(t, 1, plan.Summary.ToProcess)
	require.Len(t, result.Built, 1)
	assert.Equal(t, "coachA/abc123def", result.Built[0].SourceKey)

	file := f.artifacts.files["coachA/abc123def.chunks.json"]
	require.NotNil(t, file)
	assert.Equal(t, domain.ChunksFileVersion, file.Version)
	assert.Equal(t, "test-embed", file.EmbeddingModel)
	assert.Equal(t, "video", file.VideoStem)
	assert.Equal(t, result.Built[0].Chunks, len(file.Chunks))
	require.NoError(t, file.ValidateStructure(3))

	st, ok := f.states.states[domain.StageChunk].Get("coachA/abc123def")
	require.True(t, ok)
	assert.Equal(t, len(file.Chunks), st.Count)
}

func TestBuildService_Idempotent(t *testing.T) {
	f := newBuildFixture(t)
	f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
	f.run(t, domain.BuildOptions{})
	require.Equal(t, 1, f.artifacts.writes)

	plan, result := f.run(t, domain.BuildOptions{})

	assert.Equal(t, 0, plan.Summary.ToProcess)
	assert.Equal(t, 1, plan.Summary.Unchanged)
	assert.Empty(t, result.Built)
	assert.Equal(t, 1, f.artifacts.writes, "unchanged input rewrites nothing")

	_, result = f.run(t, domain.BuildOptions{Force: true})
	assert.Len(t, result.Built, 1)
	assert.Equal(t, 2, f.artifacts.writes)
}

func TestBuildService_Reprocesses(t *testing.T) {
	t.Run("changed content", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
		f.run(t, domain.BuildOptions{})

		f.transcripts.raw[f.transcripts.files[0].Path] = []byte("v2")
		plan, _ := f.run(t, domain.BuildOptions{})
		assert.Equal(t, 1, plan.Summary.ToProcess)
	})

	t.Run("missing output", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
		f.run(t, domain.BuildOptions{})

		delete(f.artifacts.mod, "coachA/abc123def.chunks.json")
		plan, _ := f.run(t, domain.BuildOptions{})
		assert.Equal(t, 1, plan.Summary.ToProcess)
	})

	t.Run("output older than input", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
		f.run(t, domain.BuildOptions{})

		f.artifacts.mod["coachA/abc123def.chunks.json"] = inputTime.Add(-time.Hour)
		plan, _ := f.run(t, domain.BuildOptions{})
		assert.Equal(t, 1, plan.Summary.ToProcess)
	})
}

func TestBuildService_DryRun(t *testing.T) {
	f := newBuildFixture(t)
	f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")

	plan, result := f.run(t, domain.BuildOptions{DryRun: true})

	assert.Equal(t, 1, plan.Summary.ToProcess)
	assert.Empty(t, result.Built)
	assert.Zero(t, f.artifacts.writes)
	assert.Zero(t, f.states.saves)
	assert.Zero(t, f.embedder.calls)
}

func TestBuildService_UnstableIdentity(t *testing.T) {
	tr := infieldTranscript("coachA", "abc123def")
	tr.Channel = ""

	t.Run("skipped by default", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", tr, "v1")

		plan, _ := f.run(t, domain.BuildOptions{})

		assert.Equal(t, 0, plan.Summary.ToProcess)
		require.Len(t, plan.Skipped, 1)
		assert.Contains(t, plan.Skipped[0].Reason, domain.ErrUnstableIdentity.Error())
	})

	t.Run("override falls back to the manifest source", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", tr, "v1")

		_, result := f.run(t, domain.BuildOptions{AllowUnstableKeys: true})

		require.Len(t, result.Built, 1)
		assert.Equal(t, "coachA/abc123def", result.Built[0].SourceKey)
	})
}

func TestBuildService_ManifestScope(t *testing.T) {
	f := newBuildFixture(t)
	f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
	f.transcripts.add("coachB", infieldTranscript("coachB", "zzz999yyy"), "v1")
	f.transcripts.manifest = &domain.Manifest{Name: "batch.txt", Entries: []domain.ManifestEntry{
		{Source: "coachA", Folder: "Daytime [abc123def]", VideoID: "abc123def"},
		{Source: "coachA", Folder: "Gone [missing01]", VideoID: "missing01"},
		{Source: "coachB", Folder: "Daytime [zzz999yyy]", VideoID: "zzz999yyy"},
	}}

	plan, result := f.run(t, domain.BuildOptions{ManifestPath: "batch.txt", Source: "coachA"})

	assert.Equal(t, 2, plan.Summary.Total)
	assert.Equal(t, 1, plan.Summary.ToProcess)
	assert.Equal(t, 1, plan.Summary.Skipped)
	assert.Equal(t, ReasonTranscriptMissing, plan.Skipped[0].Reason)
	require.Len(t, result.Built, 1)
	assert.Equal(t, "coachA/abc123def", result.Built[0].SourceKey)
}

func TestBuildService_ProviderFailures(t *testing.T) {
	t.Run("model unavailable aborts before writing", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
		f.embedder.modelErr = domain.ErrModelUnavailable

		plan, err := f.svc.Plan(context.Background(), domain.BuildOptions{})
		require.NoError(t, err)
		_, err = f.svc.Run(context.Background(), plan)

		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
		assert.Zero(t, f.artifacts.writes)
	})

	t.Run("embedding failure is fatal and records nothing", func(t *testing.T) {
		f := newBuildFixture(t)
		f.transcripts.add("coachA", infieldTranscript("coachA", "abc123def"), "v1")
		f.embedder.err = errors.Join(domain.ErrProviderUnavailable, errors.New("connection refused"))

		plan, err := f.svc.Plan(context.Background(), domain.BuildOptions{})
		require.NoError(t, err)
		_, err = f.svc.Run(context.Background(), plan)

		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
		assert.Zero(t, f.artifacts.writes)
		assert.Zero(t, f.states.saves)
	})
}
