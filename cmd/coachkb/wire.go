package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/ai"
	artifactfile "github.com/custodia-labs/coachkb/internal/adapters/driven/artifacts/file"
	configfile "github.com/custodia-labs/coachkb/internal/adapters/driven/config/file"
	statefile "github.com/custodia-labs/coachkb/internal/adapters/driven/state/file"
	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/sqlite"
	fswatch "github.com/custodia-labs/coachkb/internal/adapters/driven/watch/fsnotify"
	"github.com/custodia-labs/coachkb/internal/adapters/driving/cli"
	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/core/services"
	"github.com/custodia-labs/coachkb/internal/postprocessors"
)

// Ensure factory implements the interface.
var _ cli.Factory = (*factory)(nil)

// factory assembles services from adapters. Each command gets fresh
// instances built from its effective settings.
type factory struct {
	debounce time.Duration
}

func newFactory() *factory {
	return &factory{debounce: fswatch.DefaultDebounce}
}

// Settings opens the TOML config store.
func (f *factory) Settings(configDir string) (driving.SettingsService, error) {
	store, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	return services.NewSettingsService(store, ai.NewConfigValidator()), nil
}

// BuildService wires transcripts, chunks files, chunk state and the embedder.
// Build never opens the vector store. The model is checked by the service
// itself before any write, so a dry run works without a provider.
func (f *factory) BuildService(s domain.Settings) (driving.BuildService, func() error, error) {
	pipeline, err := postprocessors.NewBuildPipeline(s.Chunk)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := ai.CreateEmbeddingService(&s.Embedding)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewBuildService(
		artifactfile.NewTranscriptSource(s.EnrichedDir()),
		artifactfile.NewChunkArtifactStore(s.ChunksDir()),
		statefile.NewStateStore(s.StateDir()),
		embedder,
		pipeline,
		s.Chunk,
	)
	return svc, embedder.Close, nil
}

// IngestService wires chunks files, gate inputs, reports and the store.
func (f *factory) IngestService(s domain.Settings) (driving.IngestService, func() error, error) {
	store, err := openStore(s)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewIngestService(
		artifactfile.NewChunkArtifactStore(s.ChunksDir()),
		artifactfile.NewTranscriptSource(s.EnrichedDir()),
		artifactfile.NewGateInputSource(),
		store,
		statefile.NewStateStore(s.StateDir()),
		artifactfile.NewReportSink(s.ReportsDir()),
		s.Ingest,
		ai.Dimensions(s.Embedding),
	)
	return svc, store.Close, nil
}

// Retriever wires the store and the embedder.
func (f *factory) Retriever(s domain.Settings) (driving.Retriever, func() error, error) {
	store, err := openStore(s)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := ai.CreateAndValidateEmbeddingService(context.Background(), &s.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	closeAll := func() error {
		return errors.Join(embedder.Close(), store.Close())
	}
	svc, err := services.NewRetrievalService(store, embedder, s.Retrieval, s.Answer)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}

// Watch watches the enriched transcript directory.
func (f *factory) Watch(s domain.Settings) cli.WatchFunc {
	w := fswatch.New(f.debounce)
	root := s.EnrichedDir()
	return func(ctx context.Context, onChange func()) error {
		return w.Watch(ctx, root, onChange)
	}
}

// openStore opens the configured vector store backend.
func openStore(s domain.Settings) (driven.ChunkStore, error) {
	var (
		store driven.ChunkStore
		err   error
	)
	switch s.Store.Backend {
	case domain.StoreSQLite:
		store, err = sqlite.NewStore(s.StorePath())
	case domain.StorePgvector:
		store, err = pgvector.NewStore(s.Store.DSN)
	case domain.StoreMemory:
		store = memory.NewChunkStore()
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidInput, s.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return store, nil
}
