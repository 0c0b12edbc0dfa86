package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Ensure BuildService implements the interface.
var _ driving.BuildService = (*BuildService)(nil)

// Skip reasons reported by the build stage.
const (
	ReasonTranscriptMissing = "enriched transcript not found"
	ReasonUnchanged         = "unchanged"
)

// BuildService turns enriched transcripts into chunks files.
type BuildService struct {
	transcripts driven.TranscriptSource
	artifacts   driven.ChunkArtifactStore
	states      driven.StateStore
	embedder    driven.EmbeddingService
	pipeline    driven.PostProcessorPipeline
	settings    domain.ChunkSettings
	now         func() time.Time
}

// NewBuildService creates a build service. The pipeline must have been
// assembled from the same chunk settings, which are recorded in every file.
func NewBuildService(
	transcripts driven.TranscriptSource,
	artifacts driven.ChunkArtifactStore,
	states driven.StateStore,
	embedder driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	settings domain.ChunkSettings,
) *BuildService {
	return &BuildService{
		transcripts: transcripts,
		artifacts:   artifacts,
		states:      states,
		embedder:    embedder,
		pipeline:    pipeline,
		settings:    settings,
		now:         time.Now,
	}
}

// Plan resolves the videos to chunk. It reads transcripts and state but never
// writes anything.
func (s *BuildService) Plan(ctx context.Context, opts domain.BuildOptions) (*domain.BuildPlan, error) {
	logger.Section("Build Plan")

	var entries []domain.ManifestEntry
	if opts.ManifestPath != "" {
		manifest, err := s.transcripts.LoadManifest(opts.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		entries = manifest.Filter(opts.Source)
		logger.Debug("Manifest %s: %d entries in scope", manifest.Name, len(entries))
	}

	found, missing, err := s.transcripts.Discover(entries)
	if err != nil {
		return nil, fmt.Errorf("discover transcripts: %w", err)
	}
	if opts.ManifestPath == "" && opts.Source != "" {
		found = filterFiles(found, opts.Source)
	}

	tracker, err := NewTracker(s.states, domain.StageChunk)
	if err != nil {
		return nil, err
	}

	plan := &domain.BuildPlan{
		Options: opts,
		State:   tracker.State(),
		Summary: domain.ScopeSummary{Stage: domain.StageChunk, Total: len(found) + len(missing)},
	}
	for _, m := range missing {
		plan.Skipped = append(plan.Skipped, logSkip(m.Folder, ReasonTranscriptMissing))
	}

	for _, f := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, reason := s.planItem(f, opts)
		if item == nil {
			plan.Skipped = append(plan.Skipped, logSkip(f.Path, reason))
			continue
		}
		needed, why := tracker.Decide(item.SourceKey, item.Hash, item.ModTime, s.artifactFor(item), opts.Force)
		if !needed {
			plan.Summary.Unchanged++
			logger.Debug("%s: %s", item.SourceKey, ReasonUnchanged)
			continue
		}
		logger.Debug("%s: %s", item.SourceKey, why)
		plan.Items = append(plan.Items, *item)
	}

	plan.Summary.ToProcess = len(plan.Items)
	plan.Summary.Skipped = len(plan.Skipped)
	logger.Info("build scope: %d total, %d to process, %d unchanged, %d skipped",
		plan.Summary.Total, plan.Summary.ToProcess, plan.Summary.Unchanged, plan.Summary.Skipped)
	return plan, nil
}

// planItem loads one transcript and derives its identity and input hash.
// A nil item comes with the reason it was skipped.
func (s *BuildService) planItem(f driven.TranscriptFile, opts domain.BuildOptions) (*domain.BuildItem, string) {
	raw, tr, err := s.transcripts.ReadTranscript(f.Path)
	if err != nil {
		return nil, err.Error()
	}

	key, err := domain.SourceKey(tr.Channel, tr.VideoID)
	if err != nil {
		if !opts.AllowUnstableKeys {
			return nil, err.Error()
		}
		key = unstableKey(f.Entry, tr)
		logger.WithFields(logger.Fields{"path": f.Path, "source_key": key}).Warn("proceeding with unstable source key")
	}

	videoID := tr.VideoID
	if videoID == "" {
		videoID = f.Entry.VideoID
	}
	return &domain.BuildItem{
		SourceKey:  key,
		Source:     f.Entry.Source,
		Folder:     f.Entry.Folder,
		VideoID:    videoID,
		Path:       f.Path,
		Hash:       HashContent(raw, []byte(s.settingsFingerprint())),
		ModTime:    f.ModTime,
		Transcript: tr,
	}, ""
}

// settingsFingerprint makes a settings change invalidate previous output.
func (s *BuildService) settingsFingerprint() string {
	model := ""
	if s.embedder != nil {
		model = s.embedder.ModelName()
	}
	return fmt.Sprintf("size=%d overlap=%d floor=%.4f model=%s",
		s.settings.ChunkSize, s.settings.ChunkOverlap, s.settings.MinChunkConfidence, model)
}

func (s *BuildService) artifactFor(item *domain.BuildItem) Artifact {
	mod, ok := s.artifacts.Stat(item.Source, item.VideoID)
	return Artifact{Exists: ok, ModTime: mod}
}

// Run chunks, embeds and writes every planned item. Each written file is
// recorded in the chunk state before the next one starts.
func (s *BuildService) Run(ctx context.Context, plan *domain.BuildPlan) (*domain.BuildResult, error) {
	result := &domain.BuildResult{Summary: plan.Summary, Skipped: plan.Skipped}
	if plan.Options.DryRun {
		logger.Info("dry run: %d chunks files would be written", len(plan.Items))
		return result, nil
	}
	if len(plan.Items) == 0 {
		return result, nil
	}
	if s.embedder == nil {
		return result, domain.ErrEmbeddingUnavailable
	}
	if err := s.embedder.ModelAvailable(ctx); err != nil {
		return result, fmt.Errorf("embedding model %s: %w", s.embedder.ModelName(), err)
	}

	tracker := &Tracker{store: s.states, stage: domain.StageChunk, state: plan.State, now: s.now}
	if tracker.state == nil {
		tracker.state = domain.NewStageState()
	}

	logger.Section("Build")
	for i := range plan.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := &plan.Items[i]
		built, err := s.buildOne(ctx, item)
		if err != nil {
			return result, fmt.Errorf("build %s: %w", item.SourceKey, err)
		}
		if err := tracker.Record(item.SourceKey, item.Hash, built.Chunks); err != nil {
			return result, err
		}
		result.Built = append(result.Built, *built)
		logger.WithFields(logger.Fields{
			"source_key": item.SourceKey,
			"chunks":     built.Chunks,
			"dropped":    built.Dropped,
		}).Info("chunks file written")
	}
	return result, nil
}

func (s *BuildService) buildOne(ctx context.Context, item *domain.BuildItem) (*domain.BuiltSource, error) {
	doc := &domain.BuildDocument{
		SourceKey:  item.SourceKey,
		Transcript: item.Transcript,
		Quality:    domain.BuildQualityIndex(item.Transcript),
	}
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	var embeddings [][]float32
	if len(texts) > 0 {
		embeddings, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, fmt.Errorf("%w: %d embeddings for %d chunks", domain.ErrProviderUnavailable, len(embeddings), len(chunks))
		}
	}

	tr := item.Transcript
	file := &domain.ChunksFile{
		Version:                 domain.ChunksFileVersion,
		SourceKey:               item.SourceKey,
		SourceFile:              item.Path,
		SourceHash:              item.Hash,
		EmbeddingModel:          s.embedder.ModelName(),
		ChunkSize:               s.settings.ChunkSize,
		ChunkOverlap:            s.settings.ChunkOverlap,
		MinChunkConfidence:      s.settings.MinChunkConfidence,
		PreFilterChunkCount:     doc.Stats.PreFilterCount,
		DroppedChunksBelowFloor: doc.Stats.Dropped,
		VideoType:               tr.VideoType,
		Channel:                 tr.Channel,
		VideoID:                 item.VideoID,
		VideoTitle:              tr.Title,
		VideoStem:               videoStem(item.Path),
		GeneratedAt:             s.now().UTC(),
		Chunks:                  make([]domain.ChunkRecord, len(chunks)),
	}
	for i, c := range chunks {
		file.Chunks[i] = domain.ChunkRecord{Content: c.Content, Embedding: embeddings[i], Metadata: c.Metadata}
	}
	if err := file.ValidateStructure(0); err != nil {
		return nil, err
	}

	if err := s.artifacts.Write(item.Source, file); err != nil {
		return nil, fmt.Errorf("write chunks file: %w", err)
	}
	return &domain.BuiltSource{
		SourceKey: item.SourceKey,
		Path:      s.artifacts.PathFor(item.Source, item.VideoID),
		Chunks:    len(chunks),
		PreFilter: doc.Stats.PreFilterCount,
		Dropped:   doc.Stats.Dropped,
	}, nil
}

// unstableKey derives a key from the manifest entry when the transcript
// carries no usable identity.
func unstableKey(entry domain.ManifestEntry, tr *domain.Transcript) string {
	channel := strings.TrimSpace(tr.Channel)
	if channel == "" || strings.Contains(channel, "/") {
		channel = entry.Source
	}
	id := strings.TrimSpace(tr.VideoID)
	if id == "" {
		id = entry.VideoID
	}
	if id == "" {
		id = strings.ReplaceAll(strings.TrimSpace(entry.Folder), "/", "_")
	}
	return channel + "/" + id
}

func logSkip(key, reason string) domain.SkippedItem {
	logger.WithFields(logger.Fields{"key": key, "reason": reason}).Warn("skipped")
	return domain.SkippedItem{Key: key, Reason: reason}
}

func videoStem(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".enriched.json", ".json"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

func filterFiles(files []driven.TranscriptFile, source string) []driven.TranscriptFile {
	var out []driven.TranscriptFile
	for _, f := range files {
		if f.Entry.Source == source {
			out = append(out, f)
		}
	}
	return out
}
