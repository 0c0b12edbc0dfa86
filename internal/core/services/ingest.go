package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// ReasonChunksMissing is reported for manifest videos without a chunks file.
const ReasonChunksMissing = "chunks file not found"

// IngestService moves gated chunks files into the vector store.
type IngestService struct {
	artifacts   driven.ChunkArtifactStore
	transcripts driven.TranscriptSource
	gateInputs  driven.GateInputSource
	store       driven.ChunkStore
	states      driven.StateStore
	gates       *Gatekeeper
	settings    domain.IngestSettings

	// dims is the expected embedding dimension; 0 accepts any consistent size.
	dims int
	now  func() time.Time
}

// NewIngestService creates an ingest service.
func NewIngestService(
	artifacts driven.ChunkArtifactStore,
	transcripts driven.TranscriptSource,
	gateInputs driven.GateInputSource,
	store driven.ChunkStore,
	states driven.StateStore,
	reports driven.ReportSink,
	settings domain.IngestSettings,
	dims int,
) *IngestService {
	return &IngestService{
		artifacts:   artifacts,
		transcripts: transcripts,
		gateInputs:  gateInputs,
		store:       store,
		states:      states,
		gates:       NewGatekeeper(reports),
		settings:    settings,
		dims:        dims,
		now:         time.Now,
	}
}

func (s *IngestService) router() *LaneRouter {
	return NewLaneRouter(s.settings.LaneThreshold, s.settings.IncludeReview)
}

// laneFingerprint is folded into the ingest hash so a lane setting change
// re-ingests every source.
func (s *IngestService) laneFingerprint() string {
	return fmt.Sprintf("lane=%.4f review=%t", s.settings.LaneThreshold, s.settings.IncludeReview)
}

// ingestScope is the set of chunks files a run considers.
type ingestScope struct {
	manifest *domain.Manifest
	entries  []domain.ManifestEntry
	files    []driven.ChunksFileInfo
	missing  []string
}

func (s *IngestService) resolveScope(opts domain.IngestOptions) (*ingestScope, error) {
	scope := &ingestScope{}
	var sources []string
	if opts.Source != "" {
		sources = []string{opts.Source}
	}

	if opts.ManifestPath != "" {
		manifest, err := s.transcripts.LoadManifest(opts.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("load manifest: %w", err)
		}
		scope.manifest = manifest
		scope.entries = manifest.Filter(opts.Source)
		sources = uniqueSources(scope.entries)
	}

	files, err := s.artifacts.List(sources)
	if err != nil {
		return nil, fmt.Errorf("list chunks files: %w", err)
	}
	if scope.manifest == nil {
		scope.files = files
		return scope, nil
	}

	byVideo := make(map[string]driven.ChunksFileInfo, len(files))
	for _, f := range files {
		byVideo[f.Source+"\x00"+f.VideoID] = f
	}
	for _, e := range scope.entries {
		f, ok := byVideo[e.Source+"\x00"+e.VideoID]
		if !ok {
			scope.missing = append(scope.missing, e.VideoID)
			continue
		}
		scope.files = append(scope.files, f)
	}
	return scope, nil
}

// Plan validates the chunks files in scope and applies the gates. The gate
// report is written even for dry runs; the store and state are untouched.
func (s *IngestService) Plan(ctx context.Context, opts domain.IngestOptions) (*domain.IngestPlan, error) {
	logger.Section("Ingest Plan")

	gatesOn := !(opts.SkipTaxonomy && opts.SkipReadiness && opts.SkipSemantic)
	if gatesOn && opts.ManifestPath == "" {
		return nil, fmt.Errorf("%w: quarantine gates need a manifest (or skip all gates)", domain.ErrInvalidInput)
	}

	scope, err := s.resolveScope(opts)
	if err != nil {
		return nil, err
	}

	tracker, err := NewTracker(s.states, domain.StageIngest)
	if err != nil {
		return nil, err
	}
	plan := &domain.IngestPlan{
		Options: opts,
		State:   tracker.State(),
		Summary: domain.ScopeSummary{Stage: domain.StageIngest, Total: len(scope.files) + len(scope.missing)},
	}
	for _, id := range scope.missing {
		plan.Skipped = append(plan.Skipped, logSkip(id, ReasonChunksMissing))
	}

	admitted := make(map[string]bool, len(scope.files))
	for _, f := range scope.files {
		admitted[f.VideoID] = true
	}
	if scope.manifest != nil {
		report, path, gateErr := s.applyGates(scope, opts)
		plan.Report = report
		plan.ReportPath = path
		if report != nil {
			plan.Summary.Quarantined = len(report.Quarantined)
			admitted = make(map[string]bool, len(report.Admitted))
			for _, id := range report.Admitted {
				admitted[id] = true
			}
		}
		if gateErr != nil {
			plan.Summary.Skipped = len(plan.Skipped)
			return plan, gateErr
		}
	}

	router := s.router()
	for _, f := range scope.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !admitted[f.VideoID] {
			continue
		}
		item, err := s.planItem(f)
		if err != nil {
			if errors.Is(err, domain.ErrInvariantViolation) {
				plan.Summary.Rejected++
			}
			plan.Skipped = append(plan.Skipped, logSkip(f.Path, err.Error()))
			continue
		}

		stored, err := s.storedRows(ctx, item.SourceKey)
		if err != nil {
			return nil, err
		}
		prev, _ := tracker.Recorded(item.SourceKey)
		expected := router.Expected(item.File)
		out := Artifact{Exists: stored == prev.Count && stored == expected.Primary+expected.Review}
		needed, why := tracker.Decide(item.SourceKey, item.Hash, f.ModTime, out, opts.Force)
		if !needed {
			plan.Summary.Unchanged++
			continue
		}
		logger.Debug("%s: %s", item.SourceKey, why)
		plan.Items = append(plan.Items, *item)
	}

	plan.Summary.ToProcess = len(plan.Items)
	plan.Summary.Skipped = len(plan.Skipped)
	logger.Info("ingest scope: %d total, %d to process, %d unchanged, %d quarantined, %d rejected, %d skipped",
		plan.Summary.Total, plan.Summary.ToProcess, plan.Summary.Unchanged,
		plan.Summary.Quarantined, plan.Summary.Rejected, plan.Summary.Skipped)
	return plan, nil
}

// planItem reads and structurally validates one chunks file.
func (s *IngestService) planItem(f driven.ChunksFileInfo) (*domain.IngestItem, error) {
	raw, file, err := s.artifacts.Read(f.Path)
	if err != nil {
		return nil, err
	}
	if err := file.ValidateStructure(s.dims); err != nil {
		return nil, err
	}
	return &domain.IngestItem{
		SourceKey: file.SourceKey,
		Source:    f.Source,
		VideoID:   f.VideoID,
		Path:      f.Path,
		Hash:      HashContent(raw, []byte(s.laneFingerprint())),
		File:      file,
	}, nil
}

func (s *IngestService) storedRows(ctx context.Context, sourceKey string) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	primary, err := s.store.CountBySource(ctx, sourceKey)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", sourceKey, err)
	}
	review, err := s.store.CountBySource(ctx, domain.ReviewKey(sourceKey))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", domain.ReviewKey(sourceKey), err)
	}
	return primary + review, nil
}

func (s *IngestService) applyGates(scope *ingestScope, opts domain.IngestOptions) (*domain.GateReport, string, error) {
	var in GateInputs
	var err error
	if !opts.SkipTaxonomy && opts.TaxonomyReportPath != "" {
		if in.Taxonomy, err = s.gateInputs.LoadTaxonomyReport(opts.TaxonomyReportPath); err != nil {
			return nil, "", fmt.Errorf("load taxonomy report: %w", err)
		}
	}
	if !opts.SkipReadiness && opts.ReadinessSummaryPath != "" {
		if in.Readiness, err = s.gateInputs.LoadReadinessSummary(opts.ReadinessSummaryPath); err != nil {
			return nil, "", fmt.Errorf("load readiness summary: %w", err)
		}
	}
	if !opts.SkipSemantic {
		if opts.JudgementsPath != "" {
			if in.Judgements, err = s.gateInputs.LoadJudgements(opts.JudgementsPath); err != nil {
				return nil, "", fmt.Errorf("load judgements: %w", err)
			}
		}
		in.Transcripts = s.loadTranscripts(scope.entries)
	}

	ref := GateScopeRef{
		Manifest:     scope.manifest.Name,
		SourceFilter: opts.Source,
		VideoIDs:     make([]string, 0, len(scope.entries)),
	}
	for _, e := range scope.entries {
		ref.VideoIDs = append(ref.VideoIDs, e.VideoID)
	}
	cfg := GateConfig{
		SkipTaxonomy:      opts.SkipTaxonomy,
		SkipReadiness:     opts.SkipReadiness,
		SkipSemantic:      opts.SkipSemantic,
		AllowReviewStatus: s.settings.AllowReviewStatus,
		Semantic:          s.settings.Semantic,
	}
	return s.gates.Apply(ref, in, cfg)
}

// loadTranscripts reads the enriched transcripts the semantic gate
// fingerprints. Unreadable transcripts make their judgements stale.
func (s *IngestService) loadTranscripts(entries []domain.ManifestEntry) map[string]*domain.Transcript {
	out := make(map[string]*domain.Transcript, len(entries))
	found, _, err := s.transcripts.Discover(entries)
	if err != nil {
		logger.Warn("discover transcripts for semantic gate: %v", err)
		return out
	}
	for _, f := range found {
		_, tr, err := s.transcripts.ReadTranscript(f.Path)
		if err != nil {
			logger.Warn("read transcript %s: %v", f.Path, err)
			continue
		}
		out[f.Entry.VideoID] = tr
	}
	return out
}

// Run replaces the stored rows of every planned source. Both lanes are
// deleted before inserting so a source never holds stale or duplicate rows.
func (s *IngestService) Run(ctx context.Context, plan *domain.IngestPlan) (*domain.IngestResult, error) {
	result := &domain.IngestResult{Summary: plan.Summary, Skipped: plan.Skipped}
	if plan.Options.DryRun {
		logger.Info("dry run: %d sources would be replaced", len(plan.Items))
		return result, nil
	}
	if len(plan.Items) == 0 {
		return result, nil
	}
	if s.store == nil {
		return result, domain.ErrStoreUnavailable
	}

	tracker := &Tracker{store: s.states, stage: domain.StageIngest, state: plan.State, now: s.now}
	if tracker.state == nil {
		tracker.state = domain.NewStageState()
	}
	router := s.router()

	logger.Section("Ingest")
	for i := range plan.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := &plan.Items[i]
		ingested, err := s.replace(ctx, router, item)
		if err != nil {
			return result, fmt.Errorf("ingest %s: %w", item.SourceKey, err)
		}
		if err := tracker.Record(item.SourceKey, item.Hash, ingested.Lanes.Primary+ingested.Lanes.Review); err != nil {
			return result, err
		}
		result.Ingested = append(result.Ingested, *ingested)
		logger.WithFields(logger.Fields{
			"source_key":     item.SourceKey,
			"deleted":        ingested.Deleted,
			"primary":        ingested.Lanes.Primary,
			"review":         ingested.Lanes.Review,
			"review_skipped": ingested.Lanes.ReviewSkipped,
		}).Info("source replaced")
	}
	return result, nil
}

func (s *IngestService) replace(ctx context.Context, router *LaneRouter, item *domain.IngestItem) (*domain.IngestedSource, error) {
	deleted := 0
	for _, key := range []string{item.SourceKey, domain.ReviewKey(item.SourceKey)} {
		n, err := s.store.DeleteBySource(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", key, err)
		}
		deleted += n
	}

	rows, counts := router.Route(item.File)
	if len(rows) > 0 {
		if err := s.store.Insert(ctx, rows); err != nil {
			return nil, fmt.Errorf("insert: %w", err)
		}
	}
	return &domain.IngestedSource{SourceKey: item.SourceKey, Deleted: deleted, Lanes: counts}, nil
}

// Verify compares stored row counts with what each chunks file in scope would
// produce under the current lane settings. It never mutates anything.
func (s *IngestService) Verify(ctx context.Context, opts domain.IngestOptions) ([]domain.VerifyEntry, error) {
	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	scope, err := s.resolveScope(opts)
	if err != nil {
		return nil, err
	}

	router := s.router()
	var entries []domain.VerifyEntry
	for _, f := range scope.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, file, err := s.artifacts.Read(f.Path)
		if err != nil {
			logger.Warn("verify: %v", err)
			continue
		}
		expected := router.Expected(file)
		primary, err := s.store.CountBySource(ctx, file.SourceKey)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", file.SourceKey, err)
		}
		review, err := s.store.CountBySource(ctx, domain.ReviewKey(file.SourceKey))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", domain.ReviewKey(file.SourceKey), err)
		}
		entries = append(entries, domain.VerifyEntry{
			SourceKey:       file.SourceKey,
			ExpectedPrimary: expected.Primary,
			StoredPrimary:   primary,
			ExpectedReview:  expected.Review,
			StoredReview:    review,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SourceKey < entries[j].SourceKey })
	return entries, nil
}

func uniqueSources(entries []domain.ManifestEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	sort.Strings(out)
	return out
}
