package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
)

type mockSettingsService struct {
	settings    domain.Settings
	validateErr error
	pingErr     error
	saved       *domain.Settings
}

func (m *mockSettingsService) Get() (*domain.Settings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.Settings) error {
	s := *settings
	m.saved = &s
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.Settings { return domain.DefaultSettings() }

func (m *mockSettingsService) Validate(*domain.Settings) error { return m.validateErr }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.pingErr }

type mockBuildService struct {
	items   int
	skipped []domain.SkippedItem
	runErr  error
	plans   []domain.BuildOptions
	runs    int
}

func (m *mockBuildService) Plan(_ context.Context, opts domain.BuildOptions) (*domain.BuildPlan, error) {
	m.plans = append(m.plans, opts)
	plan := &domain.BuildPlan{Options: opts, Skipped: m.skipped}
	for i := 0; i < m.items; i++ {
		plan.Items = append(plan.Items, domain.BuildItem{SourceKey: "coachA/abc123def"})
	}
	plan.Summary = domain.ScopeSummary{
		Stage: domain.StageChunk, Total: m.items + len(m.skipped), ToProcess: m.items, Skipped: len(m.skipped),
	}
	return plan, nil
}

func (m *mockBuildService) Run(_ context.Context, plan *domain.BuildPlan) (*domain.BuildResult, error) {
	m.runs++
	result := &domain.BuildResult{Summary: plan.Summary}
	if m.runErr != nil {
		return result, m.runErr
	}
	for _, it := range plan.Items {
		result.Built = append(result.Built, domain.BuiltSource{SourceKey: it.SourceKey, Chunks: 4, PreFilter: 5, Dropped: 1})
	}
	return result, nil
}

type mockIngestService struct {
	items   int
	planErr error
	verify  []domain.VerifyEntry
	plans   []domain.IngestOptions
	runs    int
}

func (m *mockIngestService) Plan(_ context.Context, opts domain.IngestOptions) (*domain.IngestPlan, error) {
	m.plans = append(m.plans, opts)
	plan := &domain.IngestPlan{Options: opts, ReportPath: "reports/batch.json", Report: &domain.GateReport{}}
	if m.planErr != nil {
		plan.Report.Aborted = true
		plan.Report.AbortReason = "readiness summary missing"
		return plan, m.planErr
	}
	for i := 0; i < m.items; i++ {
		plan.Items = append(plan.Items, domain.IngestItem{SourceKey: "coachA/abc123def"})
	}
	plan.Summary = domain.ScopeSummary{Stage: domain.StageIngest, Total: m.items, ToProcess: m.items}
	return plan, nil
}

func (m *mockIngestService) Run(_ context.Context, plan *domain.IngestPlan) (*domain.IngestResult, error) {
	m.runs++
	result := &domain.IngestResult{Summary: plan.Summary}
	for _, it := range plan.Items {
		result.Ingested = append(result.Ingested, domain.IngestedSource{
			SourceKey: it.SourceKey, Deleted: 2, Lanes: domain.LaneCounts{Primary: 3, ReviewSkipped: 1},
		})
	}
	return result, nil
}

func (m *mockIngestService) Verify(_ context.Context, opts domain.IngestOptions) ([]domain.VerifyEntry, error) {
	m.plans = append(m.plans, opts)
	return m.verify, nil
}

type mockRetriever struct {
	question string
	opts     domain.RetrievalOptions
}

func (m *mockRetriever) Retrieve(_ context.Context, question string, opts domain.RetrievalOptions) (*domain.RetrievalResult, error) {
	m.question = question
	m.opts = opts
	return &domain.RetrievalResult{
		Plan:           domain.QueryPlan{Question: question, Intent: domain.IntentTechnique},
		CandidateCount: 7,
		Passages: []domain.StitchedPassage{{
			RankedPassage: domain.RankedPassage{
				Chunk: domain.RetrievedChunk{
					ID:        "row-1",
					SourceKey: "coachA/abc123def",
					Metadata: domain.ChunkMetadata{
						BaseMetadata: domain.BaseMetadata{VideoID: "abc123def", Speaker: "Coach A", Confidence: 0.9},
						Variant:      domain.CommentaryMetadata{BlockID: 1},
					},
					Similarity: 0.82,
				},
				Score: domain.ScoreBreakdown{Vector: 0.85, Overlap: 0.1, Total: 0.95},
			},
			Text: "Open with a situational comment.",
		}},
		Confidence: domain.AnswerConfidence{RetrievalStrength: 0.8, SourceConsistency: 1, PolicyCompliance: 1, Score: 0.9},
	}, nil
}

func (m *mockRetriever) AnswerConfidence([]domain.StitchedPassage, string) domain.AnswerConfidence {
	return domain.AnswerConfidence{}
}

// mockFactory hands out the mocks and records the settings each service was
// built from.
type mockFactory struct {
	settings  *mockSettingsService
	build     *mockBuildService
	ingest    *mockIngestService
	retriever *mockRetriever
	watch     WatchFunc

	built  domain.Settings
	closed int
}

func newMockFactory() *mockFactory {
	return &mockFactory{
		settings:  &mockSettingsService{settings: domain.DefaultSettings()},
		build:     &mockBuildService{items: 1},
		ingest:    &mockIngestService{items: 1},
		retriever: &mockRetriever{},
	}
}

func (f *mockFactory) Settings(string) (driving.SettingsService, error) { return f.settings, nil }

func (f *mockFactory) closer() func() error {
	return func() error {
		f.closed++
		return nil
	}
}

func (f *mockFactory) BuildService(s domain.Settings) (driving.BuildService, func() error, error) {
	f.built = s
	return f.build, f.closer(), nil
}

func (f *mockFactory) IngestService(s domain.Settings) (driving.IngestService, func() error, error) {
	f.built = s
	return f.ingest, f.closer(), nil
}

func (f *mockFactory) Retriever(s domain.Settings) (driving.Retriever, func() error, error) {
	f.built = s
	return f.retriever, f.closer(), nil
}

func (f *mockFactory) Watch(domain.Settings) WatchFunc { return f.watch }

// setupFactory installs a mock factory and a non-interactive stdin.
func setupFactory(t *testing.T) *mockFactory {
	t.Helper()
	f := newMockFactory()
	prevFactory, prevTerminal := factory, stdinIsTerminal
	factory = f
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() {
		factory = prevFactory
		stdinIsTerminal = prevTerminal
	})
	return f
}

// execute runs the command tree and resets every flag afterwards so tests do
// not leak values into each other.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
