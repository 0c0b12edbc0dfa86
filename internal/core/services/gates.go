package services

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// GateInputs are the externally produced gate documents. A nil input for a
// gate that is not skipped aborts the run.
type GateInputs struct {
	Taxonomy   *domain.TaxonomyReport
	Readiness  *domain.ReadinessSummary
	Judgements *domain.JudgementSet

	// Transcripts supplies the enrichment content the semantic gate fingerprints.
	Transcripts map[string]*domain.Transcript
}

// GateConfig selects and tunes the gates for one run.
type GateConfig struct {
	SkipTaxonomy      bool
	SkipReadiness     bool
	SkipSemantic      bool
	AllowReviewStatus bool
	Semantic          domain.SemanticThresholds
}

// GateScopeRef identifies the manifest scope the gates run against.
type GateScopeRef struct {
	Manifest     string
	SourceFilter string
	VideoIDs     []string
}

// Gatekeeper applies the quarantine gates in order and writes one report per run.
type Gatekeeper struct {
	reports driven.ReportSink
	now     func() time.Time
	newID   func() string
}

// NewGatekeeper creates a gatekeeper writing to the given report sink.
func NewGatekeeper(reports driven.ReportSink) *Gatekeeper {
	return &Gatekeeper{
		reports: reports,
		now:     time.Now,
		newID:   func() string { return uuid.New().String()[:8] },
	}
}

// gateRun tracks the eligible set as it shrinks through the gates.
type gateRun struct {
	scope    GateScopeRef
	eligible []string
	report   *domain.GateReport
}

func (r *gateRun) quarantine(gate domain.GateName, blocked []domain.Quarantine) domain.GateResult {
	res := domain.GateResult{Gate: gate, ScopeBefore: len(r.eligible), Passed: len(blocked) == 0, Blocked: blocked}
	out := make(map[string]bool, len(blocked))
	for _, q := range blocked {
		out[q.VideoID] = true
		logger.WithFields(logger.Fields{"video_id": q.VideoID, "gate": gate, "reason": q.Reason}).Warn("quarantined")
	}
	kept := r.eligible[:0:0]
	for _, id := range r.eligible {
		if !out[id] {
			kept = append(kept, id)
		}
	}
	r.eligible = kept
	res.ScopeAfter = len(kept)
	r.report.Quarantined = append(r.report.Quarantined, blocked...)
	return res
}

func (r *gateRun) blockAll(gate domain.GateName, reason string) domain.GateResult {
	blocked := make([]domain.Quarantine, 0, len(r.eligible))
	for _, id := range r.eligible {
		blocked = append(blocked, domain.Quarantine{VideoID: id, Gate: gate, Reason: reason})
	}
	res := r.quarantine(gate, blocked)
	res.Passed = false
	res.Detail = reason
	return res
}

// Apply runs the taxonomy, readiness and semantic gates. The report is always
// written, also when a gate aborts the run; the returned error then wraps
// ErrGateFailed, ErrScopeMismatch, ErrCoverageIncomplete or ErrNotFound.
func (g *Gatekeeper) Apply(scope GateScopeRef, in GateInputs, cfg GateConfig) (*domain.GateReport, string, error) {
	eligible := append([]string(nil), scope.VideoIDs...)
	sort.Strings(eligible)

	run := &gateRun{
		scope:    scope,
		eligible: eligible,
		report: &domain.GateReport{
			RunID:        g.newID(),
			GeneratedAt:  g.now().UTC(),
			Manifest:     scope.Manifest,
			SourceFilter: scope.SourceFilter,
			ScopeBefore:  len(eligible),
			Quarantined:  []domain.Quarantine{},
		},
	}

	gateErr := g.runGates(run, in, cfg)
	if gateErr != nil {
		run.report.Aborted = true
		run.report.AbortReason = gateErr.Error()
		// An aborted run admits nothing.
		run.eligible = nil
	}

	run.report.Admitted = append([]string{}, run.eligible...)
	run.report.ScopeAfter = len(run.eligible)

	path, err := g.reports.WriteGateReport(run.report)
	if err != nil {
		return run.report, "", errors.Join(gateErr, fmt.Errorf("write gate report: %w", err))
	}
	return run.report, path, gateErr
}

func (g *Gatekeeper) runGates(run *gateRun, in GateInputs, cfg GateConfig) error {
	steps := []struct {
		name domain.GateName
		skip bool
		fn   func(*gateRun) (domain.GateResult, error)
	}{
		{domain.GateTaxonomy, cfg.SkipTaxonomy, func(r *gateRun) (domain.GateResult, error) {
			return taxonomyGate(r, in.Taxonomy)
		}},
		{domain.GateReadiness, cfg.SkipReadiness, func(r *gateRun) (domain.GateResult, error) {
			return readinessGate(r, in.Readiness, cfg.AllowReviewStatus)
		}},
		{domain.GateSemantic, cfg.SkipSemantic, func(r *gateRun) (domain.GateResult, error) {
			return semanticGate(r, in.Judgements, in.Transcripts, cfg.Semantic)
		}},
	}

	for _, step := range steps {
		if step.skip {
			logger.Warn("%s gate skipped", step.name)
			run.report.Gates = append(run.report.Gates, domain.GateResult{
				Gate: step.name, Skipped: true, Passed: true,
				ScopeBefore: len(run.eligible), ScopeAfter: len(run.eligible),
			})
			continue
		}
		res, err := step.fn(run)
		run.report.Gates = append(run.report.Gates, res)
		if err != nil {
			return fmt.Errorf("%s gate: %w", step.name, err)
		}
		logger.Info("%s gate: %d -> %d videos", step.name, res.ScopeBefore, res.ScopeAfter)
	}
	return nil
}

func checkScope(run *gateRun, got domain.GateScope) error {
	want := run.scope
	switch {
	case got.Manifest != want.Manifest:
		return fmt.Errorf("%w: manifest %q, expected %q", domain.ErrScopeMismatch, got.Manifest, want.Manifest)
	case got.SourceFilter != want.SourceFilter:
		return fmt.Errorf("%w: source filter %q, expected %q", domain.ErrScopeMismatch, got.SourceFilter, want.SourceFilter)
	case got.VideoCount != len(want.VideoIDs):
		return fmt.Errorf("%w: video count %d, expected %d", domain.ErrScopeMismatch, got.VideoCount, len(want.VideoIDs))
	}
	return nil
}

func failed(gate domain.GateName, before int, err error) (domain.GateResult, error) {
	return domain.GateResult{Gate: gate, ScopeBefore: before, ScopeAfter: 0, Detail: err.Error()}, err
}

// taxonomyGate quarantines videos that failed coverage. A failed report with
// no per-video detail blocks the entire run.
func taxonomyGate(run *gateRun, report *domain.TaxonomyReport) (domain.GateResult, error) {
	before := len(run.eligible)
	if report == nil {
		return failed(domain.GateTaxonomy, before, fmt.Errorf("%w: taxonomy report not provided", domain.ErrNotFound))
	}
	if err := checkScope(run, report.Scope); err != nil {
		return failed(domain.GateTaxonomy, before, err)
	}

	if !report.Passed && len(report.Videos) == 0 {
		reason := report.Reason
		if reason == "" {
			reason = "taxonomy report failed without per-video detail"
		}
		res := run.blockAll(domain.GateTaxonomy, reason)
		return res, fmt.Errorf("%w: %s", domain.ErrGateFailed, reason)
	}

	var blocked []domain.Quarantine
	for _, v := range report.Videos {
		if v.Passed || !slices.Contains(run.eligible, v.VideoID) {
			continue
		}
		reason := v.Reason
		if reason == "" {
			reason = "taxonomy coverage failed"
		}
		blocked = append(blocked, domain.Quarantine{VideoID: v.VideoID, Gate: domain.GateTaxonomy, Reason: reason})
	}
	return run.quarantine(domain.GateTaxonomy, blocked), nil
}

// readinessGate admits videos whose status the policy allows. Every eligible
// video must appear in the summary.
func readinessGate(run *gateRun, summary *domain.ReadinessSummary, allowReview bool) (domain.GateResult, error) {
	before := len(run.eligible)
	if summary == nil {
		return failed(domain.GateReadiness, before, fmt.Errorf("%w: readiness summary not provided", domain.ErrNotFound))
	}
	if err := checkScope(run, summary.Scope); err != nil {
		return failed(domain.GateReadiness, before, err)
	}

	allowed := AllowedStatuses(summary.Policy, allowReview)
	byID := make(map[string]domain.ReadinessVideo, len(summary.Videos))
	for _, v := range summary.Videos {
		byID[v.VideoID] = v
	}

	var missing []string
	var blocked []domain.Quarantine
	for _, id := range run.eligible {
		v, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if reason, ok := readinessVerdict(v, allowed); !ok {
			blocked = append(blocked, domain.Quarantine{VideoID: id, Gate: domain.GateReadiness, Reason: reason})
		} else if v.Status == domain.StatusReview {
			logger.WithFields(logger.Fields{"video_id": id}).Warn("admitting REVIEW status video")
		}
	}
	if len(missing) > 0 {
		return failed(domain.GateReadiness, before,
			fmt.Errorf("%w: %d videos missing from readiness summary: %v", domain.ErrCoverageIncomplete, len(missing), missing))
	}
	return run.quarantine(domain.GateReadiness, blocked), nil
}

// AllowedStatuses resolves the ingest-eligible statuses. READY is the default;
// REVIEW is only eligible when the policy lists it or the operator allows it.
func AllowedStatuses(policy domain.ReadinessPolicy, allowReview bool) map[domain.ReadinessStatus]bool {
	allowed := make(map[domain.ReadinessStatus]bool)
	for _, s := range policy.AllowIngestStatuses {
		allowed[s] = true
	}
	if len(allowed) == 0 {
		allowed[domain.StatusReady] = true
	}
	if allowReview {
		allowed[domain.StatusReview] = true
	}
	return allowed
}

func readinessVerdict(v domain.ReadinessVideo, allowed map[domain.ReadinessStatus]bool) (string, bool) {
	if !allowed[v.Status] {
		reason := fmt.Sprintf("status %s not eligible for ingest", v.Status)
		if v.ReasonCode != "" {
			reason += ": " + v.ReasonCode
		}
		return reason, false
	}
	if v.ReadyForIngest != nil && !*v.ReadyForIngest {
		reason := "ready_for_ingest=false"
		if v.ReasonCode != "" {
			reason += ": " + v.ReasonCode
		}
		return reason, false
	}
	return "", true
}

// semanticGate classifies judgements as fresh or stale and enforces the batch
// thresholds over fresh judgements. Any violation blocks the whole batch.
func semanticGate(
	run *gateRun, set *domain.JudgementSet, transcripts map[string]*domain.Transcript, th domain.SemanticThresholds,
) (domain.GateResult, error) {
	before := len(run.eligible)
	if set == nil {
		return failed(domain.GateSemantic, before, fmt.Errorf("%w: judgements not provided", domain.ErrNotFound))
	}

	stats := SemanticStatsFor(set.Judgements, run.eligible, transcripts)
	violations := semanticViolations(stats, th)
	if len(violations) > 0 {
		reason := fmt.Sprintf("semantic thresholds violated: %v", violations)
		res := run.blockAll(domain.GateSemantic, reason)
		res.Semantic = &stats
		return res, fmt.Errorf("%w: %s", domain.ErrGateFailed, reason)
	}

	res := run.quarantine(domain.GateSemantic, nil)
	res.Semantic = &stats
	return res, nil
}

// SemanticStatsFor summarises the in-scope judgements.
func SemanticStatsFor(judgements []domain.Judgement, scope []string, transcripts map[string]*domain.Transcript) domain.SemanticStats {
	inScope := make(map[string]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}

	var stats domain.SemanticStats
	var sum float64
	var major, halluc int
	for _, j := range judgements {
		if !inScope[j.VideoID] {
			continue
		}
		if Fingerprint(transcripts[j.VideoID], j.ConversationID) != j.Fingerprint {
			stats.Stale++
			continue
		}
		stats.Fresh++
		sum += j.Score
		if j.MajorError {
			major++
		}
		if j.Hallucination {
			halluc++
		}
	}
	if stats.Fresh > 0 {
		n := float64(stats.Fresh)
		stats.MeanScore = sum / n
		stats.MajorErrorRate = float64(major) / n
		stats.HallucinationRate = float64(halluc) / n
	}
	return stats
}

func semanticViolations(s domain.SemanticStats, th domain.SemanticThresholds) []string {
	var v []string
	if s.Fresh < th.MinFreshJudgements {
		v = append(v, fmt.Sprintf("fresh judgements %d < %d", s.Fresh, th.MinFreshJudgements))
	}
	if s.Fresh > 0 && s.MeanScore < th.MinMeanScore {
		v = append(v, fmt.Sprintf("mean score %.3f < %.3f", s.MeanScore, th.MinMeanScore))
	}
	if s.MajorErrorRate > th.MaxMajorErrorRate {
		v = append(v, fmt.Sprintf("major error rate %.3f > %.3f", s.MajorErrorRate, th.MaxMajorErrorRate))
	}
	if s.HallucinationRate > th.MaxHallucinationRate {
		v = append(v, fmt.Sprintf("hallucination rate %.3f > %.3f", s.HallucinationRate, th.MaxHallucinationRate))
	}
	return v
}
