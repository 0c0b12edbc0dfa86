package domain

import "time"

// GateName identifies a quarantine gate.
type GateName string

// Quarantine gates in the order they are applied.
const (
	GateTaxonomy  GateName = "taxonomy"
	GateReadiness GateName = "readiness"
	GateSemantic  GateName = "semantic"
)

// ReadinessStatus is the per-video verdict of the readiness summary.
type ReadinessStatus string

// Readiness statuses.
const (
	StatusReady   ReadinessStatus = "READY"
	StatusReview  ReadinessStatus = "REVIEW"
	StatusBlocked ReadinessStatus = "BLOCKED"
)

// GateScope is the manifest scope a gate input claims to describe.
type GateScope struct {
	Manifest     string `json:"manifest" validate:"required"`
	SourceFilter string `json:"source_filter"`
	VideoCount   int    `json:"video_count" validate:"gte=0"`
}

// TaxonomyVideo is the per-video result of the external coverage report.
type TaxonomyVideo struct {
	VideoID string `json:"video_id" validate:"required"`
	Passed  bool   `json:"passed"`
	Reason  string `json:"reason,omitempty"`
}

// TaxonomyReport is the externally produced taxonomy coverage report.
type TaxonomyReport struct {
	Scope  GateScope       `json:"scope" validate:"required"`
	Passed bool            `json:"passed"`
	Reason string          `json:"reason,omitempty"`
	Videos []TaxonomyVideo `json:"videos" validate:"dive"`
}

// ReadinessPolicy lists the statuses eligible for ingest.
type ReadinessPolicy struct {
	AllowIngestStatuses []ReadinessStatus `json:"allow_ingest_statuses,omitempty"`
}

// ReadinessVideo is one video's readiness verdict.
type ReadinessVideo struct {
	VideoID        string          `json:"video_id" validate:"required"`
	Status         ReadinessStatus `json:"status" validate:"required,oneof=READY REVIEW BLOCKED"`
	ReadyForIngest *bool           `json:"ready_for_ingest,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	Sources        []string        `json:"sources,omitempty"`
	Reports        []string        `json:"reports,omitempty"`
}

// ReadinessSummary is the per-video readiness input of the readiness gate.
type ReadinessSummary struct {
	Policy ReadinessPolicy  `json:"policy"`
	Scope  GateScope        `json:"scope" validate:"required"`
	Videos []ReadinessVideo `json:"videos" validate:"dive"`
}

// Judgement is a recorded semantic quality judgement over one conversation.
type Judgement struct {
	VideoID        string  `json:"video_id" validate:"required"`
	ConversationID int     `json:"conversation_id"`
	Fingerprint    string  `json:"fingerprint" validate:"required"`
	Score          float64 `json:"score" validate:"gte=0,lte=1"`
	MajorError     bool    `json:"major_error"`
	Hallucination  bool    `json:"hallucination"`
	JudgedAt       string  `json:"judged_at,omitempty"`
}

// JudgementSet is the semantic gate input file.
type JudgementSet struct {
	Judgements []Judgement `json:"judgements" validate:"dive"`
}

// SemanticThresholds configures the batch-level semantic gate.
type SemanticThresholds struct {
	MinFreshJudgements   int     `json:"min_fresh_judgements"`
	MinMeanScore         float64 `json:"min_mean_score"`
	MaxMajorErrorRate    float64 `json:"max_major_error_rate"`
	MaxHallucinationRate float64 `json:"max_hallucination_rate"`
}

// SemanticStats summarises fresh judgements for the report.
type SemanticStats struct {
	Fresh             int     `json:"fresh"`
	Stale             int     `json:"stale"`
	MeanScore         float64 `json:"mean_score"`
	MajorErrorRate    float64 `json:"major_error_rate"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// Quarantine records one excluded video and why.
type Quarantine struct {
	VideoID string   `json:"video_id"`
	Gate    GateName `json:"gate"`
	Reason  string   `json:"reason"`
}

// GateResult is the outcome of one gate.
type GateResult struct {
	Gate        GateName       `json:"gate"`
	Skipped     bool           `json:"skipped"`
	Passed      bool           `json:"passed"`
	ScopeBefore int            `json:"scope_before"`
	ScopeAfter  int            `json:"scope_after"`
	Blocked     []Quarantine   `json:"blocked,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Semantic    *SemanticStats `json:"semantic,omitempty"`
}

// GateReport describes which videos were admitted or quarantined in one run.
// One report is written per run and never overwritten.
type GateReport struct {
	RunID        string       `json:"run_id"`
	GeneratedAt  time.Time    `json:"generated_at"`
	Manifest     string       `json:"manifest"`
	SourceFilter string       `json:"source_filter,omitempty"`
	ScopeBefore  int          `json:"scope_before"`
	ScopeAfter   int          `json:"scope_after"`
	Gates        []GateResult `json:"gates"`
	Admitted     []string     `json:"admitted"`
	Quarantined  []Quarantine `json:"quarantined"`
	Aborted      bool         `json:"aborted"`
	AbortReason  string       `json:"abort_reason,omitempty"`
}
