package domain

import "time"

// SkippedItem is a source excluded from a run, with the counted reason.
type SkippedItem struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// ScopeSummary is printed before any mutating work so operators can abort.
type ScopeSummary struct {
	Stage       Stage `json:"stage"`
	Total       int   `json:"total"`
	Unchanged   int   `json:"unchanged"`
	ToProcess   int   `json:"to_process"`
	Skipped     int   `json:"skipped"`
	Quarantined int   `json:"quarantined"`
	Rejected    int   `json:"rejected"`
}

// BuildOptions configures one build run.
type BuildOptions struct {
	Source       string
	ManifestPath string
	DryRun       bool
	Force        bool

	// AllowUnstableKeys proceeds with a folder-derived key when the transcript
	// carries no usable identity.
	AllowUnstableKeys bool
}

// BuildItem is one video scheduled for chunking.
type BuildItem struct {
	SourceKey  string
	Source     string
	Folder     string
	VideoID    string
	Path       string
	Hash       string
	ModTime    time.Time
	Transcript *Transcript
}

// BuildPlan is the resolved scope of a build run.
type BuildPlan struct {
	Options BuildOptions
	Items   []BuildItem
	Skipped []SkippedItem
	Summary ScopeSummary
	State   *StageState
}

// BuiltSource reports one written chunks file.
type BuiltSource struct {
	SourceKey string `json:"source_key"`
	Path      string `json:"path"`
	Chunks    int    `json:"chunks"`
	PreFilter int    `json:"pre_filter"`
	Dropped   int    `json:"dropped"`
}

// BuildResult is the outcome of a build run.
type BuildResult struct {
	Summary ScopeSummary  `json:"summary"`
	Built   []BuiltSource `json:"built"`
	Skipped []SkippedItem `json:"skipped"`
}

// IngestOptions configures one ingest run.
type IngestOptions struct {
	Source       string
	ManifestPath string
	DryRun       bool
	Force        bool

	SkipTaxonomy  bool
	SkipReadiness bool
	SkipSemantic  bool

	TaxonomyReportPath   string
	ReadinessSummaryPath string
	JudgementsPath       string
}

// IngestItem is one chunks file admitted by the gates.
type IngestItem struct {
	SourceKey string
	Source    string
	VideoID   string
	Path      string

	// Hash covers the file bytes plus the lane settings in effect.
	Hash string
	File *ChunksFile
}

// IngestPlan is the resolved, gated scope of an ingest run.
type IngestPlan struct {
	Options    IngestOptions
	Items      []IngestItem
	Skipped    []SkippedItem
	Summary    ScopeSummary
	Report     *GateReport
	ReportPath string
	State      *StageState
}

// LaneCounts is how a source's chunks were routed.
type LaneCounts struct {
	Primary       int `json:"primary"`
	Review        int `json:"review"`
	ReviewSkipped int `json:"review_skipped"`
}

// IngestedSource reports one replaced sourceKey.
type IngestedSource struct {
	SourceKey string     `json:"source_key"`
	Deleted   int        `json:"deleted"`
	Lanes     LaneCounts `json:"lanes"`
}

// IngestResult is the outcome of an ingest run.
type IngestResult struct {
	Summary  ScopeSummary     `json:"summary"`
	Ingested []IngestedSource `json:"ingested"`
	Skipped  []SkippedItem    `json:"skipped"`
}

// VerifyEntry compares stored row counts with what a chunks file would produce.
type VerifyEntry struct {
	SourceKey       string `json:"source_key"`
	ExpectedPrimary int    `json:"expected_primary"`
	StoredPrimary   int    `json:"stored_primary"`
	ExpectedReview  int    `json:"expected_review"`
	StoredReview    int    `json:"stored_review"`
}

// OK reports whether the stored counts match.
func (v VerifyEntry) OK() bool {
	return v.ExpectedPrimary == v.StoredPrimary && v.ExpectedReview == v.StoredReview
}
