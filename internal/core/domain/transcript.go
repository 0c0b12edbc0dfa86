package domain

import "strings"

// EnrichmentType identifies the kind of analysis an Enrichment carries.
type EnrichmentType string

// Available enrichment types.
const (
	// EnrichmentApproach covers a two-party interaction (a conversation).
	EnrichmentApproach EnrichmentType = "approach"

	// EnrichmentCommentary covers a block of monologue between or around conversations.
	EnrichmentCommentary EnrichmentType = "commentary"

	// EnrichmentSection covers a titled section of a talking-head video.
	EnrichmentSection EnrichmentType = "section"
)

// IsValid returns true if the enrichment type is recognised.
func (t EnrichmentType) IsValid() bool {
	switch t {
	case EnrichmentApproach, EnrichmentCommentary, EnrichmentSection:
		return true
	default:
		return false
	}
}

// ConfidenceTier is the upstream transcription confidence bucket of a segment.
type ConfidenceTier string

// Confidence tiers.
const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// Severity grades a transcript artifact.
type Severity string

// Artifact severities, ordered low < medium < high.
const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so the worst one can be picked.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Worse returns whichever of s and other ranks higher.
func (s Severity) Worse(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// Segment is the atomic transcript unit. Segments are immutable once produced upstream.
type Segment struct {
	ID    int
	Start float64
	End   float64
	Text  string

	SpeakerID         string
	SpeakerRole       string
	SpeakerConfidence *float64

	// ConversationID is 0 for commentary / non-conversation segments.
	ConversationID int

	// Phase is the interaction phase label (open, hook, close, ...), empty for commentary.
	Phase string

	IsTeaser             bool
	ConfidenceTier       ConfidenceTier
	ContaminationSources []string
}

// IsCommentary reports whether the segment sits outside any conversation.
func (s Segment) IsCommentary() bool {
	return s.ConversationID == 0
}

// HasAmbiguousSpeaker reports whether diarisation could not attribute the segment cleanly.
func (s Segment) HasAmbiguousSpeaker() bool {
	switch strings.ToLower(strings.TrimSpace(s.SpeakerRole)) {
	case "ambiguous", "collapsed", "unknown":
		return true
	default:
		return false
	}
}

// SpeakerLabel is the display label used in "Speaker: text" lines.
func (s Segment) SpeakerLabel() string {
	role := strings.TrimSpace(s.SpeakerRole)
	if role != "" && !s.HasAmbiguousSpeaker() {
		return strings.ToUpper(role[:1]) + role[1:]
	}
	if s.SpeakerID != "" {
		return s.SpeakerID
	}
	return "Speaker"
}

// Enrichment is an analysis record over a contiguous segment id range.
type Enrichment struct {
	Type EnrichmentType

	// ConversationID is set for approach enrichments.
	ConversationID int

	// BlockID is set for commentary enrichments.
	BlockID int

	// SectionID and Title are set for section enrichments.
	SectionID int
	Title     string

	// StartSegment and EndSegment bound the covered segment ids (inclusive).
	StartSegment int
	EndSegment   int

	Description     string
	Techniques      []string
	Topics          []string
	PhaseConfidence map[string]float64
}

// Covers reports whether the enrichment covers the given segment id.
func (e Enrichment) Covers(segmentID int) bool {
	return segmentID >= e.StartSegment && segmentID <= e.EndSegment
}

// ArtifactFlag is a transcript artifact detected on a segment.
type ArtifactFlag struct {
	SegmentID int
	Type      string
	Severity  Severity
}

// LowQualityFlag marks a segment whose ASR output is unreliable.
type LowQualityFlag struct {
	SegmentID int
	Reason    string
}

// QualityReport is the flagged-segment section of an enriched transcript.
type QualityReport struct {
	LowQualitySegments  []LowQualityFlag
	TranscriptArtifacts []ArtifactFlag
	DamagedSegmentIDs   []int
}

// VideoType distinguishes field footage from talking-head content.
type VideoType string

// Video types.
const (
	VideoTypeInfield     VideoType = "infield"
	VideoTypeTalkingHead VideoType = "talking_head"
	VideoTypeMixed       VideoType = "mixed"
)

// Transcript is the canonical enriched transcript for one video.
type Transcript struct {
	VideoID   string
	Channel   string
	Title     string
	VideoType VideoType

	Segments    []Segment
	Enrichments []Enrichment
	Quality     QualityReport

	// SchemaVersion is the version the file was written with, before adaptation.
	SchemaVersion int
}

// SegmentByID returns the segment with the given id.
func (t *Transcript) SegmentByID(id int) (Segment, bool) {
	for i := range t.Segments {
		if t.Segments[i].ID == id {
			return t.Segments[i], true
		}
	}
	return Segment{}, false
}

// SegmentsIn returns the segments covered by an enrichment, in id order.
func (t *Transcript) SegmentsIn(e Enrichment) []Segment {
	var out []Segment
	for _, s := range t.Segments {
		if e.Covers(s.ID) {
			out = append(out, s)
		}
	}
	return out
}
