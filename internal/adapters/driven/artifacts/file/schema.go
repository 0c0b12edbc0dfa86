package file

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Enriched transcript schema versions.
const (
	SchemaLegacy  = 1
	SchemaCurrent = 2
)

// wireTranscript accepts both schema versions. Legacy field names sit next
// to their canonical replacements and are resolved by the adapter.
type wireTranscript struct {
	Version     int              `json:"version" validate:"gte=0,lte=2"`
	VideoID     string           `json:"video_id"`
	Channel     string           `json:"channel"`
	Title       string           `json:"title"`
	VideoType   string           `json:"video_type" validate:"omitempty,oneof=infield talking_head mixed"`
	Segments    []wireSegment    `json:"segments" validate:"required,dive"`
	Enrichments []wireEnrichment `json:"enrichments" validate:"dive"`
	Quality     wireQuality      `json:"quality"`
}

type wireSegment struct {
	ID                int      `json:"id" validate:"gte=0"`
	Start             float64  `json:"start"`
	End               float64  `json:"end"`
	Text              string   `json:"text"`
	SpeakerID         string   `json:"speaker_id"`
	SpeakerRole       string   `json:"speaker_role"`
	SpeakerConfidence *float64 `json:"speaker_confidence" validate:"omitempty,gte=0,lte=1"`
	ConversationID    int      `json:"conversation_id" validate:"gte=0"`
	Phase             string   `json:"phase"`
	IsTeaser          bool     `json:"is_teaser"`
	ConfidenceTier    string   `json:"confidence_tier" validate:"omitempty,oneof=high medium low"`
	Contamination     []string `json:"contamination_sources"`

	// v1 names.
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Speaker    string  `json:"speaker"`
	ApproachID int     `json:"approach_id" validate:"gte=0"`
}

type wireEnrichment struct {
	Type            string             `json:"type" validate:"required,oneof=approach commentary section"`
	ConversationID  int                `json:"conversation_id"`
	BlockID         int                `json:"block_id"`
	SectionID       int                `json:"section_id"`
	Title           string             `json:"title"`
	StartSegment    *int               `json:"start_segment"`
	EndSegment      *int               `json:"end_segment"`
	Description     string             `json:"description"`
	Techniques      []string           `json:"techniques"`
	Topics          []string           `json:"topics"`
	PhaseConfidence map[string]float64 `json:"phase_confidence"`

	// v1 names.
	ApproachID int                `json:"approach_id"`
	Start      *int               `json:"start"`
	End        *int               `json:"end"`
	Summary    string             `json:"summary"`
	Phases     map[string]float64 `json:"phases"`
}

type wireQuality struct {
	LowQualitySegments  []wireLowQuality `json:"low_quality_segments"`
	TranscriptArtifacts []wireArtifact   `json:"transcript_artifacts" validate:"dive"`
	DamagedSegmentIDs   []int            `json:"damaged_segment_ids"`
}

type wireLowQuality struct {
	SegmentID int    `json:"segment_id"`
	Reason    string `json:"reason"`
}

type wireArtifact struct {
	SegmentID int    `json:"segment_id"`
	Type      string `json:"type"`
	Severity  string `json:"severity" validate:"omitempty,oneof=low medium high"`
}

// DecodeTranscript decodes an enriched transcript of either schema version
// into the canonical transcript. Failures wrap domain.ErrMalformedInput.
func DecodeTranscript(raw []byte) (*domain.Transcript, error) {
	var w wireTranscript
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	if err := validate.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	if w.Version == 0 {
		w.Version = SchemaLegacy
	}

	tr := &domain.Transcript{
		VideoID:       w.VideoID,
		Channel:       w.Channel,
		Title:         w.Title,
		VideoType:     domain.VideoType(w.VideoType),
		SchemaVersion: w.Version,
	}
	if tr.VideoType == "" {
		tr.VideoType = domain.VideoTypeInfield
	}

	tr.Segments = make([]domain.Segment, 0, len(w.Segments))
	for _, s := range w.Segments {
		tr.Segments = append(tr.Segments, adaptSegment(s))
	}
	for i, e := range w.Enrichments {
		en, err := adaptEnrichment(e)
		if err != nil {
			return nil, fmt.Errorf("%w: enrichment %d: %v", domain.ErrMalformedInput, i, err)
		}
		tr.Enrichments = append(tr.Enrichments, en)
	}

	for _, q := range w.Quality.LowQualitySegments {
		tr.Quality.LowQualitySegments = append(tr.Quality.LowQualitySegments, domain.LowQualityFlag{
			SegmentID: q.SegmentID,
			Reason:    q.Reason,
		})
	}
	for _, a := range w.Quality.TranscriptArtifacts {
		tr.Quality.TranscriptArtifacts = append(tr.Quality.TranscriptArtifacts, domain.ArtifactFlag{
			SegmentID: a.SegmentID,
			Type:      a.Type,
			Severity:  domain.Severity(a.Severity),
		})
	}
	tr.Quality.DamagedSegmentIDs = w.Quality.DamagedSegmentIDs
	return tr, nil
}

func adaptSegment(s wireSegment) domain.Segment {
	return domain.Segment{
		ID:                   s.ID,
		Start:                firstNonZero(s.Start, s.StartTime),
		End:                  firstNonZero(s.End, s.EndTime),
		Text:                 s.Text,
		SpeakerID:            firstNonZero(s.SpeakerID, s.Speaker),
		SpeakerRole:          s.SpeakerRole,
		SpeakerConfidence:    s.SpeakerConfidence,
		ConversationID:       firstNonZero(s.ConversationID, s.ApproachID),
		Phase:                s.Phase,
		IsTeaser:             s.IsTeaser,
		ConfidenceTier:       domain.ConfidenceTier(s.ConfidenceTier),
		ContaminationSources: s.Contamination,
	}
}

func adaptEnrichment(e wireEnrichment) (domain.Enrichment, error) {
	start, end := e.StartSegment, e.EndSegment
	if start == nil {
		start = e.Start
	}
	if end == nil {
		end = e.End
	}
	if start == nil || end == nil {
		return domain.Enrichment{}, errors.New("missing segment range")
	}
	if *end < *start {
		return domain.Enrichment{}, fmt.Errorf("segment range %d..%d is reversed", *start, *end)
	}

	phases := e.PhaseConfidence
	if phases == nil {
		phases = e.Phases
	}
	return domain.Enrichment{
		Type:            domain.EnrichmentType(e.Type),
		ConversationID:  firstNonZero(e.ConversationID, e.ApproachID),
		BlockID:         e.BlockID,
		SectionID:       e.SectionID,
		Title:           e.Title,
		StartSegment:    *start,
		EndSegment:      *end,
		Description:     firstNonZero(e.Description, e.Summary),
		Techniques:      e.Techniques,
		Topics:          e.Topics,
		PhaseConfidence: phases,
	}, nil
}

func firstNonZero[T comparable](canonical, legacy T) T {
	var zero T
	if canonical != zero {
		return canonical
	}
	return legacy
}
