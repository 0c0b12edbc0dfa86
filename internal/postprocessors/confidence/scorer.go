// Package confidence scores chunks with a deterministic multiplicative
// heuristic and filters them against a confidence floor.
package confidence

import (
	"context"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Multipliers applied by the scorer. The score starts at 1.0.
const (
	PhaseFloor           = 0.3
	AmbiguousSpeaker     = 0.85
	LowSpeakerConfidence = 0.9
	SpeakerConfidenceMin = 0.7
	TierLow              = 0.70
	TierMedium           = 0.90
	Contamination        = 0.82
	ArtifactHigh         = 0.70
	ArtifactMedium       = 0.85
	ArtifactLow          = 0.97
	LowQualityASR        = 0.85
	DamagedSegment       = 0.82
	SummaryScore         = 1.0
)

// Scorer attaches a [0,1] confidence score and quality signals to each chunk.
// It implements the PostProcessor interface.
type Scorer struct{}

// NewScorer creates a confidence scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Name returns the processor name.
func (s *Scorer) Name() string {
	return "confidence"
}

// Process scores every chunk in place.
func (s *Scorer) Process(_ context.Context, doc *domain.BuildDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	quality := doc.Quality
	if quality == nil {
		quality = domain.BuildQualityIndex(doc.Transcript)
	}
	segments := indexSegments(doc.Transcript)

	for i := range chunks {
		md := &chunks[i].Metadata
		md.Quality = quality.Signals(md.SegmentIDs, md.Quality.MaskedSegmentIDs)
		if md.IsSummary() {
			md.Confidence = SummaryScore
			continue
		}
		md.Confidence = Score(md, segments, phaseConfidence(doc.Transcript, md))
	}
	return chunks, nil
}

// Score computes the multiplicative confidence of one chunk. phaseConf is
// negative when the enrichment records no confidence for the chunk's phase.
func Score(md *domain.ChunkMetadata, segments map[int]domain.Segment, phaseConf float64) float64 {
	score := 1.0

	if phaseConf >= 0 {
		score *= max(PhaseFloor, phaseConf)
	}

	var ambiguous, lowSpeaker, low, medium, contaminated bool
	for _, id := range md.SegmentIDs {
		seg, ok := segments[id]
		if !ok {
			continue
		}
		if seg.HasAmbiguousSpeaker() {
			ambiguous = true
		}
		if seg.SpeakerConfidence != nil && *seg.SpeakerConfidence < SpeakerConfidenceMin {
			lowSpeaker = true
		}
		switch domain.ConfidenceTier(strings.ToLower(string(seg.ConfidenceTier))) {
		case domain.TierLow:
			low = true
		case domain.TierMedium:
			medium = true
		}
		if len(seg.ContaminationSources) > 0 {
			contaminated = true
		}
	}

	if ambiguous {
		score *= AmbiguousSpeaker
	}
	if lowSpeaker {
		score *= LowSpeakerConfidence
	}
	if low {
		score *= TierLow
	} else if medium {
		score *= TierMedium
	}
	if contaminated {
		score *= Contamination
	}

	switch md.Quality.WorstArtifactSeverity {
	case domain.SeverityHigh:
		score *= ArtifactHigh
	case domain.SeverityMedium:
		score *= ArtifactMedium
	case domain.SeverityLow:
		score *= ArtifactLow
	}
	if md.Quality.LowQualityCount > 0 {
		score *= LowQualityASR
	}
	if len(md.Quality.DamagedSegmentIDs) > 0 {
		score *= DamagedSegment
	}

	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func indexSegments(tr *domain.Transcript) map[int]domain.Segment {
	out := make(map[int]domain.Segment)
	if tr == nil {
		return out
	}
	for _, s := range tr.Segments {
		out[s.ID] = s
	}
	return out
}

// phaseConfidence looks up the approach enrichment's confidence for the
// chunk's phase, returning -1 when none is recorded.
func phaseConfidence(tr *domain.Transcript, md *domain.ChunkMetadata) float64 {
	im, ok := md.Interaction()
	if !ok || tr == nil || im.Phase == "" {
		return -1
	}
	for _, e := range tr.Enrichments {
		if e.Type != domain.EnrichmentApproach || e.ConversationID != im.ConversationID {
			continue
		}
		if pc, ok := e.PhaseConfidence[im.Phase]; ok {
			return pc
		}
	}
	return -1
}
