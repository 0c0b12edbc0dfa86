package confidence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/postprocessors/chunker"
)

func ptr(f float64) *float64 { return &f }

func phasedTranscript() *domain.Transcript {
	phases := []string{"open", "open", "open", "hook", "hook", "hook", "hook", "close", "close", "close"}
	segs := make([]domain.Segment, 0, len(phases))
	for i, ph := range phases {
		segs = append(segs, domain.Segment{
			ID:             i + 1,
			Text:           fmt.Sprintf("turn %d", i+1),
			SpeakerRole:    "coach",
			ConversationID: 1,
			Phase:          ph,
		})
	}
	return &domain.Transcript{
		VideoID:  "abcdef123",
		Channel:  "chan",
		Segments: segs,
		Enrichments: []domain.Enrichment{{
			Type:           domain.EnrichmentApproach,
			ConversationID: 1,
			StartSegment:   1,
			EndSegment:     10,
			Description:    "An approach in three phases.",
		}},
	}
}

func scored(t *testing.T, tr *domain.Transcript) []domain.Chunk {
	t.Helper()
	doc := &domain.BuildDocument{Transcript: tr, Quality: domain.BuildQualityIndex(tr)}
	chunks, err := chunker.New().Process(context.Background(), doc, nil)
	require.NoError(t, err)
	chunks, err = NewScorer().Process(context.Background(), doc, chunks)
	require.NoError(t, err)
	return chunks
}

func TestScorer_LowTierInHookGroup(t *testing.T) {
	clean := scored(t, phasedTranscript())

	flagged := phasedTranscript()
	flagged.Segments[4].ConfidenceTier = domain.TierLow
	dirty := scored(t, flagged)

	require.Len(t, dirty, 4)
	assert.Equal(t, 3, countContent(dirty))

	assert.Equal(t, 1.0, clean[1].Confidence())
	assert.LessOrEqual(t, dirty[1].Confidence(), 0.70*clean[1].Confidence()+1e-12)
	assert.Equal(t, clean[0].Confidence(), dirty[0].Confidence())
	assert.Equal(t, clean[2].Confidence(), dirty[2].Confidence())
}

func countContent(chunks []domain.Chunk) int {
	n := 0
	for _, c := range chunks {
		if !c.Metadata.IsSummary() {
			n++
		}
	}
	return n
}

func TestScorer_Multipliers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tr *domain.Transcript)
		want   float64
	}{
		{"clean", func(*domain.Transcript) {}, 1.0},
		{"ambiguous speaker", func(tr *domain.Transcript) { tr.Segments[0].SpeakerRole = "collapsed" }, 0.85},
		{"low speaker confidence", func(tr *domain.Transcript) { tr.Segments[0].SpeakerConfidence = ptr(0.5) }, 0.9},
		{"medium tier", func(tr *domain.Transcript) { tr.Segments[0].ConfidenceTier = domain.TierMedium }, 0.9},
		{"low beats medium", func(tr *domain.Transcript) {
			tr.Segments[0].ConfidenceTier = domain.TierMedium
			tr.Segments[1].ConfidenceTier = domain.TierLow
		}, 0.7},
		{"contamination", func(tr *domain.Transcript) { tr.Segments[0].ContaminationSources = []string{"music"} }, 0.82},
		{"medium artifact", func(tr *domain.Transcript) {
			tr.Quality.TranscriptArtifacts = []domain.ArtifactFlag{{SegmentID: 1, Severity: domain.SeverityMedium}}
		}, 0.85},
		{"low artifact", func(tr *domain.Transcript) {
			tr.Quality.TranscriptArtifacts = []domain.ArtifactFlag{{SegmentID: 1, Severity: domain.SeverityLow}}
		}, 0.97},
		{"low quality asr", func(tr *domain.Transcript) {
			tr.Quality.LowQualitySegments = []domain.LowQualityFlag{{SegmentID: 2, Reason: "noise"}}
		}, 0.85},
		{"damaged masked segment still counts", func(tr *domain.Transcript) {
			tr.Quality.DamagedSegmentIDs = []int{2}
		}, 0.82},
		{"phase confidence scales", func(tr *domain.Transcript) {
			tr.Enrichments[0].PhaseConfidence = map[string]float64{"open": 0.6}
		}, 0.6},
		{"phase confidence floored", func(tr *domain.Transcript) {
			tr.Enrichments[0].PhaseConfidence = map[string]float64{"open": 0.1}
		}, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := phasedTranscript()
			tt.mutate(tr)

			chunks := scored(t, tr)

			assert.InDelta(t, tt.want, chunks[0].Confidence(), 1e-9)
		})
	}
}

func TestScorer_CompoundsAndClamps(t *testing.T) {
	tr := phasedTranscript()
	tr.Segments[0].SpeakerRole = "unknown"
	tr.Segments[0].ConfidenceTier = domain.TierLow
	tr.Segments[1].ContaminationSources = []string{"crosstalk"}
	tr.Quality.TranscriptArtifacts = []domain.ArtifactFlag{{SegmentID: 3, Severity: domain.SeverityHigh}}
	tr.Quality.DamagedSegmentIDs = []int{2}

	chunks := scored(t, tr)

	want := 0.85 * 0.70 * 0.82 * 0.70 * 0.82
	assert.InDelta(t, want, chunks[0].Confidence(), 1e-9)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.Confidence(), 0.0)
		assert.LessOrEqual(t, c.Confidence(), 1.0)
	}
}

func TestScorer_SummaryAlwaysOne(t *testing.T) {
	tr := phasedTranscript()
	for i := range tr.Segments {
		tr.Segments[i].ConfidenceTier = domain.TierLow
	}

	chunks := scored(t, tr)

	last := chunks[len(chunks)-1]
	require.True(t, last.Metadata.IsSummary())
	assert.Equal(t, 1.0, last.Confidence())
}

func TestScorer_RecordsQualitySignals(t *testing.T) {
	tr := phasedTranscript()
	tr.Quality.TranscriptArtifacts = []domain.ArtifactFlag{
		{SegmentID: 4, Severity: domain.SeverityLow},
		{SegmentID: 5, Severity: domain.SeverityMedium},
	}

	chunks := scored(t, tr)

	q := chunks[1].Metadata.Quality
	assert.Equal(t, 2, q.ArtifactCount)
	assert.Equal(t, domain.SeverityMedium, q.WorstArtifactSeverity)
	assert.Zero(t, chunks[0].Metadata.Quality.ArtifactCount)
}

func TestFilter(t *testing.T) {
	chunks := []domain.Chunk{
		{Content: "keep", Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{Confidence: 0.5},
			Variant:      domain.InteractionMetadata{ConversationID: 1},
		}},
		{Content: "drop", Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{Confidence: 0.29},
			Variant:      domain.CommentaryMetadata{BlockID: 1},
		}},
		{Content: "edge", Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{Confidence: 0.30},
			Variant:      domain.CommentaryMetadata{BlockID: 1},
		}},
		{Content: "summary", Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{Confidence: 0.0},
			Variant:      domain.SummaryMetadata{},
		}},
	}
	doc := &domain.BuildDocument{SourceKey: "chan/abcdef123"}

	kept, err := NewFilter(DefaultFloor).Process(context.Background(), doc, chunks)

	require.NoError(t, err)
	var contents []string
	for _, c := range kept {
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{"keep", "edge", "summary"}, contents)
	assert.Equal(t, 4, doc.Stats.PreFilterCount)
	assert.Equal(t, 1, doc.Stats.Dropped)
}

func TestNewFilter_NegativeUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultFloor, NewFilter(-1).Floor())
	assert.Equal(t, "floor", NewFilter(0.5).Name())
}
