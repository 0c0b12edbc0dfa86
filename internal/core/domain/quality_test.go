package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQualityIndex(t *testing.T) {
	tr := &Transcript{
		Quality: QualityReport{
			LowQualitySegments: []LowQualityFlag{{SegmentID: 1, Reason: "asr"}},
			TranscriptArtifacts: []ArtifactFlag{
				{SegmentID: 2, Type: "repeat", Severity: SeverityLow},
				{SegmentID: 2, Type: "garble", Severity: SeverityHigh},
				{SegmentID: 3, Type: "repeat", Severity: SeverityMedium},
			},
			DamagedSegmentIDs: []int{4},
		},
	}

	idx := BuildQualityIndex(tr)

	assert.True(t, idx.IsLowQuality(1))
	assert.False(t, idx.IsLowQuality(2))
	assert.Equal(t, SeverityHigh, idx.ArtifactSeverity(2))
	assert.Equal(t, SeverityMedium, idx.ArtifactSeverity(3))
	assert.True(t, idx.IsDamaged(4))
	assert.True(t, idx.IsMasked(Segment{ID: 2}))
	assert.True(t, idx.IsMasked(Segment{ID: 9, IsTeaser: true}))
	assert.False(t, idx.IsMasked(Segment{ID: 3}))

	s := idx.Signals([]int{1, 2, 3, 4}, []int{4, 2})
	assert.Equal(t, 3, s.ArtifactCount)
	assert.Equal(t, SeverityHigh, s.WorstArtifactSeverity)
	assert.Equal(t, 1, s.LowQualityCount)
	assert.Equal(t, []int{4}, s.DamagedSegmentIDs)
	assert.Equal(t, []int{2, 4}, s.MaskedSegmentIDs)
}

func TestBuildQualityIndex_Nil(t *testing.T) {
	idx := BuildQualityIndex(nil)

	assert.False(t, idx.IsDamaged(0))
	assert.Equal(t, QualitySignals{}, idx.Signals([]int{0}, nil))
}
