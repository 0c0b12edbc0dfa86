package domain

import "sort"

// QualityIndex is the per-transcript lookup of flagged segments.
type QualityIndex struct {
	lowQuality map[int]string
	artifacts  map[int]Severity
	artifactN  map[int]int
	damaged    map[int]bool
}

// BuildQualityIndex scans a transcript's flagged segments into lookup tables.
// Repeated artifact flags on one segment keep the worst severity.
func BuildQualityIndex(t *Transcript) *QualityIndex {
	idx := &QualityIndex{
		lowQuality: make(map[int]string),
		artifacts:  make(map[int]Severity),
		artifactN:  make(map[int]int),
		damaged:    make(map[int]bool),
	}
	if t == nil {
		return idx
	}

	for _, f := range t.Quality.LowQualitySegments {
		idx.lowQuality[f.SegmentID] = f.Reason
	}
	for _, f := range t.Quality.TranscriptArtifacts {
		idx.artifacts[f.SegmentID] = idx.artifacts[f.SegmentID].Worse(f.Severity)
		idx.artifactN[f.SegmentID]++
	}
	for _, id := range t.Quality.DamagedSegmentIDs {
		idx.damaged[id] = true
	}
	return idx
}

// IsLowQuality reports whether the segment's ASR output was flagged.
func (q *QualityIndex) IsLowQuality(segmentID int) bool {
	_, ok := q.lowQuality[segmentID]
	return ok
}

// ArtifactSeverity returns the worst artifact severity on a segment.
func (q *QualityIndex) ArtifactSeverity(segmentID int) Severity {
	return q.artifacts[segmentID]
}

// IsDamaged reports whether the segment was marked damaged.
func (q *QualityIndex) IsDamaged(segmentID int) bool {
	return q.damaged[segmentID]
}

// IsMasked reports whether a segment's text is excluded from chunk content.
// Masked segments still count toward their chunk's quality assessment.
func (q *QualityIndex) IsMasked(seg Segment) bool {
	return seg.IsTeaser || q.damaged[seg.ID] || q.artifacts[seg.ID] == SeverityHigh
}

// Signals summarises the flags over a set of contributing segments.
func (q *QualityIndex) Signals(segmentIDs []int, masked []int) QualitySignals {
	var s QualitySignals
	for _, id := range segmentIDs {
		if sev, ok := q.artifacts[id]; ok {
			s.ArtifactCount += q.artifactN[id]
			s.WorstArtifactSeverity = s.WorstArtifactSeverity.Worse(sev)
		}
		if q.IsLowQuality(id) {
			s.LowQualityCount++
		}
		if q.damaged[id] {
			s.DamagedSegmentIDs = append(s.DamagedSegmentIDs, id)
		}
	}
	sort.Ints(s.DamagedSegmentIDs)
	if len(masked) > 0 {
		s.MaskedSegmentIDs = append([]int(nil), masked...)
		sort.Ints(s.MaskedSegmentIDs)
	}
	return s
}

// BuildStats are the per-video observability counters of the chunk pipeline.
type BuildStats struct {
	PreFilterCount int
	Dropped        int
}

// BuildDocument is the unit flowing through the chunk post-processor pipeline.
type BuildDocument struct {
	SourceKey  string
	Transcript *Transcript
	Quality    *QualityIndex
	Stats      BuildStats
}
