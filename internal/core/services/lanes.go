package services

import (
	"github.com/google/uuid"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// LaneRouter splits a chunks file into primary and review lane rows.
type LaneRouter struct {
	threshold     float64
	includeReview bool
	newID         func() string
}

// NewLaneRouter creates a router. Chunks scoring at or above threshold go to
// the primary lane; the rest go to the review lane when includeReview is set
// and are dropped otherwise.
func NewLaneRouter(threshold float64, includeReview bool) *LaneRouter {
	return &LaneRouter{
		threshold:     threshold,
		includeReview: includeReview,
		newID:         uuid.NewString,
	}
}

// Lane returns the stored key a chunk of the given confidence belongs under,
// and false when the chunk is not ingested.
func (r *LaneRouter) Lane(sourceKey string, confidence float64) (string, bool) {
	if confidence >= r.threshold {
		return sourceKey, true
	}
	if r.includeReview {
		return domain.ReviewKey(sourceKey), true
	}
	return "", false
}

// Route converts a chunks file into store rows, each with a fresh id.
func (r *LaneRouter) Route(f *domain.ChunksFile) ([]domain.StoredChunk, domain.LaneCounts) {
	var counts domain.LaneCounts
	rows := make([]domain.StoredChunk, 0, len(f.Chunks))
	for _, c := range f.Chunks {
		key, ok := r.Lane(f.SourceKey, c.Metadata.Confidence)
		if !ok {
			counts.ReviewSkipped++
			continue
		}
		if domain.IsReviewKey(key) {
			counts.Review++
		} else {
			counts.Primary++
		}
		rows = append(rows, domain.StoredChunk{
			ID:        r.newID(),
			SourceKey: key,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata:  c.Metadata,
		})
	}
	return rows, counts
}

// Expected counts the rows a chunks file would produce without building them.
func (r *LaneRouter) Expected(f *domain.ChunksFile) domain.LaneCounts {
	var counts domain.LaneCounts
	for _, c := range f.Chunks {
		switch key, ok := r.Lane(f.SourceKey, c.Metadata.Confidence); {
		case !ok:
			counts.ReviewSkipped++
		case domain.IsReviewKey(key):
			counts.Review++
		default:
			counts.Primary++
		}
	}
	return counts
}
