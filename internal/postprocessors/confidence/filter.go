package confidence

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// DefaultFloor is the minimum confidence a content chunk needs to be kept.
const DefaultFloor = 0.30

// Filter drops content chunks scored below the floor. Summary chunks are exempt.
// It implements the PostProcessor interface.
type Filter struct {
	floor float64
}

// NewFilter creates a floor filter; a negative floor uses DefaultFloor.
func NewFilter(floor float64) *Filter {
	if floor < 0 {
		floor = DefaultFloor
	}
	return &Filter{floor: floor}
}

// Name returns the processor name.
func (f *Filter) Name() string {
	return "floor"
}

// Floor returns the configured confidence floor.
func (f *Filter) Floor() float64 {
	return f.floor
}

// Process removes low-confidence chunks and records kept/dropped counts.
func (f *Filter) Process(_ context.Context, doc *domain.BuildDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	doc.Stats.PreFilterCount = len(chunks)

	kept := chunks[:0]
	for _, c := range chunks {
		if c.Metadata.IsSummary() || c.Confidence() >= f.floor {
			kept = append(kept, c)
		}
	}
	doc.Stats.Dropped = doc.Stats.PreFilterCount - len(kept)

	if doc.Stats.Dropped > 0 {
		logger.Debug("%s: dropped %d of %d chunks below confidence %.2f",
			doc.SourceKey, doc.Stats.Dropped, doc.Stats.PreFilterCount, f.floor)
	}
	return kept, nil
}
