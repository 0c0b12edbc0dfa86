package driven

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// PostProcessor is one stage of the chunk build pipeline.
// PostProcessors are chained (segmenting, scoring, filtering, linking, reindexing).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a transcript document and returns chunks.
	// If the processor creates chunks (the segmenter), it receives nil.
	// Otherwise it receives the previous stage's chunks and returns them modified.
	Process(ctx context.Context, doc *domain.BuildDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.BuildDocument) ([]domain.Chunk, error)
}
