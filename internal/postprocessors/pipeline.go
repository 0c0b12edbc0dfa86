// Package postprocessors assembles the chunk build pipeline from its stages.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs the build stages in order: segmentation creates the passages,
// later stages score, filter, link and reindex them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in the order given.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs one transcript through every stage. The quality index is
// built once here so every stage sees the same flags.
func (p *Pipeline) Process(ctx context.Context, doc *domain.BuildDocument) ([]domain.Chunk, error) {
	if doc == nil || doc.Transcript == nil {
		return nil, fmt.Errorf("%w: document has no transcript", domain.ErrInvalidInput)
	}
	if doc.Quality == nil {
		doc.Quality = domain.BuildQualityIndex(doc.Transcript)
	}

	var chunks []domain.Chunk
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := len(chunks)
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
		logger.Debug("%s: %s %d -> %d passages", doc.Transcript.VideoID, processor.Name(), before, len(chunks))
	}
	return chunks, nil
}

// Add appends a stage.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
