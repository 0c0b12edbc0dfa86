package driving

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Retriever serves ranked, diversified, context-stitched passages for a question.
type Retriever interface {
	// Retrieve runs recall, reranking and stitching for one question.
	// Stitching failures degrade to unstitched passages; they never fail the request.
	Retrieve(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.RetrievalResult, error)

	// AnswerConfidence scores a generated answer against the passages it was built from.
	AnswerConfidence(passages []domain.StitchedPassage, answer string) domain.AnswerConfidence
}
