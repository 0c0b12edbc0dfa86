package driving

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// IngestService moves gated chunks files into the vector store.
type IngestService interface {
	// Plan validates chunks files, applies the quarantine gates and writes the
	// gate report. It never touches the store or the ingest state.
	Plan(ctx context.Context, opts domain.IngestOptions) (*domain.IngestPlan, error)

	// Run replaces the stored rows of every planned source, saving state after each.
	Run(ctx context.Context, plan *domain.IngestPlan) (*domain.IngestResult, error)

	// Verify compares stored row counts against what each chunks file would produce.
	Verify(ctx context.Context, opts domain.IngestOptions) ([]domain.VerifyEntry, error)
}
