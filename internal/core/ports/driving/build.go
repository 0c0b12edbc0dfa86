package driving

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// BuildService turns enriched transcripts into chunks files.
type BuildService interface {
	// Plan resolves the scope of a run without mutating anything.
	Plan(ctx context.Context, opts domain.BuildOptions) (*domain.BuildPlan, error)

	// Run chunks, scores, embeds and writes every planned item, saving state
	// after each one. An embedding failure aborts the run.
	Run(ctx context.Context, plan *domain.BuildPlan) (*domain.BuildResult, error)
}
