package driven

import "github.com/custodia-labs/coachkb/internal/core/domain"

// AIConfigValidator validates AI provider configurations.
// Implementations verify that configurations are valid by testing connectivity
// to the underlying AI services.
type AIConfigValidator interface {
	// ValidateEmbedding validates an embedding configuration by pinging the
	// provider and checking the model is served.
	// Returns nil if the provider is not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error
}
