package driving

import "github.com/custodia-labs/coachkb/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.Settings, error)

	// Save persists application settings.
	Save(settings *domain.Settings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// Validate checks the settings are usable.
	Validate(settings *domain.Settings) error

	// ValidateEmbeddingConfig validates the stored embedding configuration
	// by pinging the provider.
	ValidateEmbeddingConfig() error
}
