// Package cli provides the cobra command tree of coachkb.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// version is set by the entry point from build flags.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
	dataDir   string
)

// WatchFunc blocks until ctx is done, calling onChange after each burst of
// changes to the enriched transcripts.
type WatchFunc func(ctx context.Context, onChange func()) error

// Factory assembles core services from the effective settings of one
// invocation. Every returned close function must be called when the command
// is done.
type Factory interface {
	// Settings opens the settings service for a config directory
	// ("" means the default).
	Settings(configDir string) (driving.SettingsService, error)

	BuildService(settings domain.Settings) (driving.BuildService, func() error, error)
	IngestService(settings domain.Settings) (driving.IngestService, func() error, error)
	Retriever(settings domain.Settings) (driving.Retriever, func() error, error)

	// Watch returns a watcher over the enriched transcript directory.
	Watch(settings domain.Settings) WatchFunc
}

// factory is injected by the entry point.
var factory Factory

// SetFactory sets the service factory used by every command.
func SetFactory(f Factory) {
	factory = f
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "coachkb",
	Short: "Build and query a coaching knowledge base from enriched transcripts",
	Long: `coachkb turns enriched coaching transcripts into confidence-scored
passages, gates them into a vector store and answers questions with ranked,
context-stitched passages.

Pipeline:
  coachkb build    chunk, score and embed transcripts into chunks files
  coachkb ingest   gate chunks files and load them into the vector store
  coachkb query    retrieve passages for a question
  coachkb mcp      serve retrieval to AI assistants over MCP`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.coachkb)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config and COACHKB_DATA_DIR)")
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadSettings reads the effective settings and applies the global flags.
// Commands apply their own flag overrides before validating.
func loadSettings() (*domain.Settings, driving.SettingsService, error) {
	if factory == nil {
		return nil, nil, errors.New("services not configured")
	}
	svc, err := factory.Settings(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings: %w", err)
	}
	settings, err := svc.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if dataDir != "" {
		settings.DataDir = dataDir
	}
	return settings, svc, nil
}

// validated reports every invalid setting at once.
func validated(svc driving.SettingsService, settings *domain.Settings) error {
	if err := svc.Validate(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// closeQuietly runs a close function, logging any failure.
func closeQuietly(closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.Warn("close: %v", err)
	}
}
