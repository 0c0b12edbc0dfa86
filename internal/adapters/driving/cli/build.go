package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/logger"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Chunk, score and embed enriched transcripts into chunks files",
	Long: `Build reads enriched transcripts, splits them into interaction,
commentary and summary passages, scores and filters each passage, embeds what
survives and writes one chunks file per video.

Unchanged transcripts are skipped. Use --full to rebuild everything in scope.`,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.String("source", "", "only build this source directory")
	f.String("manifest", "", "restrict the run to the videos listed in a manifest")
	f.Bool("dry-run", false, "print the scope without writing anything")
	f.Bool("full", false, "rebuild every video in scope")
	f.Bool("force", false, "alias for --full")
	f.Float64("min-confidence", 0, "drop passages scoring below this confidence")
	f.Int("chunk-size", 0, "maximum passage size in characters")
	f.Int("chunk-overlap", 0, "characters shared by consecutive passages")
	f.Bool("allow-unstable-keys", false, "fall back to the directory name when a transcript has no channel")
	f.Bool("watch", false, "rebuild whenever enriched transcripts change")
	f.BoolP("yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	settings, settingsSvc, err := loadSettings()
	if err != nil {
		return err
	}
	applyBuildFlags(cmd, settings)
	if err := validated(settingsSvc, settings); err != nil {
		return err
	}

	svc, closeFn, err := factory.BuildService(*settings)
	if err != nil {
		return fmt.Errorf("failed to create build service: %w", err)
	}
	defer closeQuietly(closeFn)

	opts := buildOptions(cmd)
	assumeYes, _ := cmd.Flags().GetBool("yes")

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		return buildOnce(cmd, svc, opts, assumeYes)
	}
	return watchBuild(cmd, svc, opts, factory.Watch(*settings))
}

func applyBuildFlags(cmd *cobra.Command, settings *domain.Settings) {
	f := cmd.Flags()
	if f.Changed("min-confidence") {
		settings.Chunk.MinChunkConfidence, _ = f.GetFloat64("min-confidence")
	}
	if f.Changed("chunk-size") {
		settings.Chunk.ChunkSize, _ = f.GetInt("chunk-size")
	}
	if f.Changed("chunk-overlap") {
		settings.Chunk.ChunkOverlap, _ = f.GetInt("chunk-overlap")
	}
}

func buildOptions(cmd *cobra.Command) domain.BuildOptions {
	f := cmd.Flags()
	var opts domain.BuildOptions
	opts.Source, _ = f.GetString("source")
	opts.ManifestPath, _ = f.GetString("manifest")
	opts.DryRun, _ = f.GetBool("dry-run")
	opts.AllowUnstableKeys, _ = f.GetBool("allow-unstable-keys")
	full, _ := f.GetBool("full")
	force, _ := f.GetBool("force")
	opts.Force = full || force
	return opts
}

func buildOnce(cmd *cobra.Command, svc driving.BuildService, opts domain.BuildOptions, assumeYes bool) error {
	ctx := cmd.Context()
	plan, err := svc.Plan(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to plan build: %w", err)
	}

	cmd.Println(renderScope("Build scope", plan.Summary))
	printSkipped(cmd, plan.Skipped)

	if opts.DryRun || len(plan.Items) == 0 {
		if len(plan.Items) == 0 {
			cmd.Println("Nothing to build.")
		}
		return nil
	}
	if !confirm(cmd, fmt.Sprintf("Build %d video(s)?", len(plan.Items)), assumeYes) {
		return errAborted
	}

	start := time.Now()
	result, err := svc.Run(ctx, plan)
	if result != nil {
		printBuilt(cmd, result.Built)
	}
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	cmd.Printf("Built %d chunks file(s) in %s\n", len(result.Built), time.Since(start).Round(time.Millisecond))
	return nil
}

func printBuilt(cmd *cobra.Command, built []domain.BuiltSource) {
	for _, b := range built {
		cmd.Printf("  %s  %d passages (%d dropped of %d)\n", b.SourceKey, b.Chunks, b.Dropped, b.PreFilter)
	}
}

// watchBuild builds once, then again after every burst of transcript changes.
// A failed rebuild is logged and the watch continues.
func watchBuild(cmd *cobra.Command, svc driving.BuildService, opts domain.BuildOptions, watch WatchFunc) error {
	if watch == nil {
		return errors.New("watching is not available")
	}
	if err := buildOnce(cmd, svc, opts, true); err != nil {
		logger.Error("build: %v", err)
	}
	cmd.Println("Watching for transcript changes (Ctrl+C to stop)...")

	err := watch(cmd.Context(), func() {
		logger.Info("Transcripts changed, rebuilding")
		if err := buildOnce(cmd, svc, opts, true); err != nil {
			logger.Error("build: %v", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
