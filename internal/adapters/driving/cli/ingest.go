package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Gate chunks files and load them into the vector store",
	Long: `Ingest validates chunks files, applies the taxonomy, readiness and
semantic quarantine gates, writes a gate report and replaces the stored rows
of every admitted video.

Gates need a manifest. Skip a gate explicitly with its --skip flag.`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.String("source", "", "only ingest this source directory")
	f.String("manifest", "", "manifest defining the gated scope")
	f.Bool("dry-run", false, "apply the gates and write the report without touching the store")
	f.Bool("full", false, "re-ingest every admitted video")
	f.Bool("force", false, "alias for --full")
	f.Bool("verify", false, "compare stored row counts with the chunks files")

	f.Bool("skip-taxonomy-gate", false, "do not apply the taxonomy gate")
	f.Bool("skip-readiness-gate", false, "do not apply the readiness gate")
	f.Bool("skip-semantic-gate", false, "do not apply the semantic gate")
	f.String("taxonomy-report", "", "taxonomy report path")
	f.String("readiness-summary", "", "readiness summary path")
	f.String("judgements", "", "semantic judgements path")

	f.Bool("allow-review-status", false, "admit videos the readiness summary marks REVIEW")
	f.Bool("review-lane", false, "store low-confidence passages in the review lane")
	f.Float64("lane-threshold", 0, "confidence below which passages go to the review lane")
	f.Int("semantic-min-fresh", 0, "minimum fresh judgements in the batch")
	f.Float64("semantic-min-mean-score", 0, "minimum mean judgement score")
	f.Float64("semantic-max-major-error-rate", 0, "maximum major error rate")
	f.Float64("semantic-max-hallucination-rate", 0, "maximum hallucination rate")

	f.BoolP("yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	settings, settingsSvc, err := loadSettings()
	if err != nil {
		return err
	}
	applyIngestFlags(cmd, settings)
	if err := validated(settingsSvc, settings); err != nil {
		return err
	}

	svc, closeFn, err := factory.IngestService(*settings)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}
	defer closeQuietly(closeFn)

	opts := ingestOptions(cmd)
	if verify, _ := cmd.Flags().GetBool("verify"); verify {
		return runVerify(cmd, svc, opts)
	}

	plan, err := svc.Plan(cmd.Context(), opts)
	if plan != nil && plan.ReportPath != "" {
		cmd.Printf("Gate report: %s\n", plan.ReportPath)
	}
	if err != nil {
		if plan != nil && plan.Report != nil && plan.Report.Aborted {
			return fmt.Errorf("ingest aborted: %s: %w", plan.Report.AbortReason, err)
		}
		return fmt.Errorf("failed to plan ingest: %w", err)
	}

	cmd.Println(renderScope("Ingest scope", plan.Summary))
	printSkipped(cmd, plan.Skipped)

	if opts.DryRun || len(plan.Items) == 0 {
		if len(plan.Items) == 0 {
			cmd.Println("Nothing to ingest.")
		}
		return nil
	}
	assumeYes, _ := cmd.Flags().GetBool("yes")
	if !confirm(cmd, fmt.Sprintf("Replace stored passages for %d video(s)?", len(plan.Items)), assumeYes) {
		return errAborted
	}

	result, err := svc.Run(cmd.Context(), plan)
	if result != nil {
		printIngested(cmd, result.Ingested)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingested %d video(s)\n", len(result.Ingested))
	return nil
}

func applyIngestFlags(cmd *cobra.Command, settings *domain.Settings) {
	f := cmd.Flags()
	in := &settings.Ingest
	if f.Changed("allow-review-status") {
		in.AllowReviewStatus, _ = f.GetBool("allow-review-status")
	}
	if f.Changed("review-lane") {
		in.IncludeReview, _ = f.GetBool("review-lane")
	}
	if f.Changed("lane-threshold") {
		in.LaneThreshold, _ = f.GetFloat64("lane-threshold")
	}
	if f.Changed("semantic-min-fresh") {
		in.Semantic.MinFreshJudgements, _ = f.GetInt("semantic-min-fresh")
	}
	if f.Changed("semantic-min-mean-score") {
		in.Semantic.MinMeanScore, _ = f.GetFloat64("semantic-min-mean-score")
	}
	if f.Changed("semantic-max-major-error-rate") {
		in.Semantic.MaxMajorErrorRate, _ = f.GetFloat64("semantic-max-major-error-rate")
	}
	if f.Changed("semantic-max-hallucination-rate") {
		in.Semantic.MaxHallucinationRate, _ = f.GetFloat64("semantic-max-hallucination-rate")
	}
}

func ingestOptions(cmd *cobra.Command) domain.IngestOptions {
	f := cmd.Flags()
	var opts domain.IngestOptions
	opts.Source, _ = f.GetString("source")
	opts.ManifestPath, _ = f.GetString("manifest")
	opts.DryRun, _ = f.GetBool("dry-run")
	full, _ := f.GetBool("full")
	force, _ := f.GetBool("force")
	opts.Force = full || force
	opts.SkipTaxonomy, _ = f.GetBool("skip-taxonomy-gate")
	opts.SkipReadiness, _ = f.GetBool("skip-readiness-gate")
	opts.SkipSemantic, _ = f.GetBool("skip-semantic-gate")
	opts.TaxonomyReportPath, _ = f.GetString("taxonomy-report")
	opts.ReadinessSummaryPath, _ = f.GetString("readiness-summary")
	opts.JudgementsPath, _ = f.GetString("judgements")
	return opts
}

func printIngested(cmd *cobra.Command, ingested []domain.IngestedSource) {
	for _, in := range ingested {
		cmd.Printf("  %s  primary=%d review=%d review_skipped=%d replaced=%d\n",
			in.SourceKey, in.Lanes.Primary, in.Lanes.Review, in.Lanes.ReviewSkipped, in.Deleted)
	}
}

func runVerify(cmd *cobra.Command, svc driving.IngestService, opts domain.IngestOptions) error {
	entries, err := svc.Verify(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	mismatched := 0
	for _, e := range entries {
		status := valueStyle.Render("ok")
		if !e.OK() {
			mismatched++
			status = errorStyle.Render("MISMATCH")
		}
		cmd.Printf("  %-40s primary %d/%d  review %d/%d  %s\n",
			e.SourceKey, e.StoredPrimary, e.ExpectedPrimary, e.StoredReview, e.ExpectedReview, status)
	}
	if mismatched > 0 {
		return fmt.Errorf("%d of %d video(s) do not match their chunks files", mismatched, len(entries))
	}
	cmd.Printf("All %d video(s) match their chunks files\n", len(entries))
	return nil
}
