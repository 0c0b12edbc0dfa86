package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve ranked passages for a question",
	Long: `Query embeds the question, recalls candidates by vector similarity and
keyword, reranks them with diversity caps and stitches each selected passage
with its conversation context.`,
	Example: `  coachkb query "how do I open in a coffee shop"
  coachkb query "examples of teasing" -n 3 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.IntP("limit", "n", 0, "number of passages (default from settings)")
	f.Bool("json", false, "print the result as JSON")
	f.Bool("no-stitch", false, "return passages without conversation context")
	f.Bool("include-review", false, "include review-lane passages")
	rootCmd.AddCommand(queryCmd)
}

// queryPassage is the JSON form of one passage.
type queryPassage struct {
	ID                string                `json:"id"`
	SourceKey         string                `json:"source_key"`
	SegmentType       domain.SegmentType    `json:"segment_type"`
	Speaker           string                `json:"speaker,omitempty"`
	Confidence        float64               `json:"confidence"`
	Similarity        float64               `json:"similarity"`
	Score             domain.ScoreBreakdown `json:"score"`
	Text              string                `json:"text"`
	ContextChunkIDs   []string              `json:"context_chunk_ids,omitempty"`
	CrossReferenceIDs []string              `json:"cross_reference_ids,omitempty"`
}

type queryOutput struct {
	Question       string                  `json:"question"`
	Intent         domain.QueryIntent      `json:"intent"`
	CandidateCount int                     `json:"candidate_count"`
	Passages       []queryPassage          `json:"passages"`
	Confidence     domain.AnswerConfidence `json:"confidence"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	settings, settingsSvc, err := loadSettings()
	if err != nil {
		return err
	}
	if err := validated(settingsSvc, settings); err != nil {
		return err
	}

	retriever, closeFn, err := factory.Retriever(*settings)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	defer closeQuietly(closeFn)

	f := cmd.Flags()
	opts := domain.RetrievalOptions{Limit: settings.Retrieval.Limit}
	if n, _ := f.GetInt("limit"); n > 0 {
		opts.Limit = n
	}
	noStitch, _ := f.GetBool("no-stitch")
	opts.Stitch = !noStitch
	opts.IncludeReview, _ = f.GetBool("include-review")

	result, err := retriever.Retrieve(cmd.Context(), question, opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if asJSON, _ := f.GetBool("json"); asJSON {
		return printQueryJSON(cmd, toQueryOutput(result))
	}
	printQuery(cmd, result)
	return nil
}

func toQueryOutput(result *domain.RetrievalResult) queryOutput {
	out := queryOutput{
		Question:       result.Plan.Question,
		Intent:         result.Plan.Intent,
		CandidateCount: result.CandidateCount,
		Passages:       make([]queryPassage, 0, len(result.Passages)),
		Confidence:     result.Confidence,
	}
	for _, p := range result.Passages {
		out.Passages = append(out.Passages, queryPassage{
			ID:                p.Chunk.ID,
			SourceKey:         p.Chunk.SourceKey,
			SegmentType:       p.Chunk.Metadata.SegmentType(),
			Speaker:           p.Chunk.Metadata.Speaker,
			Confidence:        p.Chunk.Metadata.Confidence,
			Similarity:        p.Chunk.Similarity,
			Score:             p.Score,
			Text:              p.Text,
			ContextChunkIDs:   p.ContextChunkIDs,
			CrossReferenceIDs: p.CrossReferenceIDs,
		})
	}
	return out
}

func printQueryJSON(cmd *cobra.Command, out queryOutput) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printQuery(cmd *cobra.Command, result *domain.RetrievalResult) {
	if len(result.Passages) == 0 {
		cmd.Println("No passages found.")
		return
	}
	cmd.Printf("%d passage(s) from %d candidate(s), intent %s\n\n",
		len(result.Passages), result.CandidateCount, result.Plan.Intent)

	for i, p := range result.Passages {
		header := fmt.Sprintf("%d. %s  [%s]", i+1, p.Chunk.SourceKey, p.Chunk.Metadata.SegmentType())
		cmd.Println(titleStyle.Render(header))
		if p.Chunk.Metadata.Speaker != "" {
			cmd.Printf("   speaker: %s\n", p.Chunk.Metadata.Speaker)
		}
		s := p.Score
		cmd.Printf("   score %.3f = vector %.3f + overlap %.3f + phrase %.3f + anchor %.3f + metadata %.3f %+.3f confidence %+.3f gating\n",
			s.Total, s.Vector, s.Overlap, s.PhraseBoost, s.AnchorBoost, s.MetadataBonus, s.ConfidencePenalty, s.GatingAdjustment)
		cmd.Println()
		cmd.Println(indent(p.Text, "   "))
		cmd.Println()
	}

	c := result.Confidence
	cmd.Printf("Confidence %.2f (retrieval %.2f, consistency %.2f, policy %.2f)\n",
		c.Score, c.RetrievalStrength, c.SourceConsistency, c.PolicyCompliance)
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
