package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Question      string `json:"question" jsonschema:"the coaching question to find passages for"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
	IncludeReview bool   `json:"include_review,omitempty" jsonschema:"also search low-confidence review-lane passages"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages       []PassageOutput         `json:"passages"`
	Count          int                     `json:"count"`
	CandidateCount int                     `json:"candidate_count"`
	Confidence     domain.AnswerConfidence `json:"confidence"`
}

// PassageOutput represents a single stitched passage.
type PassageOutput struct {
	ID          string                `json:"id"`
	SourceKey   string                `json:"source_key"`
	SegmentType string                `json:"segment_type"`
	Speaker     string                `json:"speaker,omitempty"`
	Similarity  float64               `json:"similarity"`
	Score       domain.ScoreBreakdown `json:"score"`
	Text        string                `json:"text"`
}

// AnswerConfidenceInput is the input schema for the answer_confidence tool.
type AnswerConfidenceInput struct {
	Question string `json:"question" jsonschema:"the question the answer responds to"`
	Answer   string `json:"answer" jsonschema:"the generated answer text to score"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of passages the answer was grounded on (default from settings)"`
}

// AnswerConfidenceOutput is the output schema for the answer_confidence tool.
type AnswerConfidenceOutput struct {
	Confidence domain.AnswerConfidence `json:"confidence"`
	PassageIDs []string                `json:"passage_ids"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve ranked, context-stitched coaching passages for a question",
	}, s.handleRetrieve)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "answer_confidence",
		Description: "Score an answer against the passages retrieved for its question",
	}, s.handleAnswerConfidence)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if input.Question == "" {
		return nil, RetrieveOutput{}, errors.New("question is required")
	}

	opts := domain.RetrievalOptions{Limit: input.Limit, Stitch: true, IncludeReview: input.IncludeReview}
	result, err := s.ports.Retriever.Retrieve(ctx, input.Question, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Passages:       make([]PassageOutput, len(result.Passages)),
		Count:          len(result.Passages),
		CandidateCount: result.CandidateCount,
		Confidence:     result.Confidence,
	}
	for i, p := range result.Passages {
		output.Passages[i] = PassageOutput{
			ID:          p.Chunk.ID,
			SourceKey:   p.Chunk.SourceKey,
			SegmentType: string(p.Chunk.Metadata.SegmentType()),
			Speaker:     p.Chunk.Metadata.Speaker,
			Similarity:  p.Chunk.Similarity,
			Score:       p.Score,
			Text:        p.Text,
		}
	}

	return nil, output, nil
}

// handleAnswerConfidence retrieves passages for the question and scores the
// supplied answer against them.
func (s *Server) handleAnswerConfidence(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerConfidenceInput,
) (*mcp.CallToolResult, AnswerConfidenceOutput, error) {
	if input.Question == "" {
		return nil, AnswerConfidenceOutput{}, errors.New("question is required")
	}

	result, err := s.ports.Retriever.Retrieve(ctx, input.Question, domain.RetrievalOptions{Limit: input.Limit})
	if err != nil {
		return nil, AnswerConfidenceOutput{}, err
	}

	output := AnswerConfidenceOutput{
		Confidence: s.ports.Retriever.AnswerConfidence(result.Passages, input.Answer),
		PassageIDs: make([]string, len(result.Passages)),
	}
	for i, p := range result.Passages {
		output.PassageIDs[i] = p.Chunk.ID
	}

	return nil, output, nil
}
