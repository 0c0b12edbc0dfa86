package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stitched passages", func(t *testing.T) {
		retriever := &mockRetriever{result: &domain.RetrievalResult{
			Passages:       []domain.StitchedPassage{samplePassage("p1")},
			CandidateCount: 12,
			Confidence:     domain.AnswerConfidence{Score: 0.7},
		}}
		server, err := NewServer(&Ports{Retriever: retriever})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Question: "opener?", Limit: 3, IncludeReview: true})

		require.NoError(t, err)
		assert.Equal(t, "opener?", retriever.question)
		assert.Equal(t, domain.RetrievalOptions{Limit: 3, Stitch: true, IncludeReview: true}, retriever.opts)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, 12, output.CandidateCount)
		assert.InDelta(t, 0.7, output.Confidence.Score, 1e-9)
		require.Len(t, output.Passages, 1)
		p := output.Passages[0]
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, "coachA/abc123def", p.SourceKey)
		assert.Equal(t, "INTERACTION", p.SegmentType)
		assert.Equal(t, "Coach", p.Speaker)
		assert.Equal(t, "Coach: hey\n\nTarget: hi", p.Text)
		assert.InDelta(t, 0.95, p.Score.Total, 1e-9)
	})

	t.Run("empty question", func(t *testing.T) {
		server, err := NewServer(&Ports{Retriever: &mockRetriever{}})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{})

		assert.Error(t, err)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Retriever: &mockRetriever{err: errors.New("store down")}})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Question: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "store down")
	})
}

func TestServer_handleAnswerConfidence(t *testing.T) {
	ctx := context.Background()
	retriever := &mockRetriever{result: &domain.RetrievalResult{
		Passages: []domain.StitchedPassage{samplePassage("p1"), samplePassage("p2")},
	}}
	server, err := NewServer(&Ports{Retriever: retriever})
	require.NoError(t, err)

	_, output, err := server.handleAnswerConfidence(ctx, nil, AnswerConfidenceInput{
		Question: "opener?",
		Answer:   "Say hi.",
		Limit:    2,
	})

	require.NoError(t, err)
	assert.Equal(t, "Say hi.", retriever.answer)
	assert.Equal(t, 2, retriever.opts.Limit)
	assert.False(t, retriever.opts.Stitch, "scoring does not need stitched text")
	assert.Equal(t, []string{"p1", "p2"}, output.PassageIDs)
	assert.InDelta(t, 2.0, output.Confidence.RetrievalStrength, 1e-9)
}
