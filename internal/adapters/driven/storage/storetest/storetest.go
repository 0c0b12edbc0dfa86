// Package storetest holds behaviour tests shared by every ChunkStore backend.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Interaction builds a conversation row.
func Interaction(id, sourceKey string, conv, convIdx, chunkIdx int, content string, embedding []float32) domain.StoredChunk {
	return domain.StoredChunk{
		ID:        id,
		SourceKey: sourceKey,
		Content:   content,
		Embedding: embedding,
		Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{VideoID: "v", ChunkIndex: chunkIdx, TotalChunks: 10, Confidence: 0.9},
			Variant:      domain.InteractionMetadata{ConversationID: conv, ConversationChunkIndex: convIdx, Phase: "open"},
		},
	}
}

// Commentary builds a commentary row, linked to conv when conv is not zero.
func Commentary(id, sourceKey string, blockID, chunkIdx, conv int, content string, embedding []float32) domain.StoredChunk {
	var linked *int
	if conv != 0 {
		linked = &conv
	}
	return domain.StoredChunk{
		ID:        id,
		SourceKey: sourceKey,
		Content:   content,
		Embedding: embedding,
		Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{VideoID: "v", ChunkIndex: chunkIdx, TotalChunks: 10, Confidence: 0.8},
			Variant:      domain.CommentaryMetadata{BlockID: blockID, LinkedConversationID: linked},
		},
	}
}

func ids(rows []domain.RetrievedChunk) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

// Run exercises a ChunkStore created fresh by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) driven.ChunkStore) {
	ctx := context.Background()
	seed := func(t *testing.T) driven.ChunkStore {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, []domain.StoredChunk{
			Interaction("c2", "coachA/v1", 1, 1, 2, "what are you studying", []float32{1, 0, 0}),
			Interaction("c1", "coachA/v1", 1, 0, 1, "hey, quick question", []float32{0.9, 0.1, 0}),
			Interaction("c3", "coachA/v1", 2, 0, 3, "second conversation", []float32{0, 1, 0}),
			Commentary("n1", "coachA/v1", 1, 4, 1, "Notice how she mentioned MEDICAL school", []float32{0, 0, 1}),
			Commentary("n0", "coachA/v1", 0, 0, 0, "intro before anything", []float32{0, 0, 1}),
			Commentary("r1", "coachA/v1#review", 2, 5, 1, "noisy review-lane passage", []float32{1, 0, 0}),
			Interaction("x1", "coachB/v9", 1, 0, 0, "different video 50% off_sale", []float32{0.5, 0.5, 0}),
		}))
		return s
	}

	t.Run("count and delete by source", func(t *testing.T) {
		s := seed(t)
		n, err := s.CountBySource(ctx, "coachA/v1")
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		deleted, err := s.DeleteBySource(ctx, "coachA/v1")
		require.NoError(t, err)
		assert.Equal(t, 5, deleted)

		n, _ = s.CountBySource(ctx, "coachA/v1")
		assert.Zero(t, n)
		n, _ = s.CountBySource(ctx, "coachA/v1#review")
		assert.Equal(t, 1, n, "the review lane is keyed separately")
	})

	t.Run("similarity search", func(t *testing.T) {
		s := seed(t)
		hits, err := s.SearchSimilar(ctx, []float32{1, 0, 0}, 3, 0.5)
		require.NoError(t, err)

		assert.Equal(t, []string{"c2", "r1", "c1"}, ids(hits))
		assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
		}
		assert.Equal(t, domain.SegmentInteraction, hits[0].Metadata.SegmentType())
	})

	t.Run("similarity threshold", func(t *testing.T) {
		s := seed(t)
		hits, err := s.SearchSimilar(ctx, []float32{0, 1, 0}, 10, 0.9)
		require.NoError(t, err)
		assert.Equal(t, []string{"c3"}, ids(hits))
	})

	t.Run("keyword search", func(t *testing.T) {
		s := seed(t)
		hits, err := s.SearchKeyword(ctx, "medical", 10)
		require.NoError(t, err)
		require.Equal(t, []string{"n1"}, ids(hits))
		assert.Equal(t, []float32{0, 0, 1}, hits[0].Embedding)

		hits, err = s.SearchKeyword(ctx, "50%", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"x1"}, ids(hits), "wildcards match literally")

		hits, err = s.SearchKeyword(ctx, "", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("fetch conversation", func(t *testing.T) {
		s := seed(t)
		rows, err := s.FetchConversation(ctx, "coachA/v1", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids(rows))

		rows, err = s.FetchConversation(ctx, "coachB/v9", 2)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("fetch linked commentary", func(t *testing.T) {
		s := seed(t)
		rows, err := s.FetchCommentaryForConversation(ctx, "coachA/v1", 1)
		require.NoError(t, err)
		require.Equal(t, []string{"n1"}, ids(rows))
		cm, ok := rows[0].Metadata.Commentary()
		require.True(t, ok)
		require.NotNil(t, cm.LinkedConversationID)
		assert.Equal(t, 1, *cm.LinkedConversationID)
	})

	t.Run("insert many", func(t *testing.T) {
		s := newStore(t)
		var rows []domain.StoredChunk
		for i := range 50 {
			rows = append(rows, Commentary(fmt.Sprintf("b%02d", i), "coachC/v2", i, i, 0, "bulk", []float32{1, 1, 1}))
		}
		require.NoError(t, s.Insert(ctx, rows))
		n, err := s.CountBySource(ctx, "coachC/v2")
		require.NoError(t, err)
		assert.Equal(t, 50, n)
	})
}
