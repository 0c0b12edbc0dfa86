package ordinal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func TestReindexer_Process(t *testing.T) {
	interaction := func(conv, stale int) domain.Chunk {
		return domain.Chunk{Metadata: domain.ChunkMetadata{
			BaseMetadata: domain.BaseMetadata{ChunkIndex: stale, TotalChunks: 99},
			Variant:      domain.InteractionMetadata{ConversationID: conv},
		}}
	}
	chunks := []domain.Chunk{
		interaction(1, 0),
		interaction(1, 3),
		{Metadata: domain.ChunkMetadata{Variant: domain.CommentaryMetadata{BlockID: 1}}},
		interaction(2, 7),
		{Metadata: domain.ChunkMetadata{Variant: domain.SummaryMetadata{ConversationID: 1}}},
	}

	out, err := New().Process(context.Background(), &domain.BuildDocument{}, chunks)
	require.NoError(t, err)

	for i, c := range out {
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, 5, c.Metadata.TotalChunks)
	}

	conversationIndex := func(c domain.Chunk) int {
		im, ok := c.Metadata.Interaction()
		require.True(t, ok)
		return im.ConversationChunkIndex
	}
	assert.Equal(t, 0, conversationIndex(out[0]))
	assert.Equal(t, 1, conversationIndex(out[1]))
	assert.Equal(t, 0, conversationIndex(out[3]))
}

func TestReindexer_Empty(t *testing.T) {
	out, err := New().Process(context.Background(), &domain.BuildDocument{}, nil)

	require.NoError(t, err)
	assert.Empty(t, out)
}
