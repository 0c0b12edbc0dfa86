// Package ordinal renumbers chunks after filtering so ordinals stay contiguous.
package ordinal

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Reindexer assigns chunkIndex 0..n-1, totalChunks n and the per-conversation
// ordinal of interaction chunks. It implements the PostProcessor interface.
type Reindexer struct{}

// New creates a reindexer.
func New() *Reindexer {
	return &Reindexer{}
}

// Name returns the processor name.
func (r *Reindexer) Name() string {
	return "reindex"
}

// Process renumbers chunks in their current order.
func (r *Reindexer) Process(_ context.Context, _ *domain.BuildDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	perConversation := make(map[int]int)
	for i := range chunks {
		md := &chunks[i].Metadata
		md.ChunkIndex = i
		md.TotalChunks = len(chunks)

		if im, ok := md.Interaction(); ok {
			im.ConversationChunkIndex = perConversation[im.ConversationID]
			perConversation[im.ConversationID]++
			md.Variant = im
		}
	}
	return chunks, nil
}
