package driven

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// ChunkStore is the vector store holding ingested chunk rows.
// Rows are addressed by stored sourceKey; the review lane uses the
// `#review` suffixed key so both lanes can be replaced independently.
type ChunkStore interface {
	// Insert stores rows. Row IDs must be unique.
	Insert(ctx context.Context, rows []domain.StoredChunk) error

	// DeleteBySource removes every row stored under exactly this key and
	// returns how many were removed.
	DeleteBySource(ctx context.Context, sourceKey string) (int, error)

	// CountBySource returns the number of rows stored under exactly this key.
	CountBySource(ctx context.Context, sourceKey string) (int, error)

	// SearchSimilar returns up to limit rows whose cosine similarity to the
	// embedding is at least threshold, best first.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]domain.RetrievedChunk, error)

	// SearchKeyword returns up to limit rows whose content contains keyword
	// (case-insensitive). Returned rows carry their embedding.
	SearchKeyword(ctx context.Context, keyword string, limit int) ([]domain.RetrievedChunk, error)

	// FetchConversation returns every interaction row of one conversation.
	FetchConversation(ctx context.Context, sourceKey string, conversationID int) ([]domain.RetrievedChunk, error)

	// FetchCommentaryForConversation returns the commentary rows linked to a conversation.
	FetchCommentaryForConversation(ctx context.Context, sourceKey string, conversationID int) ([]domain.RetrievedChunk, error)

	// Close releases resources.
	Close() error
}
