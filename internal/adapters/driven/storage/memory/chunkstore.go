package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu   sync.RWMutex
	rows map[string][]domain.StoredChunk // by stored sourceKey
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{rows: make(map[string][]domain.StoredChunk)}
}

// Insert appends rows.
func (s *ChunkStore) Insert(_ context.Context, rows []domain.StoredChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[r.SourceKey] = append(s.rows[r.SourceKey], r)
	}
	return nil
}

// DeleteBySource removes every row stored under sourceKey.
func (s *ChunkStore) DeleteBySource(_ context.Context, sourceKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.rows[sourceKey])
	delete(s.rows, sourceKey)
	return n, nil
}

// CountBySource returns the number of rows stored under sourceKey.
func (s *ChunkStore) CountBySource(_ context.Context, sourceKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[sourceKey]), nil
}

// SearchSimilar returns rows at or above threshold by cosine similarity, best first.
func (s *ChunkStore) SearchSimilar(
	_ context.Context, embedding []float32, limit int, threshold float64,
) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.RetrievedChunk
	for _, rows := range s.rows {
		for _, r := range rows {
			sim := domain.CosineSimilarity(embedding, r.Embedding)
			if sim < threshold {
				continue
			}
			c := toRetrieved(r)
			c.Similarity = sim
			hits = append(hits, c)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchKeyword returns rows whose content contains keyword, case-insensitively.
func (s *ChunkStore) SearchKeyword(_ context.Context, keyword string, limit int) ([]domain.RetrievedChunk, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.RetrievedChunk
	for _, key := range s.sortedKeys() {
		for _, r := range s.rows[key] {
			if !strings.Contains(strings.ToLower(r.Content), keyword) {
				continue
			}
			c := toRetrieved(r)
			c.Embedding = r.Embedding
			hits = append(hits, c)
			if limit > 0 && len(hits) == limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// FetchConversation returns the interaction rows of one conversation.
func (s *ChunkStore) FetchConversation(_ context.Context, sourceKey string, conversationID int) ([]domain.RetrievedChunk, error) {
	return s.filter(sourceKey, func(md domain.ChunkMetadata) bool {
		im, ok := md.Interaction()
		return ok && im.ConversationID == conversationID
	}), nil
}

// FetchCommentaryForConversation returns the commentary rows linked to a conversation.
func (s *ChunkStore) FetchCommentaryForConversation(
	_ context.Context, sourceKey string, conversationID int,
) ([]domain.RetrievedChunk, error) {
	return s.filter(sourceKey, func(md domain.ChunkMetadata) bool {
		cm, ok := md.Commentary()
		return ok && cm.LinkedConversationID != nil && *cm.LinkedConversationID == conversationID
	}), nil
}

// Close is a no-op.
func (s *ChunkStore) Close() error { return nil }

func (s *ChunkStore) filter(sourceKey string, keep func(domain.ChunkMetadata) bool) []domain.RetrievedChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RetrievedChunk
	for _, r := range s.rows[sourceKey] {
		if keep(r.Metadata) {
			out = append(out, toRetrieved(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metadata.ChunkIndex < out[j].Metadata.ChunkIndex })
	return out
}

func (s *ChunkStore) sortedKeys() []string {
	keys := make([]string, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toRetrieved(r domain.StoredChunk) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ID:        r.ID,
		SourceKey: r.SourceKey,
		Content:   r.Content,
		Metadata:  r.Metadata,
	}
}
