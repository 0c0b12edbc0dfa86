package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Stitching limits.
const (
	// FullConversationMax is the largest conversation returned whole.
	FullConversationMax = 4

	// CrossReferenceLimit bounds the commentary blocks, or conversation
	// passages, appended as the secondary section.
	CrossReferenceLimit = 3

	DefaultStitchWorkers = 4
)

// Section headers separating the primary window from cross-references.
const (
	commentaryHeader   = "--- Related commentary ---"
	conversationHeader = "--- Source conversation ---"
)

// Stitcher expands selected passages with their conversation neighbours and
// cross-referenced passages.
type Stitcher struct {
	store   driven.ChunkStore
	workers int
}

// NewStitcher creates a stitcher fetching from store with at most workers
// concurrent fetches.
func NewStitcher(store driven.ChunkStore, workers int) *Stitcher {
	if workers <= 0 {
		workers = DefaultStitchWorkers
	}
	return &Stitcher{store: store, workers: workers}
}

// stitchRequest holds the caches of one request. Nothing is shared between
// requests.
type stitchRequest struct {
	store driven.ChunkStore
	cache *cache.Cache
	group singleflight.Group
}

func (r *stitchRequest) fetch(
	ctx context.Context, kind, sourceKey string, conv int,
	load func(context.Context, string, int) ([]domain.RetrievedChunk, error),
) ([]domain.RetrievedChunk, error) {
	key := fmt.Sprintf("%s|%s|%d", kind, sourceKey, conv)
	if v, ok := r.cache.Get(key); ok {
		return v.([]domain.RetrievedChunk), nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
		rows, err := load(ctx, sourceKey, conv)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, rows, cache.DefaultExpiration)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.RetrievedChunk), nil
}

func (r *stitchRequest) conversation(ctx context.Context, sourceKey string, conv int) ([]domain.RetrievedChunk, error) {
	rows, err := r.fetch(ctx, "conversation", sourceKey, conv, r.store.FetchConversation)
	if err != nil {
		return nil, err
	}
	return sortConversation(rows), nil
}

func (r *stitchRequest) commentary(ctx context.Context, sourceKey string, conv int) ([]domain.RetrievedChunk, error) {
	rows, err := r.fetch(ctx, "commentary", sourceKey, conv, r.store.FetchCommentaryForConversation)
	if err != nil {
		return nil, err
	}
	out := append([]domain.RetrievedChunk(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metadata.ChunkIndex < out[j].Metadata.ChunkIndex })
	return out, nil
}

// Stitch expands every passage concurrently. A failed fetch leaves that
// passage with its own text; it never fails the request.
func (s *Stitcher) Stitch(ctx context.Context, passages []domain.RankedPassage) []domain.StitchedPassage {
	req := &stitchRequest{store: s.store, cache: cache.New(cache.NoExpiration, 0)}
	out := make([]domain.StitchedPassage, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range passages {
		g.Go(func() error {
			out[i] = req.stitchOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *stitchRequest) stitchOne(ctx context.Context, p domain.RankedPassage) domain.StitchedPassage {
	sp := domain.StitchedPassage{RankedPassage: p, Text: p.Chunk.Content}
	md := p.Chunk.Metadata
	sourceKey := p.Chunk.SourceKey

	switch v := md.Variant.(type) {
	case domain.InteractionMetadata:
		conv, err := r.conversation(ctx, sourceKey, v.ConversationID)
		if err != nil {
			logger.WithFields(logger.Fields{"chunk_id": p.Chunk.ID, "error": err}).Warn("conversation stitching failed")
		} else if window := conversationWindow(conv, p.Chunk); len(window) > 0 {
			sp.Text = joinContents(window)
			sp.ContextChunkIDs = chunkIDs(window)
		}

		refs, err := r.commentary(ctx, sourceKey, v.ConversationID)
		if err != nil {
			logger.WithFields(logger.Fields{"chunk_id": p.Chunk.ID, "error": err}).Warn("commentary cross-reference failed")
			break
		}
		appendSection(&sp, commentaryHeader, firstBlocks(refs, CrossReferenceLimit))

	case domain.CommentaryMetadata:
		if v.LinkedConversationID == nil {
			break
		}
		conv, err := r.conversation(ctx, sourceKey, *v.LinkedConversationID)
		if err != nil {
			logger.WithFields(logger.Fields{"chunk_id": p.Chunk.ID, "error": err}).Warn("conversation cross-reference failed")
			break
		}
		appendSection(&sp, conversationHeader, firstN(conv, CrossReferenceLimit))
	}
	return sp
}

// sortConversation orders conversation passages by conversation-local then
// global ordinal.
func sortConversation(rows []domain.RetrievedChunk) []domain.RetrievedChunk {
	out := append([]domain.RetrievedChunk(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := conversationIndex(out[i]), conversationIndex(out[j])
		if ci != cj {
			return ci < cj
		}
		return out[i].Metadata.ChunkIndex < out[j].Metadata.ChunkIndex
	})
	return out
}

func conversationIndex(c domain.RetrievedChunk) int {
	if im, ok := c.Metadata.Interaction(); ok {
		return im.ConversationChunkIndex
	}
	return 0
}

// conversationWindow returns the whole conversation when it is short, else
// the passage with one neighbour on each side.
func conversationWindow(conv []domain.RetrievedChunk, self domain.RetrievedChunk) []domain.RetrievedChunk {
	if len(conv) == 0 {
		return nil
	}
	if len(conv) <= FullConversationMax {
		return conv
	}
	idx := -1
	for i, c := range conv {
		if c.ID == self.ID || (c.ID == "" && c.Metadata.ChunkIndex == self.Metadata.ChunkIndex) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	lo, hi := max(0, idx-1), min(len(conv), idx+2)
	return conv[lo:hi]
}

// appendSection adds cross-referenced passages below a delimiter.
func appendSection(sp *domain.StitchedPassage, header string, refs []domain.RetrievedChunk) {
	if len(refs) == 0 {
		return
	}
	sp.Text += "\n\n" + header + "\n" + joinContents(refs)
	sp.CrossReferenceIDs = chunkIDs(refs)
}

func joinContents(rows []domain.RetrievedChunk) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n\n")
}

func chunkIDs(rows []domain.RetrievedChunk) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// firstBlocks keeps the opening passage of each of the first n commentary
// blocks. rows must be in ordinal order.
func firstBlocks(rows []domain.RetrievedChunk, n int) []domain.RetrievedChunk {
	seen := make(map[int]bool, n)
	var out []domain.RetrievedChunk
	for _, r := range rows {
		cm, ok := r.Metadata.Commentary()
		if !ok || seen[cm.BlockID] {
			continue
		}
		if len(out) == n {
			break
		}
		seen[cm.BlockID] = true
		out = append(out, r)
	}
	return out
}

func firstN(rows []domain.RetrievedChunk, n int) []domain.RetrievedChunk {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
