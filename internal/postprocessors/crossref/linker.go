// Package crossref links commentary passages to the conversations they discuss.
package crossref

import (
	"context"
	"sort"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Block is a maximal run of consecutive commentary segments.
type Block struct {
	SegmentIDs []int
}

func (b Block) first() int { return b.SegmentIDs[0] }
func (b Block) last() int  { return b.SegmentIDs[len(b.SegmentIDs)-1] }

type span struct {
	id       int
	min, max int
}

// Linker resolves commentary blocks to conversations and stores the link on
// both sides. It implements the PostProcessor interface.
type Linker struct{}

// New creates a cross-reference linker.
func New() *Linker {
	return &Linker{}
}

// Name returns the processor name.
func (l *Linker) Name() string {
	return "crossref"
}

// Process sets LinkedConversationID on commentary chunks and
// CommentaryBlockIDs on interaction chunks.
func (l *Linker) Process(_ context.Context, doc *domain.BuildDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Transcript == nil {
		return chunks, nil
	}
	segs := sortedSegments(doc.Transcript)
	blocks := Blocks(segs)
	convByBlock := make(map[int]*int, len(blocks))
	blockOfSeg := make(map[int]int)
	for i, b := range blocks {
		convByBlock[i] = Link(b, segs)
		for _, id := range b.SegmentIDs {
			blockOfSeg[id] = i
		}
	}
	convOfSeg := make(map[int]int, len(segs))
	for _, s := range segs {
		convOfSeg[s.ID] = s.ConversationID
	}

	refs := make(map[int][]int)
	for i := range chunks {
		cm, ok := chunks[i].Metadata.Commentary()
		if !ok {
			continue
		}
		cm.LinkedConversationID = resolve(chunks[i].Metadata.SegmentIDs, blockOfSeg, convByBlock, convOfSeg)
		chunks[i].Metadata.Variant = cm
		if cm.LinkedConversationID != nil {
			refs[*cm.LinkedConversationID] = appendUnique(refs[*cm.LinkedConversationID], cm.BlockID)
		}
	}

	for i := range chunks {
		im, ok := chunks[i].Metadata.Interaction()
		if !ok {
			continue
		}
		ids := append([]int(nil), refs[im.ConversationID]...)
		sort.Ints(ids)
		im.CommentaryBlockIDs = ids
		chunks[i].Metadata.Variant = im
	}
	return chunks, nil
}

// resolve links a commentary chunk through the block of its first commentary
// segment. Sections spanning only conversation turns link to that conversation.
func resolve(segmentIDs []int, blockOfSeg map[int]int, convByBlock map[int]*int, convOfSeg map[int]int) *int {
	for _, id := range segmentIDs {
		if b, ok := blockOfSeg[id]; ok {
			return convByBlock[b]
		}
	}
	for _, id := range segmentIDs {
		if c := convOfSeg[id]; c != 0 {
			return &c
		}
	}
	return nil
}

func appendUnique(ids []int, id int) []int {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func sortedSegments(tr *domain.Transcript) []domain.Segment {
	segs := append([]domain.Segment(nil), tr.Segments...)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].ID < segs[j].ID })
	return segs
}

// Blocks groups consecutive commentary segments (conversation id 0).
func Blocks(segs []domain.Segment) []Block {
	var (
		out []Block
		cur []int
	)
	for _, s := range segs {
		if s.IsCommentary() {
			cur = append(cur, s.ID)
			continue
		}
		if len(cur) > 0 {
			out = append(out, Block{SegmentIDs: cur})
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, Block{SegmentIDs: cur})
	}
	return out
}

// Link returns the conversation a commentary block discusses, or nil when the
// video has no conversations. segs must be sorted by id.
func Link(b Block, segs []domain.Segment) *int {
	spans := conversationSpans(segs)
	if len(spans) == 0 {
		return nil
	}

	prev, next := 0, 0
	for _, s := range segs {
		if s.IsCommentary() {
			continue
		}
		if s.ID < b.first() {
			prev = s.ConversationID
		} else if s.ID > b.last() && next == 0 {
			next = s.ConversationID
		}
	}

	var linked int
	switch {
	case prev == 0:
		linked = firstConversation(spans)
	case next == 0:
		linked = lastConversation(spans)
	case prev == next:
		linked = prev
	default:
		// Between two different conversations, including when interleaving
		// puts the block inside another conversation's range: a debrief of
		// the one just finished.
		linked = prev
	}
	return &linked
}

func conversationSpans(segs []domain.Segment) []span {
	byID := make(map[int]*span)
	var order []int
	for _, s := range segs {
		if s.IsCommentary() {
			continue
		}
		sp, ok := byID[s.ConversationID]
		if !ok {
			byID[s.ConversationID] = &span{id: s.ConversationID, min: s.ID, max: s.ID}
			order = append(order, s.ConversationID)
			continue
		}
		sp.min = min(sp.min, s.ID)
		sp.max = max(sp.max, s.ID)
	}
	out := make([]span, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func firstConversation(spans []span) int {
	best := spans[0]
	for _, s := range spans[1:] {
		if s.min < best.min {
			best = s
		}
	}
	return best.id
}

func lastConversation(spans []span) int {
	best := spans[0]
	for _, s := range spans[1:] {
		if s.max > best.max {
			best = s
		}
	}
	return best.id
}
