// Package chunker splits enriched transcripts into retrieval-sized passages.
//
// Approach enrichments are phase-segmented: turns are grouped by phase label
// and packed as "Speaker: text" lines. Commentary and section enrichments are
// window-segmented with a character overlap. Every enrichment with a usable
// description also yields one summary chunk.
package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// minLineLength drops window lines shorter than this as noise.
const minLineLength = 3

// minSummaryLength is the shortest description that yields a summary chunk.
const minSummaryLength = 10

// Processor splits transcript enrichments into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between windows in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process segments every enrichment of the transcript.
// Input chunks are ignored; this processor creates new chunks.
func (p *Processor) Process(ctx context.Context, doc *domain.BuildDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Transcript == nil {
		return nil, fmt.Errorf("%w: transcript is nil", domain.ErrInvalidInput)
	}
	tr := doc.Transcript
	quality := doc.Quality
	if quality == nil {
		quality = domain.BuildQualityIndex(tr)
	}

	enrichments := append([]domain.Enrichment(nil), tr.Enrichments...)
	sort.SliceStable(enrichments, func(i, j int) bool {
		return enrichments[i].StartSegment < enrichments[j].StartSegment
	})

	var chunks []domain.Chunk
	for _, e := range enrichments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segs := tr.SegmentsIn(e)
		var pieces []piece
		switch e.Type {
		case domain.EnrichmentApproach:
			pieces = p.phaseSegment(conversationTurns(segs, e.ConversationID), quality)
		case domain.EnrichmentCommentary, domain.EnrichmentSection:
			pieces = p.windowSegment(segs, quality)
		default:
			continue
		}

		for _, pc := range pieces {
			chunks = append(chunks, newContentChunk(tr, e, pc))
		}
		if summary, ok := newSummaryChunk(tr, e, segs); ok {
			chunks = append(chunks, summary)
		}
	}

	return chunks, nil
}

// conversationTurns keeps the turns of one conversation; interleaved
// commentary is chunked by its own enrichment.
func conversationTurns(segs []domain.Segment, conversationID int) []domain.Segment {
	if conversationID == 0 {
		return segs
	}
	out := make([]domain.Segment, 0, len(segs))
	for _, s := range segs {
		if s.ConversationID == conversationID {
			out = append(out, s)
		}
	}
	return out
}

// piece is one segmented passage before metadata is attached.
type piece struct {
	text   string
	phase  string
	segs   []domain.Segment
	masked []int
}

func base(tr *domain.Transcript, segs []domain.Segment) domain.BaseMetadata {
	md := domain.BaseMetadata{
		VideoID:    tr.VideoID,
		Channel:    tr.Channel,
		VideoTitle: tr.Title,
		Speaker:    coachOf(tr.Channel, segs),
		SegmentIDs: make([]int, 0, len(segs)),
	}
	for i, s := range segs {
		md.SegmentIDs = append(md.SegmentIDs, s.ID)
		if i == 0 || s.Start < md.StartTime {
			md.StartTime = s.Start
		}
		if s.End > md.EndTime {
			md.EndTime = s.End
		}
	}
	return md
}

// coachOf attributes a passage to the first coach speaker, falling back to the channel.
func coachOf(channel string, segs []domain.Segment) string {
	for _, s := range segs {
		if strings.EqualFold(s.SpeakerRole, "coach") && s.SpeakerID != "" {
			return s.SpeakerID
		}
	}
	return channel
}

func newContentChunk(tr *domain.Transcript, e domain.Enrichment, pc piece) domain.Chunk {
	md := domain.ChunkMetadata{BaseMetadata: base(tr, pc.segs)}
	if len(pc.masked) > 0 {
		md.Quality.MaskedSegmentIDs = pc.masked
	}

	switch e.Type {
	case domain.EnrichmentApproach:
		md.Variant = domain.InteractionMetadata{
			ConversationID: e.ConversationID,
			Phase:          pc.phase,
			Techniques:     e.Techniques,
			Topics:         e.Topics,
		}
	default:
		md.Variant = domain.CommentaryMetadata{
			BlockID:      blockOf(e),
			SectionTitle: e.Title,
			Topics:       e.Topics,
		}
	}

	return domain.Chunk{Content: pc.text, Metadata: md}
}

// newSummaryChunk builds the synopsis chunk from a description of at least
// minSummaryLength characters. Summary chunks are always fully confident.
func newSummaryChunk(tr *domain.Transcript, e domain.Enrichment, segs []domain.Segment) (domain.Chunk, bool) {
	desc := strings.TrimSpace(e.Description)
	if len(desc) < minSummaryLength {
		return domain.Chunk{}, false
	}

	md := domain.ChunkMetadata{BaseMetadata: base(tr, segs)}
	md.Confidence = 1.0
	md.Variant = domain.SummaryMetadata{
		EnrichmentType: e.Type,
		ConversationID: e.ConversationID,
		BlockID:        blockOf(e),
		Techniques:     e.Techniques,
		Topics:         e.Topics,
	}
	return domain.Chunk{Content: desc, Metadata: md}, true
}

func blockOf(e domain.Enrichment) int {
	if e.Type == domain.EnrichmentSection {
		return e.SectionID
	}
	return e.BlockID
}
