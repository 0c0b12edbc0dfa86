package domain

import (
	"encoding/json"
	"fmt"
)

// metadataWire is the flat JSON shape of chunk metadata in chunks files and store rows.
type metadataWire struct {
	SegmentType SegmentType `json:"segmentType"`
	IsSummary   bool        `json:"isSummary"`
	ChunkIndex  int         `json:"chunkIndex"`
	TotalChunks int         `json:"totalChunks"`
	Confidence  float64     `json:"chunkConfidenceScore"`

	VideoID    string         `json:"videoId"`
	Channel    string         `json:"channel,omitempty"`
	VideoTitle string         `json:"videoTitle,omitempty"`
	SegmentIDs []int          `json:"segmentIds,omitempty"`
	StartTime  float64        `json:"startTime"`
	EndTime    float64        `json:"endTime"`
	Speaker    string         `json:"speaker,omitempty"`
	Quality    QualitySignals `json:"quality"`

	ConversationID         int      `json:"conversationId,omitempty"`
	Phase                  string   `json:"phase,omitempty"`
	ConversationChunkIndex int      `json:"conversationChunkIndex,omitempty"`
	Techniques             []string `json:"techniques,omitempty"`
	Topics                 []string `json:"topics,omitempty"`
	CommentaryBlockIDs     []int    `json:"commentaryBlockIds,omitempty"`

	BlockID              *int   `json:"blockId,omitempty"`
	SectionTitle         string `json:"sectionTitle,omitempty"`
	LinkedConversationID *int   `json:"linkedConversationId,omitempty"`

	EnrichmentType EnrichmentType `json:"enrichmentType,omitempty"`
}

// MarshalJSON flattens the base and variant into one object.
func (m ChunkMetadata) MarshalJSON() ([]byte, error) {
	w := metadataWire{
		SegmentType: m.SegmentType(),
		IsSummary:   m.IsSummary(),
		ChunkIndex:  m.ChunkIndex,
		TotalChunks: m.TotalChunks,
		Confidence:  m.Confidence,
		VideoID:     m.VideoID,
		Channel:     m.Channel,
		VideoTitle:  m.VideoTitle,
		SegmentIDs:  m.SegmentIDs,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Speaker:     m.Speaker,
		Quality:     m.Quality,
	}

	switch v := m.Variant.(type) {
	case InteractionMetadata:
		w.ConversationID = v.ConversationID
		w.Phase = v.Phase
		w.ConversationChunkIndex = v.ConversationChunkIndex
		w.Techniques = v.Techniques
		w.Topics = v.Topics
		w.CommentaryBlockIDs = v.CommentaryBlockIDs
	case CommentaryMetadata:
		blockID := v.BlockID
		w.BlockID = &blockID
		w.SectionTitle = v.SectionTitle
		w.Topics = v.Topics
		w.LinkedConversationID = v.LinkedConversationID
	case SummaryMetadata:
		blockID := v.BlockID
		w.BlockID = &blockID
		w.EnrichmentType = v.EnrichmentType
		w.ConversationID = v.ConversationID
		w.Techniques = v.Techniques
		w.Topics = v.Topics
	case nil:
		return nil, fmt.Errorf("%w: chunk metadata has no variant", ErrInvalidInput)
	}

	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the tagged variant from the flat object.
func (m *ChunkMetadata) UnmarshalJSON(data []byte) error {
	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.BaseMetadata = BaseMetadata{
		VideoID:     w.VideoID,
		Channel:     w.Channel,
		VideoTitle:  w.VideoTitle,
		ChunkIndex:  w.ChunkIndex,
		TotalChunks: w.TotalChunks,
		Confidence:  w.Confidence,
		SegmentIDs:  w.SegmentIDs,
		StartTime:   w.StartTime,
		EndTime:     w.EndTime,
		Speaker:     w.Speaker,
		Quality:     w.Quality,
	}

	segmentType := w.SegmentType
	if w.IsSummary {
		segmentType = SegmentSummary
	}

	switch segmentType {
	case SegmentInteraction:
		m.Variant = InteractionMetadata{
			ConversationID:         w.ConversationID,
			Phase:                  w.Phase,
			ConversationChunkIndex: w.ConversationChunkIndex,
			Techniques:             w.Techniques,
			Topics:                 w.Topics,
			CommentaryBlockIDs:     w.CommentaryBlockIDs,
		}
	case SegmentCommentary:
		m.Variant = CommentaryMetadata{
			BlockID:              derefInt(w.BlockID),
			SectionTitle:         w.SectionTitle,
			Topics:               w.Topics,
			LinkedConversationID: w.LinkedConversationID,
		}
	case SegmentSummary:
		m.Variant = SummaryMetadata{
			EnrichmentType: w.EnrichmentType,
			ConversationID: w.ConversationID,
			BlockID:        derefInt(w.BlockID),
			Techniques:     w.Techniques,
			Topics:         w.Topics,
		}
	default:
		return fmt.Errorf("%w: unknown segment type %q", ErrInvalidInput, w.SegmentType)
	}

	return nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
