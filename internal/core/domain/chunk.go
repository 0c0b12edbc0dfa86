package domain

// SegmentType identifies which metadata variant a chunk carries.
type SegmentType string

// Chunk segment types.
const (
	SegmentInteraction SegmentType = "INTERACTION"
	SegmentCommentary  SegmentType = "COMMENTARY"
	SegmentSummary     SegmentType = "SUMMARY"
)

// QualitySignals summarises the flagged segments that contributed to a chunk.
type QualitySignals struct {
	ArtifactCount         int      `json:"artifactCount"`
	WorstArtifactSeverity Severity `json:"worstArtifactSeverity,omitempty"`
	LowQualityCount       int      `json:"lowQualityCount"`
	DamagedSegmentIDs     []int    `json:"damagedSegmentIds,omitempty"`
	MaskedSegmentIDs      []int    `json:"maskedSegmentIds,omitempty"`
}

// BaseMetadata is shared by every chunk regardless of its variant.
type BaseMetadata struct {
	VideoID     string
	Channel     string
	VideoTitle  string
	ChunkIndex  int
	TotalChunks int
	Confidence  float64
	SegmentIDs  []int
	StartTime   float64
	EndTime     float64

	// Speaker is the coach attributed to the passage (falls back to the channel).
	Speaker string

	Quality QualitySignals
}

// MetadataVariant is implemented by the three chunk metadata variants.
// The unexported method seals the set.
type MetadataVariant interface {
	SegmentType() SegmentType
	isVariant()
}

// InteractionMetadata belongs to phase-segmented conversation passages.
type InteractionMetadata struct {
	ConversationID         int
	Phase                  string
	ConversationChunkIndex int
	Techniques             []string
	Topics                 []string

	// CommentaryBlockIDs lists the commentary blocks that reference this conversation.
	CommentaryBlockIDs []int
}

// CommentaryMetadata belongs to window-segmented commentary / section passages.
type CommentaryMetadata struct {
	BlockID      int
	SectionTitle string
	Topics       []string

	// LinkedConversationID is the conversation this commentary discusses, nil when the
	// video has no conversations.
	LinkedConversationID *int
}

// SummaryMetadata belongs to the one-per-enrichment synopsis chunk.
type SummaryMetadata struct {
	EnrichmentType EnrichmentType
	ConversationID int
	BlockID        int
	Techniques     []string
	Topics         []string
}

// SegmentType implements MetadataVariant.
func (InteractionMetadata) SegmentType() SegmentType { return SegmentInteraction }

// SegmentType implements MetadataVariant.
func (CommentaryMetadata) SegmentType() SegmentType { return SegmentCommentary }

// SegmentType implements MetadataVariant.
func (SummaryMetadata) SegmentType() SegmentType { return SegmentSummary }

func (InteractionMetadata) isVariant() {}
func (CommentaryMetadata) isVariant()  {}
func (SummaryMetadata) isVariant()     {}

// ChunkMetadata is the shared base plus exactly one variant.
type ChunkMetadata struct {
	BaseMetadata
	Variant MetadataVariant
}

// SegmentType returns the variant's segment type.
func (m ChunkMetadata) SegmentType() SegmentType {
	if m.Variant == nil {
		return ""
	}
	return m.Variant.SegmentType()
}

// IsSummary reports whether the chunk is an enrichment synopsis.
func (m ChunkMetadata) IsSummary() bool {
	return m.SegmentType() == SegmentSummary
}

// Interaction returns the interaction variant if present.
func (m ChunkMetadata) Interaction() (InteractionMetadata, bool) {
	v, ok := m.Variant.(InteractionMetadata)
	return v, ok
}

// Commentary returns the commentary variant if present.
func (m ChunkMetadata) Commentary() (CommentaryMetadata, bool) {
	v, ok := m.Variant.(CommentaryMetadata)
	return v, ok
}

// Summary returns the summary variant if present.
func (m ChunkMetadata) Summary() (SummaryMetadata, bool) {
	v, ok := m.Variant.(SummaryMetadata)
	return v, ok
}

// ConversationID returns the conversation a chunk belongs to (0 if none).
func (m ChunkMetadata) ConversationID() int {
	switch v := m.Variant.(type) {
	case InteractionMetadata:
		return v.ConversationID
	case SummaryMetadata:
		return v.ConversationID
	default:
		return 0
	}
}

// Chunk is a retrieval unit produced by the build stage.
type Chunk struct {
	Content   string
	Embedding []float32
	Metadata  ChunkMetadata
}

// Confidence returns the chunk's quality score.
func (c Chunk) Confidence() float64 {
	return c.Metadata.Confidence
}

// StoredChunk is a chunk row as inserted into the vector store.
type StoredChunk struct {
	// ID is the row id (a fresh UUID per ingest).
	ID string

	// SourceKey is the plain sourceKey for the primary lane, or its review variant.
	SourceKey string

	Content   string
	Embedding []float32
	Metadata  ChunkMetadata
}
