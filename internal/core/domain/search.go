package domain

import "math"

// RetrievedChunk is a query-time projection of a stored chunk plus a similarity
// score. It is never persisted.
type RetrievedChunk struct {
	// ID is the store row id.
	ID string

	// SourceKey is the stored key, including the review suffix for review-lane rows.
	SourceKey string

	Content  string
	Metadata ChunkMetadata

	// Similarity is the cosine similarity to the query embedding (0-1).
	Similarity float64

	// Embedding is populated by keyword search so similarity can be computed locally.
	Embedding []float32
}

// QueryIntent is the coarse intent detected from a question.
type QueryIntent string

// Query intents.
const (
	IntentGeneral   QueryIntent = "general"
	IntentExample   QueryIntent = "example"
	IntentTechnique QueryIntent = "technique"
)

// Anchor is a disambiguating query term with the context it expects.
type Anchor struct {
	// Word is the anchor as it appeared in the question.
	Word string

	// Stem is the prefix matched against passage tokens.
	Stem string

	// Companions are context words that confirm the intended sense.
	Companions []string

	// FalsePositives are known idioms containing the anchor in the wrong sense.
	FalsePositives []string
}

// QueryPlan is the rewritten form of a natural-language question.
type QueryPlan struct {
	Question   string
	Normalized string
	Tokens     []string
	Intent     QueryIntent
	Anchors    []Anchor
}

// FallbackKeyword returns the keyword used for supplementary lexical recall.
func (p QueryPlan) FallbackKeyword() string {
	if len(p.Anchors) == 0 {
		return ""
	}
	return p.Anchors[0].Word
}

// ScoreBreakdown explains how a candidate's rerank score was composed.
type ScoreBreakdown struct {
	Vector            float64 `json:"vector"`
	Overlap           float64 `json:"overlap"`
	PhraseBoost       float64 `json:"phrase_boost"`
	AnchorBoost       float64 `json:"anchor_boost"`
	MetadataBonus     float64 `json:"metadata_bonus"`
	ConfidencePenalty float64 `json:"confidence_penalty"`
	GatingAdjustment  float64 `json:"gating_adjustment"`
	Total             float64 `json:"total"`
}

// RankedPassage is a reranked candidate.
type RankedPassage struct {
	Chunk RetrievedChunk
	Score ScoreBreakdown

	// HasAnchor reports whether the passage contains any anchor token.
	HasAnchor bool
}

// StitchedPassage is a selected passage expanded with its surrounding context.
// Stitching never mutates the stored chunk; it only changes Text.
type StitchedPassage struct {
	RankedPassage

	// Text is the primary window plus any delimited cross-reference section.
	Text string

	// ContextChunkIDs lists the store rows stitched into the primary window.
	ContextChunkIDs []string

	// CrossReferenceIDs lists the store rows appended as the secondary section.
	CrossReferenceIDs []string
}

// DiversityCaps bounds how many selected passages may share an origin.
type DiversityCaps struct {
	PerSource       int
	PerSpeaker      int
	PerConversation int
}

// DefaultDiversityCaps returns the standard caps.
func DefaultDiversityCaps() DiversityCaps {
	return DiversityCaps{PerSource: 2, PerSpeaker: 3, PerConversation: 1}
}

// RetrievalOptions configures one retrieval request.
type RetrievalOptions struct {
	// Limit is the number of passages to return.
	Limit int

	// Stitch enables conversation and cross-reference expansion.
	Stitch bool

	// IncludeReview admits review-lane rows into the candidate set.
	IncludeReview bool
}

// AnswerConfidence is the response-level confidence and its factors.
type AnswerConfidence struct {
	RetrievalStrength float64  `json:"retrieval_strength"`
	SourceConsistency float64  `json:"source_consistency"`
	PolicyCompliance  float64  `json:"policy_compliance"`
	Score             float64  `json:"score"`
	Violations        []string `json:"violations,omitempty"`
}

// RetrievalResult is the outcome of one retrieval request.
type RetrievalResult struct {
	Plan           QueryPlan
	Passages       []StitchedPassage
	CandidateCount int
	Confidence     AnswerConfidence
}

// CosineSimilarity returns the cosine similarity of two vectors, 0 when either
// is empty, zero or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
