package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Rerank weights and adjustments.
const (
	WeightVector         = 0.85
	WeightOverlap        = 0.15
	PhraseBoost          = 0.10
	AnchorBoost          = 0.05
	InteractionBonus     = 0.04
	ExampleIntentBonus   = 0.04
	ConfidencePivot      = 0.7
	ConfidencePenalty    = 0.3
	AnchorWithoutContext = -0.15
	AnchorIdiom          = -0.5
	AnchorWithContext    = 0.10
)

// Reranker scores recalled candidates and selects a diverse top K.
type Reranker struct {
	caps domain.DiversityCaps
}

// NewReranker creates a reranker with the given diversity caps.
func NewReranker(caps domain.DiversityCaps) *Reranker {
	return &Reranker{caps: caps}
}

// Score ranks every candidate, best first. Ties are broken by row id so the
// order is reproducible.
func (r *Reranker) Score(plan domain.QueryPlan, candidates []domain.RetrievedChunk) []domain.RankedPassage {
	lo, hi := similarityRange(candidates)
	ranked := make([]domain.RankedPassage, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scorePassage(plan, c, lo, hi))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Chunk.ID < ranked[j].Chunk.ID
	})
	return ranked
}

func similarityRange(candidates []domain.RetrievedChunk) (float64, float64) {
	if len(candidates) == 0 {
		return 0, 0
	}
	lo, hi := candidates[0].Similarity, candidates[0].Similarity
	for _, c := range candidates[1:] {
		lo = min(lo, c.Similarity)
		hi = max(hi, c.Similarity)
	}
	return lo, hi
}

func scorePassage(plan domain.QueryPlan, c domain.RetrievedChunk, lo, hi float64) domain.RankedPassage {
	var b domain.ScoreBreakdown

	norm := 1.0
	if hi > lo {
		norm = (c.Similarity - lo) / (hi - lo)
	}
	b.Vector = WeightVector * norm

	tokens := tokenSet(c.Content)
	if len(plan.Tokens) > 0 {
		hits := 0
		for _, t := range plan.Tokens {
			if tokens[t] {
				hits++
			}
		}
		b.Overlap = WeightOverlap * float64(hits) / float64(len(plan.Tokens))
	}

	phrase := normalizePhrase(c.Content)
	if strings.Count(plan.Normalized, " ") >= 1 && strings.Contains(phrase, plan.Normalized) {
		b.PhraseBoost = PhraseBoost
	}

	hasAnchor := false
	for _, a := range plan.Anchors {
		if !containsStem(tokens, a.Stem) {
			continue
		}
		hasAnchor = true
		b.AnchorBoost += AnchorBoost
		b.GatingAdjustment += anchorGating(a, tokens, phrase)
	}

	if c.Metadata.SegmentType() == domain.SegmentInteraction {
		b.MetadataBonus = InteractionBonus
		if plan.Intent == domain.IntentExample {
			b.MetadataBonus += ExampleIntentBonus
		}
	}

	if conf := c.Metadata.Confidence; conf < ConfidencePivot {
		b.ConfidencePenalty = -(ConfidencePivot - conf) * ConfidencePenalty
	}

	b.Total = b.Vector + b.Overlap + b.PhraseBoost + b.AnchorBoost + b.MetadataBonus + b.ConfidencePenalty + b.GatingAdjustment
	return domain.RankedPassage{Chunk: c, Score: b, HasAnchor: hasAnchor}
}

// anchorGating penalizes an anchor seen without its expected context and
// strongly penalizes known idioms.
func anchorGating(a domain.Anchor, tokens map[string]bool, phrase string) float64 {
	for _, idiom := range a.FalsePositives {
		if strings.Contains(" "+phrase+" ", " "+idiom+" ") {
			return AnchorIdiom
		}
	}
	for _, comp := range a.Companions {
		if tokens[stem(comp)] {
			return AnchorWithContext
		}
	}
	return AnchorWithoutContext
}

func containsStem(tokens map[string]bool, prefix string) bool {
	for t := range tokens {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// diversityTally counts selected passages per origin.
type diversityTally struct {
	caps          domain.DiversityCaps
	sources       map[string]int
	speakers      map[string]int
	conversations map[string]int
}

func newDiversityTally(caps domain.DiversityCaps) *diversityTally {
	return &diversityTally{
		caps:          caps,
		sources:       make(map[string]int),
		speakers:      make(map[string]int),
		conversations: make(map[string]int),
	}
}

func origin(p domain.RankedPassage) (source, speaker, conversation string) {
	source = domain.BaseKey(p.Chunk.SourceKey)
	speaker = strings.ToLower(p.Chunk.Metadata.Speaker)
	if conv := p.Chunk.Metadata.ConversationID(); conv != 0 {
		conversation = source + "#" + strconv.Itoa(conv)
	}
	return source, speaker, conversation
}

func (t *diversityTally) fits(p domain.RankedPassage) bool {
	source, speaker, conv := origin(p)
	if t.caps.PerSource > 0 && t.sources[source] >= t.caps.PerSource {
		return false
	}
	if speaker != "" && t.caps.PerSpeaker > 0 && t.speakers[speaker] >= t.caps.PerSpeaker {
		return false
	}
	if conv != "" && t.caps.PerConversation > 0 && t.conversations[conv] >= t.caps.PerConversation {
		return false
	}
	return true
}

func (t *diversityTally) add(p domain.RankedPassage, delta int) {
	source, speaker, conv := origin(p)
	t.sources[source] += delta
	if speaker != "" {
		t.speakers[speaker] += delta
	}
	if conv != "" {
		t.conversations[conv] += delta
	}
}

// Select greedily takes ranked passages in score order under the diversity
// caps. When capping excluded every anchor match, the best anchor match that
// can fit replaces the lowest selected passage that makes room for it.
func (r *Reranker) Select(ranked []domain.RankedPassage, limit int) []domain.RankedPassage {
	if limit <= 0 {
		return nil
	}
	tally := newDiversityTally(r.caps)
	selected := make([]domain.RankedPassage, 0, limit)
	for _, p := range ranked {
		if len(selected) == limit {
			break
		}
		if !tally.fits(p) {
			logger.Debug("Diversity cap excluded %s (%s)", p.Chunk.ID, p.Chunk.SourceKey)
			continue
		}
		tally.add(p, 1)
		selected = append(selected, p)
	}

	if anyAnchor(ranked) && !anyAnchor(selected) {
		selected = r.safetyValve(ranked, selected, tally, limit)
	}
	return selected
}

func (r *Reranker) safetyValve(
	ranked, selected []domain.RankedPassage, tally *diversityTally, limit int,
) []domain.RankedPassage {
	for _, p := range ranked {
		if !p.HasAnchor {
			continue
		}
		if len(selected) < limit && tally.fits(p) {
			logger.Debug("Safety valve added anchor match %s", p.Chunk.ID)
			return append(selected, p)
		}
		for i := len(selected) - 1; i >= 0; i-- {
			tally.add(selected[i], -1)
			if tally.fits(p) {
				logger.Debug("Safety valve replaced %s with anchor match %s", selected[i].Chunk.ID, p.Chunk.ID)
				out := append(append([]domain.RankedPassage{}, selected[:i]...), selected[i+1:]...)
				out = append(out, p)
				sort.SliceStable(out, func(a, b int) bool { return out[a].Score.Total > out[b].Score.Total })
				return out
			}
			tally.add(selected[i], 1)
		}
	}
	return selected
}

func anyAnchor(passages []domain.RankedPassage) bool {
	for _, p := range passages {
		if p.HasAnchor {
			return true
		}
	}
	return false
}
