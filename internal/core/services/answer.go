package services

import (
	"fmt"
	"regexp"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Answer confidence weights.
const (
	WeightStrength    = 0.5
	WeightConsistency = 0.3
	WeightCompliance  = 0.2

	// ViolationPenalty is subtracted from compliance per matched pattern.
	ViolationPenalty = 0.2
)

// AnswerScorer computes response-level confidence from the final passages
// and, when given, the generated answer.
type AnswerScorer struct {
	patterns []*regexp.Regexp
}

// NewAnswerScorer compiles the policy violation patterns.
func NewAnswerScorer(patterns []string) (*AnswerScorer, error) {
	s := &AnswerScorer{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: policy pattern %q: %v", domain.ErrInvalidInput, p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Score combines retrieval strength, source consistency and policy
// compliance as a weighted sum clamped to [0,1].
func (s *AnswerScorer) Score(passages []domain.StitchedPassage, answer string) domain.AnswerConfidence {
	sims := make([]float64, len(passages))
	for i, p := range passages {
		sims[i] = p.Chunk.Similarity
	}

	c := domain.AnswerConfidence{
		RetrievalStrength: RetrievalStrength(sims),
		SourceConsistency: SourceConsistency(sims),
		PolicyCompliance:  1,
	}
	for _, re := range s.patterns {
		if re.MatchString(answer) {
			c.Violations = append(c.Violations, re.String())
		}
	}
	c.PolicyCompliance = clamp01(1 - ViolationPenalty*float64(len(c.Violations)))
	c.Score = clamp01(WeightStrength*c.RetrievalStrength + WeightConsistency*c.SourceConsistency + WeightCompliance*c.PolicyCompliance)
	return c
}

// RetrievalStrength rescales the mean similarity from [0.5,1] to [0,1].
func RetrievalStrength(sims []float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	return clamp01((mean(sims) - 0.5) / 0.5)
}

// SourceConsistency is penalized by similarity variance and slightly
// rewarded for agreeing passages.
func SourceConsistency(sims []float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	m := mean(sims)
	var variance float64
	for _, v := range sims {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(sims))
	bonus := min(0.1, 0.05*float64(len(sims)-1))
	return clamp01(1 - min(1, variance*10) + bonus)
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
