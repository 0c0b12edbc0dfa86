package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
	"github.com/custodia-labs/coachkb/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// RetrievalService runs hybrid recall, reranking and stitching.
type RetrievalService struct {
	store    driven.ChunkStore
	embedder driven.EmbeddingService
	rewriter *QueryRewriter
	reranker *Reranker
	stitcher *Stitcher
	scorer   *AnswerScorer
	settings domain.RetrievalSettings
}

// NewRetrievalService creates a retriever over the given store and embedder.
func NewRetrievalService(
	store driven.ChunkStore,
	embedder driven.EmbeddingService,
	settings domain.RetrievalSettings,
	answer domain.AnswerSettings,
) (*RetrievalService, error) {
	scorer, err := NewAnswerScorer(answer.PolicyPatterns)
	if err != nil {
		return nil, err
	}
	return &RetrievalService{
		store:    store,
		embedder: embedder,
		rewriter: NewQueryRewriter(),
		reranker: NewReranker(settings.Caps),
		stitcher: NewStitcher(store, settings.StitchWorkers),
		scorer:   scorer,
		settings: settings,
	}, nil
}

// Retrieve answers one question with ranked, diversified passages.
func (s *RetrievalService) Retrieve(
	ctx context.Context, question string, opts domain.RetrievalOptions,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Question: %q", question)

	plan := s.rewriter.Rewrite(question)
	result := &domain.RetrievalResult{Plan: plan, Passages: []domain.StitchedPassage{}}
	if len(plan.Tokens) == 0 {
		logger.Debug("Empty question, returning no passages")
		return result, nil
	}
	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.settings.Limit
	}
	logger.Debug("Intent: %s, tokens: %v, anchors: %d, limit: %d", plan.Intent, plan.Tokens, len(plan.Anchors), limit)

	candidates, err := s.recall(ctx, plan, opts.IncludeReview)
	if err != nil {
		return nil, err
	}
	result.CandidateCount = len(candidates)
	logger.Debug("Recalled %d candidates", len(candidates))

	ranked := s.reranker.Select(s.reranker.Score(plan, candidates), limit)
	if opts.Stitch {
		result.Passages = s.stitcher.Stitch(ctx, ranked)
	} else {
		result.Passages = make([]domain.StitchedPassage, len(ranked))
		for i, p := range ranked {
			result.Passages[i] = domain.StitchedPassage{RankedPassage: p, Text: p.Chunk.Content}
		}
	}
	result.Confidence = s.scorer.Score(result.Passages, "")
	logger.Info("Retrieved %d passages from %d candidates", len(result.Passages), result.CandidateCount)
	return result, nil
}

// recall gathers candidates by vector similarity, adding lexical matches for
// the fallback keyword when no vector hit contains an anchor.
func (s *RetrievalService) recall(
	ctx context.Context, plan domain.QueryPlan, includeReview bool,
) ([]domain.RetrievedChunk, error) {
	query, err := s.embedder.Embed(ctx, plan.Question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.store.SearchSimilar(ctx, query, s.settings.RecallLimit, s.settings.RecallThreshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	var candidates []domain.RetrievedChunk
	for _, h := range hits {
		if !includeReview && domain.IsReviewKey(h.SourceKey) {
			continue
		}
		seen[h.ID] = true
		candidates = append(candidates, h)
	}

	keyword := plan.FallbackKeyword()
	if keyword == "" || s.settings.KeywordLimit == 0 || anchorInAny(plan, candidates) {
		return candidates, nil
	}

	logger.Debug("No vector hit contains %q, running keyword recall", keyword)
	lexical, err := s.store.SearchKeyword(ctx, keyword, s.settings.KeywordLimit)
	if err != nil {
		logger.Warn("keyword recall failed: %v", err)
		return candidates, nil
	}
	for _, h := range lexical {
		if seen[h.ID] || (!includeReview && domain.IsReviewKey(h.SourceKey)) {
			continue
		}
		seen[h.ID] = true
		h.Similarity = domain.CosineSimilarity(query, h.Embedding)
		candidates = append(candidates, h)
	}
	return candidates, nil
}

func anchorInAny(plan domain.QueryPlan, candidates []domain.RetrievedChunk) bool {
	for _, a := range plan.Anchors {
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c.Content), a.Stem) {
				return true
			}
		}
	}
	return false
}

// AnswerConfidence scores an answer against the passages it was built from.
func (s *RetrievalService) AnswerConfidence(passages []domain.StitchedPassage, answer string) domain.AnswerConfidence {
	return s.scorer.Score(passages, answer)
}
