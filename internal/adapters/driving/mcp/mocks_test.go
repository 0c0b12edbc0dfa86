package mcp

import (
	"context"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	result   *domain.RetrievalResult
	err      error
	question string
	opts     domain.RetrievalOptions
	answer   string
}

func (m *mockRetriever) Retrieve(_ context.Context, question string, opts domain.RetrievalOptions) (*domain.RetrievalResult, error) {
	m.question, m.opts = question, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{Passages: []domain.StitchedPassage{}}, nil
	}
	return m.result, nil
}

func (m *mockRetriever) AnswerConfidence(passages []domain.StitchedPassage, answer string) domain.AnswerConfidence {
	m.answer = answer
	return domain.AnswerConfidence{Score: 0.5, PolicyCompliance: 1, RetrievalStrength: float64(len(passages))}
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings *domain.Settings
	err      error
}

func (m *mockSettingsService) Get() (*domain.Settings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) Save(_ *domain.Settings) error {
	return m.err
}

func (m *mockSettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

func (m *mockSettingsService) Validate(_ *domain.Settings) error {
	return m.err
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.err
}

func samplePassage(id string) domain.StitchedPassage {
	return domain.StitchedPassage{
		RankedPassage: domain.RankedPassage{
			Chunk: domain.RetrievedChunk{
				ID:         id,
				SourceKey:  "coachA/abc123def",
				Content:    "Coach: hey",
				Similarity: 0.8,
				Metadata: domain.ChunkMetadata{
					BaseMetadata: domain.BaseMetadata{Speaker: "Coach", Confidence: 0.9},
					Variant:      domain.InteractionMetadata{ConversationID: 1},
				},
			},
			Score: domain.ScoreBreakdown{Vector: 0.85, Total: 0.95},
		},
		Text: "Coach: hey\n\nTarget: hi",
	}
}
