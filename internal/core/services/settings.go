package services

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir           = "data.dir"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDims         = "embedding.dimensions"
	keyEmbedRetries      = "embedding.max_retries"
	keyEmbedRetryDelay   = "embedding.retry_delay_ms"
	keyEmbedRPS          = "embedding.requests_per_second"
	keyStoreBackend      = "store.backend"
	keyStoreDSN          = "store.dsn"
	keyChunkSize         = "chunk.size"
	keyChunkOverlap      = "chunk.overlap"
	keyChunkMinConf      = "chunk.min_confidence"
	keyLaneThreshold     = "ingest.lane_threshold"
	keyIncludeReview     = "ingest.include_review"
	keyAllowReview       = "ingest.allow_review_status"
	keySemMinFresh       = "ingest.semantic.min_fresh_judgements"
	keySemMinMean        = "ingest.semantic.min_mean_score"
	keySemMaxMajor       = "ingest.semantic.max_major_error_rate"
	keySemMaxHalluc      = "ingest.semantic.max_hallucination_rate"
	keyRetrLimit         = "retrieval.limit"
	keyRetrRecallLimit   = "retrieval.recall_limit"
	keyRetrRecallThresh  = "retrieval.recall_threshold"
	keyRetrKeywordLimit  = "retrieval.keyword_limit"
	keyRetrWorkers       = "retrieval.stitch_workers"
	keyCapPerSource      = "retrieval.caps.per_source"
	keyCapPerSpeaker     = "retrieval.caps.per_speaker"
	keyCapPerConv        = "retrieval.caps.per_conversation"
	keyAnswerPolicy      = "answer.policy_patterns"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// Environment variables that override the config file.
const (
	EnvDataDir   = "COACHKB_DATA_DIR"
	EnvOllamaURL = "OLLAMA_BASE_URL"
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvStoreDSN  = "COACHKB_STORE_DSN"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	validate    *validator.Validate
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings: defaults, then the config
// file, then environment overrides.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		DataDir: s.getString(keyDataDir, d.DataDir),
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(d.Embedding.Provider),
			Model:             s.configStore.GetString(keyEmbedModel),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			MaxRetries:        s.getInt(keyEmbedRetries, d.Embedding.MaxRetries),
			RetryDelayMillis:  s.getInt(keyEmbedRetryDelay, d.Embedding.RetryDelayMillis),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		Store: domain.StoreSettings{
			Backend: s.getBackend(d.Store.Backend),
			DSN:     s.configStore.GetString(keyStoreDSN),
		},
		Chunk: domain.ChunkSettings{
			ChunkSize:          s.getInt(keyChunkSize, d.Chunk.ChunkSize),
			ChunkOverlap:       s.getInt(keyChunkOverlap, d.Chunk.ChunkOverlap),
			MinChunkConfidence: s.getFloat(keyChunkMinConf, d.Chunk.MinChunkConfidence),
		},
		Ingest: domain.IngestSettings{
			LaneThreshold:     s.getFloat(keyLaneThreshold, d.Ingest.LaneThreshold),
			IncludeReview:     s.getBool(keyIncludeReview, d.Ingest.IncludeReview),
			AllowReviewStatus: s.getBool(keyAllowReview, d.Ingest.AllowReviewStatus),
			Semantic: domain.SemanticThresholds{
				MinFreshJudgements:   s.getInt(keySemMinFresh, d.Ingest.Semantic.MinFreshJudgements),
				MinMeanScore:         s.getFloat(keySemMinMean, d.Ingest.Semantic.MinMeanScore),
				MaxMajorErrorRate:    s.getFloat(keySemMaxMajor, d.Ingest.Semantic.MaxMajorErrorRate),
				MaxHallucinationRate: s.getFloat(keySemMaxHalluc, d.Ingest.Semantic.MaxHallucinationRate),
			},
		},
		Retrieval: domain.RetrievalSettings{
			Limit:           s.getInt(keyRetrLimit, d.Retrieval.Limit),
			RecallLimit:     s.getInt(keyRetrRecallLimit, d.Retrieval.RecallLimit),
			RecallThreshold: s.getFloat(keyRetrRecallThresh, d.Retrieval.RecallThreshold),
			KeywordLimit:    s.getInt(keyRetrKeywordLimit, d.Retrieval.KeywordLimit),
			StitchWorkers:   s.getInt(keyRetrWorkers, d.Retrieval.StitchWorkers),
			Caps: domain.DiversityCaps{
				PerSource:       s.getInt(keyCapPerSource, d.Retrieval.Caps.PerSource),
				PerSpeaker:      s.getInt(keyCapPerSpeaker, d.Retrieval.Caps.PerSpeaker),
				PerConversation: s.getInt(keyCapPerConv, d.Retrieval.Caps.PerConversation),
			},
		},
		Answer: domain.AnswerSettings{
			PolicyPatterns: d.Answer.PolicyPatterns,
		},
	}

	if patterns := s.configStore.GetStringSlice(keyAnswerPolicy); len(patterns) > 0 {
		settings.Answer.PolicyPatterns = patterns
	}

	// Model defaults follow the provider so switching provider alone works.
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}

	s.applyEnv(settings)

	if settings.Embedding.Provider == domain.AIProviderOllama && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaBaseURL
	}

	return settings, nil
}

func (s *SettingsService) applyEnv(settings *domain.Settings) {
	if v := s.getenv(EnvDataDir); v != "" {
		settings.DataDir = v
	}
	if v := s.getenv(EnvOllamaURL); v != "" && settings.Embedding.Provider == domain.AIProviderOllama {
		settings.Embedding.BaseURL = v
	}
	if v := s.getenv(EnvOpenAIKey); v != "" && settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = v
	}
	if v := s.getenv(EnvStoreDSN); v != "" {
		settings.Store.DSN = v
	}
}

// Save persists application settings. The API key is only written when set.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyDataDir, settings.DataDir},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedRetries, settings.Embedding.MaxRetries},
		{keyEmbedRetryDelay, settings.Embedding.RetryDelayMillis},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyStoreBackend, string(settings.Store.Backend)},
		{keyChunkSize, settings.Chunk.ChunkSize},
		{keyChunkOverlap, settings.Chunk.ChunkOverlap},
		{keyChunkMinConf, settings.Chunk.MinChunkConfidence},
		{keyLaneThreshold, settings.Ingest.LaneThreshold},
		{keyIncludeReview, settings.Ingest.IncludeReview},
		{keyAllowReview, settings.Ingest.AllowReviewStatus},
		{keyRetrLimit, settings.Retrieval.Limit},
		{keyRetrRecallLimit, settings.Retrieval.RecallLimit},
		{keyRetrRecallThresh, settings.Retrieval.RecallThreshold},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// Validate checks the settings are usable, reporting every invalid field.
func (s *SettingsService) Validate(settings *domain.Settings) error {
	var errs []error
	if err := s.validate.Struct(settings); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%w: %s fails %q", domain.ErrInvalidInput,
				strings.TrimPrefix(fe.Namespace(), "Settings."), fe.Tag()))
		}
	}
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: embedding provider %s is not configured",
			domain.ErrInvalidInput, settings.Embedding.Provider))
	}
	return errors.Join(errs...)
}

// ValidateEmbeddingConfig validates the stored embedding configuration by
// pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	backend := domain.StoreBackend(s.configStore.GetString(keyStoreBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
