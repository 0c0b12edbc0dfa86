package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func newTestSettingsService(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)
	service.getenv = func(k string) string { return env[k] }
	return service, store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Chunk, settings.Chunk)
	assert.Equal(t, defaults.Retrieval, settings.Retrieval)
	assert.Equal(t, defaults.Ingest, settings.Ingest)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, domain.StoreSQLite, settings.Store.Backend)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("chunk.size", int64(600))
	_ = store.Set("chunk.min_confidence", 0.5)
	_ = store.Set("ingest.lane_threshold", 0.8)
	_ = store.Set("ingest.include_review", true)
	_ = store.Set("retrieval.caps.per_source", int64(1))
	_ = store.Set("answer.policy_patterns", []any{"(?i)promise"})

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Empty(t, settings.Embedding.BaseURL)
	assert.Equal(t, 600, settings.Chunk.ChunkSize)
	assert.Equal(t, 0.5, settings.Chunk.MinChunkConfidence)
	assert.Equal(t, 0.8, settings.Ingest.LaneThreshold)
	assert.True(t, settings.Ingest.IncludeReview)
	assert.Equal(t, 1, settings.Retrieval.Caps.PerSource)
	assert.Equal(t, []string{"(?i)promise"}, settings.Answer.PolicyPatterns)
}

func TestSettingsService_Get_EnvOverrides(t *testing.T) {
	service, store := newTestSettingsService(map[string]string{
		EnvDataDir:   "/srv/coach",
		EnvOllamaURL: "http://ollama:11434",
		EnvStoreDSN:  "postgres://x",
	})
	_ = store.Set("data.dir", "/tmp/ignored")

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "/srv/coach", settings.DataDir)
	assert.Equal(t, "http://ollama:11434", settings.Embedding.BaseURL)
	assert.Equal(t, "postgres://x", settings.Store.DSN)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	service, store := newTestSettingsService(nil)
	_ = store.Set("embedding.provider", "invalid_provider")
	_ = store.Set("store.backend", "cassandra")

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, domain.StoreSQLite, settings.Store.Backend)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	service, _ := newTestSettingsService(nil)
	settings := domain.DefaultSettings()
	settings.Chunk.ChunkSize = 1200
	settings.Ingest.LaneThreshold = 0.6
	settings.Embedding.APIKey = "sk-test"

	require.NoError(t, service.Save(&settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 1200, got.Chunk.ChunkSize)
	assert.Equal(t, 0.6, got.Ingest.LaneThreshold)
	assert.Equal(t, "sk-test", got.Embedding.APIKey)
}

func TestSettingsService_Validate(t *testing.T) {
	service, _ := newTestSettingsService(nil)

	valid := domain.DefaultSettings()
	assert.NoError(t, service.Validate(&valid))

	bad := domain.DefaultSettings()
	bad.Chunk.ChunkOverlap = bad.Chunk.ChunkSize
	bad.Ingest.LaneThreshold = 1.5
	bad.Store.Backend = domain.StorePgvector

	err := service.Validate(&bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Chunk.ChunkOverlap")
	assert.Contains(t, err.Error(), "Ingest.LaneThreshold")
	assert.Contains(t, err.Error(), "Store.DSN")

	openai := domain.DefaultSettings()
	openai.Embedding.Provider = domain.AIProviderOpenAI
	assert.ErrorContains(t, service.Validate(&openai), "not configured")
}
