package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/adapters/driven/embedding/retry"
	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// ollamaTags serves /api/tags listing the given models.
func ollamaTags(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[`))
		for i, m := range models {
			if i > 0 {
				_, _ = w.Write([]byte(","))
			}
			_, _ = w.Write([]byte(`{"name":"` + m + `"}`))
		}
		_, _ = w.Write([]byte(`]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantErr     bool
		errContains string
	}{
		{
			name:     "nil settings",
			settings: nil,
			wantErr:  true,
		},
		{
			name:     "unconfigured settings",
			settings: &domain.EmbeddingSettings{},
			wantErr:  true,
		},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name: "openai without key is not configured",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				Model:    "text-embedding-3-small",
			},
			wantErr:     true,
			errContains: "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			defer svc.Close()
			assert.IsType(t, &retry.EmbeddingService{}, svc, "providers are wrapped with retries")
			assert.Equal(t, tt.settings.Model, svc.ModelName())
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name     string
		settings domain.EmbeddingSettings
		want     int
	}{
		{"explicit", domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small", Dimensions: 512}, 512},
		{"known model", domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-large"}, 3072},
		{"unknown ollama model", domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "custom"}, 768},
		{"unknown openai model", domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Model: "custom"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dimensions(tt.settings))
		})
	}
}

func TestCreateOllamaEmbedding_UsesKnownDimensions(t *testing.T) {
	svc := createOllamaEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "mxbai-embed-large",
	})
	defer svc.Close()

	assert.Equal(t, 1024, svc.Dimensions())
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("model pulled", func(t *testing.T) {
		srv := ollamaTags(t, "nomic-embed-text:latest")
		settings := &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL, Model: "nomic-embed-text"}

		svc, err := CreateAndValidateEmbeddingService(context.Background(), settings)

		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.NoError(t, svc.Close())
	})

	t.Run("model missing", func(t *testing.T) {
		srv := ollamaTags(t, "all-minilm")
		settings := &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL, Model: "nomic-embed-text"}

		svc, err := CreateAndValidateEmbeddingService(context.Background(), settings)

		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
		assert.Contains(t, err.Error(), "coachkb settings embedding")
	})

	t.Run("not configured", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{})

		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestValidateEmbeddingConfig(t *testing.T) {
	t.Run("nil settings returns nil", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(nil))
	})

	t.Run("unconfigured settings returns nil", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{}))
	})

	t.Run("served model", func(t *testing.T) {
		srv := ollamaTags(t, "nomic-embed-text")
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama, BaseURL: srv.URL, Model: "nomic-embed-text",
		})
		assert.NoError(t, err)
	})

	t.Run("unserved model", func(t *testing.T) {
		srv := ollamaTags(t)
		err := ValidateEmbeddingConfig(&domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama, BaseURL: srv.URL, Model: "nomic-embed-text",
		})
		assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	})
}
