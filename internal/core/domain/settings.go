package domain

import "path/filepath"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// StoreBackend identifies the vector store implementation.
type StoreBackend string

// Available store backends.
const (
	// StoreSQLite is the embedded single-file store.
	StoreSQLite StoreBackend = "sqlite"

	// StorePgvector is PostgreSQL with the pgvector extension.
	StorePgvector StoreBackend = "pgvector"

	// StoreMemory keeps rows in process memory (tests and dry runs).
	StoreMemory StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreSQLite, StorePgvector, StoreMemory:
		return true
	default:
		return false
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider `validate:"oneof=ollama openai"`

	// Model is the embedding model name.
	Model string `validate:"required"`

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the expected vector size; 0 accepts the model's native size.
	Dimensions int `validate:"gte=0"`

	// MaxRetries bounds retries per embedding call.
	MaxRetries int `validate:"gte=0"`

	// RetryDelayMillis is the fixed delay between retries.
	RetryDelayMillis int `validate:"gte=0"`

	// RequestsPerSecond rate-limits outbound embedding calls (0 = unlimited).
	RequestsPerSecond float64 `validate:"gte=0"`
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	Backend StoreBackend `validate:"oneof=sqlite pgvector memory"`

	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string `validate:"required_if=Backend pgvector"`
}

// ChunkSettings configures the build stage.
type ChunkSettings struct {
	ChunkSize          int     `validate:"gt=0"`
	ChunkOverlap       int     `validate:"gte=0,ltfield=ChunkSize"`
	MinChunkConfidence float64 `validate:"gte=0,lte=1"`
}

// IngestSettings configures the ingest stage.
type IngestSettings struct {
	LaneThreshold     float64 `validate:"gte=0,lte=1"`
	IncludeReview     bool
	AllowReviewStatus bool
	Semantic          SemanticThresholds
}

// RetrievalSettings configures the retriever.
type RetrievalSettings struct {
	Limit           int     `validate:"gt=0"`
	RecallLimit     int     `validate:"gtefield=Limit"`
	RecallThreshold float64 `validate:"gte=0,lte=1"`
	KeywordLimit    int     `validate:"gte=0"`
	Caps            DiversityCaps
	StitchWorkers   int `validate:"gt=0"`
}

// AnswerSettings configures answer confidence scoring.
type AnswerSettings struct {
	// PolicyPatterns are regular expressions whose matches in an answer count
	// as policy violations.
	PolicyPatterns []string
}

// Settings holds all application settings.
type Settings struct {
	DataDir   string `validate:"required"`
	Embedding EmbeddingSettings
	Store     StoreSettings
	Chunk     ChunkSettings
	Ingest    IngestSettings
	Retrieval RetrievalSettings
	Answer    AnswerSettings
}

// EnrichedDir is where enriched transcripts are read from.
func (s Settings) EnrichedDir() string { return filepath.Join(s.DataDir, "enriched") }

// ChunksDir is where chunks files are written.
func (s Settings) ChunksDir() string { return filepath.Join(s.DataDir, "chunks") }

// StateDir holds the per-stage state files.
func (s Settings) StateDir() string { return filepath.Join(s.DataDir, "state") }

// ReportsDir holds the quarantine reports.
func (s Settings) ReportsDir() string { return filepath.Join(s.DataDir, "reports", "quarantine") }

// StorePath is the sqlite store directory.
func (s Settings) StorePath() string { return filepath.Join(s.DataDir, "store") }

// DefaultSettings returns settings with the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		DataDir: "data",
		Embedding: EmbeddingSettings{
			Provider:         AIProviderOllama,
			Model:            "nomic-embed-text",
			MaxRetries:       3,
			RetryDelayMillis: 2000,
		},
		Store: StoreSettings{
			Backend: StoreSQLite,
		},
		Chunk: ChunkSettings{
			ChunkSize:          1000,
			ChunkOverlap:       150,
			MinChunkConfidence: 0.30,
		},
		Ingest: IngestSettings{
			LaneThreshold: 0.7,
			Semantic: SemanticThresholds{
				MinFreshJudgements:   1,
				MinMeanScore:         0.6,
				MaxMajorErrorRate:    0.15,
				MaxHallucinationRate: 0.05,
			},
		},
		Retrieval: RetrievalSettings{
			Limit:           5,
			RecallLimit:     40,
			RecallThreshold: 0.2,
			KeywordLimit:    20,
			Caps:            DefaultDiversityCaps(),
			StitchWorkers:   4,
		},
		Answer: AnswerSettings{
			PolicyPatterns: DefaultPolicyPatterns(),
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// DefaultPolicyPatterns flags answers that promise outcomes or pressure past a refusal.
func DefaultPolicyPatterns() []string {
	return []string{
		`(?i)\bguarantee(d|s)?\b`,
		`(?i)\b(ignore|push past|override) (her|his|their) (no|refusal)\b`,
		`(?i)\bget (her|him|them) drunk\b`,
		`(?i)\b(manipulat|coerc)\w*`,
	}
}
