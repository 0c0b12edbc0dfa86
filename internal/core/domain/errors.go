package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Pipeline Errors.

	// ErrMalformedInput indicates an unreadable or schema-invalid input file.
	// The file is skipped and counted; the batch continues.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvariantViolation indicates a structural problem with a chunks file
	// (index gaps, duplicate indices, embedding dimension mismatch).
	// The whole file is rejected for ingestion.
	ErrInvariantViolation = errors.New("structural invariant violation")

	// ErrUnstableIdentity indicates a stable sourceKey could not be derived.
	ErrUnstableIdentity = errors.New("unstable source identity")

	// Gate Errors.

	// ErrGateFailed indicates a quarantine gate blocked the whole batch.
	ErrGateFailed = errors.New("gate failed")

	// ErrScopeMismatch indicates a gate input does not describe the current manifest scope.
	ErrScopeMismatch = errors.New("scope mismatch")

	// ErrCoverageIncomplete indicates a gate input is missing videos that are in scope.
	ErrCoverageIncomplete = errors.New("coverage incomplete")

	// Provider Errors.

	// ErrProviderUnavailable indicates the embedding provider or vector store
	// could not be reached after bounded retries.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrModelUnavailable indicates the configured embedding model is not served by the provider.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the chunk store is not configured.
	ErrStoreUnavailable = errors.New("chunk store unavailable")
)
