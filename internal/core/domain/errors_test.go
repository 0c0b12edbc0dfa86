package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrMalformedInput", ErrMalformedInput},
		{"ErrInvariantViolation", ErrInvariantViolation},
		{"ErrUnstableIdentity", ErrUnstableIdentity},
		{"ErrGateFailed", ErrGateFailed},
		{"ErrScopeMismatch", ErrScopeMismatch},
		{"ErrCoverageIncomplete", ErrCoverageIncomplete},
		{"ErrProviderUnavailable", ErrProviderUnavailable},
		{"ErrModelUnavailable", ErrModelUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrStoreUnavailable", ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_WrappingPreservesIdentity(t *testing.T) {
	err := fmt.Errorf("load %s: %w", "a.json", ErrMalformedInput)

	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.False(t, errors.Is(err, ErrInvariantViolation))
}
