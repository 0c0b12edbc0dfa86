package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func TestSettingsCmd_Show(t *testing.T) {
	f := setupFactory(t)
	f.settings.settings.Embedding.Provider = domain.AIProviderOpenAI
	f.settings.settings.Embedding.APIKey = "sk-1234567890abcdef"
	f.settings.settings.Store = domain.StoreSettings{Backend: domain.StorePgvector, DSN: "postgres://kb:secret@db:5432/kb"}

	out, err := execute(t, "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Provider: OpenAI (cloud)")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.Contains(t, out, "DSN: postgres://kb:****@db:5432/kb")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsCmd_Embedding(t *testing.T) {
	f := setupFactory(t)
	rootCmd.SetIn(bytes.NewBufferString("2\n\nsk-test-key-12345\n"))
	defer rootCmd.SetIn(nil)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"settings", "embedding"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.NotNil(t, f.settings.saved)
	assert.Equal(t, domain.AIProviderOpenAI, f.settings.saved.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", f.settings.saved.Embedding.Model)
	assert.Equal(t, "sk-test-key-12345", f.settings.saved.Embedding.APIKey)
	assert.Equal(t, 1536, f.settings.saved.Embedding.Dimensions)
	assert.Contains(t, buf.String(), "Validating configuration... OK")
}

func TestSettingsCmd_EmbeddingUnreachable(t *testing.T) {
	f := setupFactory(t)
	f.settings.pingErr = domain.ErrProviderUnavailable
	rootCmd.SetIn(bytes.NewBufferString("1\n\n"))
	defer rootCmd.SetIn(nil)
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"settings", "embedding"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:****@h/db", maskDSN("postgres://u:p@h/db"))
	assert.Equal(t, "postgres://u@h/db", maskDSN("postgres://u@h/db"))
	assert.Equal(t, "host=h user=u", maskDSN("host=h user=u"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
