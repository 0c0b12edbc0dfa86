package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func TestParseManifest(t *testing.T) {
	input := `# batch one
coachA|Daytime approach [abc123def]

coachB | Night game [zzz999yyy]
coachA|Daytime approach [abc123def]
`
	m, err := ParseManifest("batch.txt", strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, "batch.txt", m.Name)
	assert.Equal(t, []domain.ManifestEntry{
		{Source: "coachA", Folder: "Daytime approach [abc123def]", VideoID: "abc123def"},
		{Source: "coachB", Folder: "Night game [zzz999yyy]", VideoID: "zzz999yyy"},
	}, m.Entries)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no separator", "coachA Daytime [abc123def]", "line 1"},
		{"empty source", "|Daytime [abc123def]", "expected source|folder"},
		{"no video id", "coachA|Daytime", "no [videoId] suffix"},
		{"video under two sources", "coachA|A [abc123def]\ncoachB|B [abc123def]", "listed under coachA and coachB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest("m.txt", strings.NewReader(tt.input))

			require.ErrorIs(t, err, domain.ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.txt")
	require.NoError(t, os.WriteFile(path, []byte("coachA|Daytime [abc123def]\n"), 0644))
	src := NewTranscriptSource(dir)

	m, err := src.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "batch.txt", m.Name)
	assert.Len(t, m.Entries, 1)

	_, err = src.LoadManifest(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
