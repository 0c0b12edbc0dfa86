package driven

import (
	"time"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// TranscriptFile locates one enriched transcript on disk.
type TranscriptFile struct {
	Entry   domain.ManifestEntry
	Path    string
	ModTime time.Time
}

// TranscriptSource discovers and loads enriched transcripts.
type TranscriptSource interface {
	// LoadManifest parses a manifest file.
	LoadManifest(path string) (*domain.Manifest, error)

	// Discover lists transcript files for the given entries. Entries whose
	// transcript is missing are returned separately. Nil entries discovers
	// every transcript under the enriched root.
	Discover(entries []domain.ManifestEntry) (found []TranscriptFile, missing []domain.ManifestEntry, err error)

	// ReadTranscript returns the raw bytes and canonical transcript.
	// Decoding failures wrap domain.ErrMalformedInput.
	ReadTranscript(path string) ([]byte, *domain.Transcript, error)
}

// ChunksFileInfo locates one chunks file on disk.
type ChunksFileInfo struct {
	Source  string
	VideoID string
	Path    string
	ModTime time.Time
}

// ChunkArtifactStore reads and writes chunks files.
type ChunkArtifactStore interface {
	// PathFor returns where a video's chunks file lives.
	PathFor(source, videoID string) string

	// Stat returns the artifact's modification time, or false if absent.
	Stat(source, videoID string) (time.Time, bool)

	// Write atomically replaces a video's chunks file.
	Write(source string, file *domain.ChunksFile) error

	// List returns the chunks files for the given sources (all when empty).
	List(sources []string) ([]ChunksFileInfo, error)

	// Read returns the raw bytes and decoded chunks file.
	// Decoding and validation failures wrap domain.ErrMalformedInput.
	Read(path string) ([]byte, *domain.ChunksFile, error)
}

// GateInputSource loads the external gate inputs.
type GateInputSource interface {
	LoadTaxonomyReport(path string) (*domain.TaxonomyReport, error)
	LoadReadinessSummary(path string) (*domain.ReadinessSummary, error)
	LoadJudgements(path string) (*domain.JudgementSet, error)
}

// ReportSink persists gate reports. Reports are never overwritten.
type ReportSink interface {
	// WriteGateReport stores the report and returns its path.
	WriteGateReport(report *domain.GateReport) (string, error)
}
