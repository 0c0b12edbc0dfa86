package domain

import (
	"fmt"
	"time"
)

// ChunksFileVersion is the current chunks artifact format version.
const ChunksFileVersion = 2

// ChunkRecord is one chunk as written to a chunks file.
type ChunkRecord struct {
	Content   string        `json:"content" validate:"required"`
	Embedding []float32     `json:"embedding"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// ChunksFile is the immutable-per-run artifact for one video.
// A new build fully replaces the previous file; it is never merged.
type ChunksFile struct {
	Version                 int       `json:"version" validate:"required"`
	SourceKey               string    `json:"sourceKey" validate:"required"`
	SourceFile              string    `json:"sourceFile"`
	SourceHash              string    `json:"sourceHash" validate:"required"`
	EmbeddingModel          string    `json:"embeddingModel"`
	ChunkSize               int       `json:"chunkSize"`
	ChunkOverlap            int       `json:"chunkOverlap"`
	MinChunkConfidence      float64   `json:"minChunkConfidence"`
	PreFilterChunkCount     int       `json:"preFilterChunkCount"`
	DroppedChunksBelowFloor int       `json:"droppedChunksBelowFloor"`
	VideoType               VideoType `json:"videoType"`
	Channel                 string    `json:"channel"`
	VideoID                 string    `json:"videoId" validate:"required"`
	VideoTitle              string    `json:"videoTitle"`
	VideoStem               string    `json:"videoStem"`
	GeneratedAt             time.Time `json:"generatedAt"`

	Chunks []ChunkRecord `json:"chunks" validate:"dive"`
}

// ValidateStructure checks the chunk-index and embedding invariants.
// A violation rejects the whole file; ingestion never takes a partial file.
// expectedDims of 0 accepts whatever dimension the first embedding has.
func (f *ChunksFile) ValidateStructure(expectedDims int) error {
	total := len(f.Chunks)
	seen := make(map[int]bool, total)
	dims := expectedDims

	for i, c := range f.Chunks {
		md := c.Metadata
		if md.TotalChunks != total {
			return fmt.Errorf("%w: chunk %d totalChunks=%d, file has %d chunks",
				ErrInvariantViolation, i, md.TotalChunks, total)
		}
		if md.ChunkIndex < 0 || md.ChunkIndex >= total {
			return fmt.Errorf("%w: chunk %d chunkIndex=%d out of bounds [0,%d)",
				ErrInvariantViolation, i, md.ChunkIndex, total)
		}
		if seen[md.ChunkIndex] {
			return fmt.Errorf("%w: duplicate chunkIndex %d", ErrInvariantViolation, md.ChunkIndex)
		}
		seen[md.ChunkIndex] = true

		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d has no embedding", ErrInvariantViolation, md.ChunkIndex)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) != dims {
			return fmt.Errorf("%w: chunk %d embedding has %d dimensions, expected %d",
				ErrInvariantViolation, md.ChunkIndex, len(c.Embedding), dims)
		}
		if md.Confidence < 0 || md.Confidence > 1 {
			return fmt.Errorf("%w: chunk %d confidence %.3f outside [0,1]",
				ErrInvariantViolation, md.ChunkIndex, md.Confidence)
		}
	}

	// With len(seen)==total and every index in bounds there can be no gaps.
	return nil
}

// Dimensions returns the embedding dimension of the file (0 when empty).
func (f *ChunksFile) Dimensions() int {
	if len(f.Chunks) == 0 {
		return 0
	}
	return len(f.Chunks[0].Embedding)
}
