// Package domain defines the core business entities for coachkb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Transcript: An enriched video transcript (segments + enrichments)
//   - Chunk: A retrieval-sized passage with confidence and metadata
//   - ChunksFile: The per-video artifact produced by the build stage
//   - StageState: Change-detection state for a pipeline stage
//   - GateReport: The record of which videos were admitted or quarantined
//   - RetrievedChunk: A query-time projection of a stored chunk
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
