// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - TranscriptSource: Loads the manifest and enriched transcripts
//   - ChunkArtifactStore: Reads and atomically writes chunks files
//   - GateInputSource: Loads taxonomy, readiness and judgement inputs
//   - ReportSink: Persists one quarantine report per run
//   - StateStore: Per-stage change-detection state
//   - ChunkStore: Vector store holding ingested chunk rows
//   - EmbeddingService: Generates vector embeddings
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Watcher: Filesystem change notifications for watch mode.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or postprocessor package
package driven
