// Package file provides the filesystem adapters of the chunking pipeline.
//
// It reads enriched transcripts and manifests, reads and writes chunks
// files, loads the external gate inputs and writes gate reports.
//
// # Data Location
//
//	<data>/enriched/<source>/<folder>/*.enriched.json
//	<data>/chunks/<source>/<videoId>.chunks.json
//	<data>/reports/quarantine/<manifest>[.<source>].<timestamp>-<run>.json
//
// Chunks files are replaced atomically by writing a sibling temp file and
// renaming it over the target. Gate reports are created exclusively and are
// never overwritten.
package file
