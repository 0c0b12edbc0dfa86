// Package services holds the coachkb pipeline logic behind the driving ports.
//
// The build side turns enriched transcripts into chunks files (BuildService),
// tracks what changed between runs (tracker) and loads them into the store
// after the quality gates and lane routing (IngestService). The query side
// rewrites a question into a plan, reranks recalled passages under diversity
// caps, stitches conversation context around them and scores answer
// confidence (Retriever).
//
// Services only talk to the outside world through driven ports.
package services
