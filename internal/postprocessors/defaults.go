package postprocessors

import (
	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
	"github.com/custodia-labs/coachkb/internal/postprocessors/chunker"
	"github.com/custodia-labs/coachkb/internal/postprocessors/confidence"
	"github.com/custodia-labs/coachkb/internal/postprocessors/crossref"
	"github.com/custodia-labs/coachkb/internal/postprocessors/ordinal"
)

// DefaultOrder is the build pipeline: segment, score, filter, link, renumber.
var DefaultOrder = []string{"chunker", "confidence", "floor", "crossref", "reindex"}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("confidence", func(map[string]any) (driven.PostProcessor, error) {
		return confidence.NewScorer(), nil
	})
	r.Register("floor", buildFloor)
	r.Register("crossref", func(map[string]any) (driven.PostProcessor, error) {
		return crossref.New(), nil
	})
	r.Register("reindex", func(map[string]any) (driven.PostProcessor, error) {
		return ordinal.New(), nil
	})
}

// NewBuildPipeline assembles the default pipeline for the given chunk settings.
func NewBuildPipeline(settings domain.ChunkSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(DefaultOrder, ConfigFor(settings))
}

// ConfigFor converts chunk settings into the generic processor config.
func ConfigFor(settings domain.ChunkSettings) map[string]any {
	return map[string]any{
		"chunk_size":     settings.ChunkSize,
		"overlap":        settings.ChunkOverlap,
		"min_confidence": settings.MinChunkConfidence,
	}
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between windows (default: 150)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
	}

	return chunker.New(opts...), nil
}

// buildFloor creates the confidence floor filter.
// Supported config keys:
//   - min_confidence (float): Minimum content chunk score (default: 0.30)
func buildFloor(cfg map[string]any) (driven.PostProcessor, error) {
	floor := confidence.DefaultFloor
	if v, ok := getFloatFromConfig(cfg, "min_confidence"); ok {
		floor = v
	}
	return confidence.NewFilter(floor), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getFloatFromConfig(cfg map[string]any, key string) (float64, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
