package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// Ensure GateInputSource implements the interface.
var _ driven.GateInputSource = (*GateInputSource)(nil)

// GateInputSource loads the externally produced gate inputs from JSON files.
type GateInputSource struct{}

// NewGateInputSource creates a gate input loader.
func NewGateInputSource() *GateInputSource {
	return &GateInputSource{}
}

// LoadTaxonomyReport loads the taxonomy coverage report.
func (GateInputSource) LoadTaxonomyReport(path string) (*domain.TaxonomyReport, error) {
	var r domain.TaxonomyReport
	if err := loadInput(path, "taxonomy report", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadReadinessSummary loads the per-video readiness summary.
func (GateInputSource) LoadReadinessSummary(path string) (*domain.ReadinessSummary, error) {
	var r domain.ReadinessSummary
	if err := loadInput(path, "readiness summary", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadJudgements loads the recorded semantic judgements.
func (GateInputSource) LoadJudgements(path string) (*domain.JudgementSet, error) {
	var r domain.JudgementSet
	if err := loadInput(path, "judgements", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func loadInput(path, kind string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, path)
		}
		return fmt.Errorf("read %s: %w", kind, err)
	}
	if err := decodeValid(raw, v); err != nil {
		return fmt.Errorf("%s %s: %w", kind, filepath.Base(path), err)
	}
	return nil
}
