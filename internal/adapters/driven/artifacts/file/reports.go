package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/coachkb/internal/core/domain"
	"github.com/custodia-labs/coachkb/internal/core/ports/driven"
)

// reportTimeLayout is the timestamp component of report file names.
const reportTimeLayout = "20060102T150405Z"

// Ensure ReportSink implements the interface.
var _ driven.ReportSink = (*ReportSink)(nil)

// ReportSink writes one JSON gate report per run under its root.
type ReportSink struct {
	root string
}

// NewReportSink creates a sink writing to the quarantine reports directory.
func NewReportSink(root string) *ReportSink {
	return &ReportSink{root: root}
}

// WriteGateReport stores the report as
// <manifest>[.<source>].<timestamp>-<run>.json. An existing file is never
// replaced; a numeric suffix is added instead.
func (s *ReportSink) WriteGateReport(report *domain.GateReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode gate report: %w", err)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	base := reportBaseName(report)
	for attempt := 0; ; attempt++ {
		name := base + ".json"
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d.json", base, attempt)
		}
		path := filepath.Join(s.root, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create gate report: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write gate report: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close gate report: %w", err)
		}
		return path, nil
	}
}

func reportBaseName(report *domain.GateReport) string {
	manifest := strings.TrimSuffix(filepath.Base(report.Manifest), filepath.Ext(report.Manifest))
	if manifest == "" || manifest == "." {
		manifest = "all"
	}
	parts := []string{manifest}
	if report.SourceFilter != "" {
		parts = append(parts, report.SourceFilter)
	}
	stamp := report.GeneratedAt.UTC().Format(reportTimeLayout)
	return strings.Join(parts, ".") + "." + stamp + "-" + report.RunID
}
