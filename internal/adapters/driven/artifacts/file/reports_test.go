package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

func TestReportSink_WriteGateReport(t *testing.T) {
	root := filepath.Join(t.TempDir(), "quarantine")
	sink := NewReportSink(root)
	report := &domain.GateReport{
		RunID:        "1a2b3c4d",
		GeneratedAt:  time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		Manifest:     "batch.txt",
		SourceFilter: "coachA",
		Admitted:     []string{"abc123def"},
		Quarantined:  []domain.Quarantine{{VideoID: "rev123rev", Gate: domain.GateReadiness, Reason: "status REVIEW"}},
	}

	path, err := sink.WriteGateReport(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "batch.coachA.20250301T123000Z-1a2b3c4d.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded domain.GateReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.Quarantined, decoded.Quarantined)

	again, err := sink.WriteGateReport(report)
	require.NoError(t, err)
	assert.NotEqual(t, path, again, "reports are never overwritten")
	assert.Equal(t, filepath.Join(root, "batch.coachA.20250301T123000Z-1a2b3c4d-1.json"), again)
}

func TestReportBaseName(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t, "batch.20250301T123000Z-r1",
		reportBaseName(&domain.GateReport{RunID: "r1", GeneratedAt: at, Manifest: "/tmp/batch.txt"}))
	assert.Equal(t, "all.20250301T123000Z-r1",
		reportBaseName(&domain.GateReport{RunID: "r1", GeneratedAt: at}))
}
