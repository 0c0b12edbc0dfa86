package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/coachkb/internal/core/domain"
)

// Colour palette.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourWarning = lipgloss.Color("#F9E2AF") // Yellow
	colourError   = lipgloss.Color("#F38BA8") // Red
	colourBorder  = lipgloss.Color("#45475A") // Border gray
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	labelStyle = lipgloss.NewStyle().Foreground(colourMuted).Width(14)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colourWarning)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(colourError)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colourBorder).
			Padding(0, 1)
)

type scopeRow struct {
	label string
	value int
	style lipgloss.Style
}

// renderScope draws the scope summary shown before any mutating work.
func renderScope(title string, s domain.ScopeSummary) string {
	rows := []scopeRow{
		{"Total", s.Total, valueStyle},
		{"Unchanged", s.Unchanged, valueStyle},
		{"To process", s.ToProcess, valueStyle},
		{"Skipped", s.Skipped, countStyle(s.Skipped, warnStyle)},
	}
	if s.Stage == domain.StageIngest {
		rows = append(rows,
			scopeRow{"Quarantined", s.Quarantined, countStyle(s.Quarantined, warnStyle)},
			scopeRow{"Rejected", s.Rejected, countStyle(s.Rejected, errorStyle)},
		)
	}

	lines := []string{titleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r.label)+r.style.Render(strconv.Itoa(r.value)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func countStyle(n int, nonZero lipgloss.Style) lipgloss.Style {
	if n > 0 {
		return nonZero
	}
	return valueStyle
}
