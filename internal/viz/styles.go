package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles is the set of lipgloss styles derived from one theme.
type styles struct {
	board     lipgloss.Style
	panel     lipgloss.Style
	header    lipgloss.Style
	running   lipgloss.Style
	paused    lipgloss.Style
	complete  lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	warn      lipgloss.Style
	graph     lipgloss.Style
	keyHint   lipgloss.Style
	barHigh   lipgloss.Style
	barMid    lipgloss.Style
	barLow    lipgloss.Style
	helpPanel lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		board: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 2),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(58),
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		running:  lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		paused:   lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		complete: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		label:    lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:    lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
		warn:     lipgloss.NewStyle().Foreground(t.Error),
		graph:    lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 0),
		keyHint:  lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		barHigh:  lipgloss.NewStyle().Foreground(t.Success),
		barMid:   lipgloss.NewStyle().Foreground(t.Warning),
		barLow:   lipgloss.NewStyle().Foreground(t.Error),
		helpPanel: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(t.Accent).
			Padding(0, 2),
	}
}

// ProgressBar renders fraction as a bar of width cells, coloured by how
// far along it is.
func (s styles) ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = min(max(filled, 0), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case fraction > 0.8:
		return s.barHigh.Render(bar)
	case fraction > 0.4:
		return s.barMid.Render(bar)
	}
	return s.barLow.Render(bar)
}
