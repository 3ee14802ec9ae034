package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pidsim/internal/metrics"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(16)

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	barFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	barHalf  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	barEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// MetricRow renders one "label value" line.
func MetricRow(label string, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value)
}

// MetricsPanel renders a sorted metric map inside a titled panel.
func MetricsPanel(title string, values map[string]float64) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := []string{Title.Render(title)}
	for _, name := range names {
		rows = append(rows, MetricRow(name, fmt.Sprintf("%.6f", values[name])))
	}
	return Panel.Render(strings.Join(rows, "\n"))
}

// RecoveryPanel renders disturbance recovery figures for one run.
func RecoveryPanel(name string, r metrics.Recovery) string {
	recovery := StatusFailed.Render("not recovered")
	if r.Recovered {
		recovery = MetricValue.Render(fmt.Sprintf("%.3f s", r.RecoveryTime))
	}

	rows := []string{
		Title.Render(name),
		MetricRow("pre level", fmt.Sprintf("%.4f", r.PreLevel)),
		MetricRow("min after", fmt.Sprintf("%.4f", r.MinAfter)),
		MetricRow("drop", fmt.Sprintf("%.4f", r.Drop)),
		MetricRow("band", fmt.Sprintf("[%.4f, %.4f]", r.BandLow, r.BandHigh)),
		MetricLabel.Render("recovery") + recovery,
	}
	return Panel.Render(strings.Join(rows, "\n"))
}

// ProgressBar renders a bar filled to percent (0..1).
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if percent > 0.8 {
		return barFull.Render(bar)
	} else if percent > 0.4 {
		return barHalf.Render(bar)
	}
	return barEmpty.Render(bar)
}
