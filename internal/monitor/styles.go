package monitor

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusFrozen  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	statusFailed  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))

	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(12)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff00ff")).Bold(true)
	graphStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true)

	sparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	sparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	sparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width values as block characters, colored by
// their position in the range of the window.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo

	var b strings.Builder
	for _, v := range values {
		level := 0.5
		if span > 0 {
			level = (v - lo) / span
		}
		bar := string(sparkBars[int(level*float64(len(sparkBars)-1))])
		switch {
		case level > 0.66:
			b.WriteString(sparkHigh.Render(bar))
		case level > 0.33:
			b.WriteString(sparkMid.Render(bar))
		default:
			b.WriteString(sparkLow.Render(bar))
		}
	}
	return b.String()
}
