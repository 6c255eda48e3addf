package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Width(46)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	statusPaused  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	statusFault   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff")).Bold(true)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	keyHint    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688")).Italic(true).MarginTop(1)

	barHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	barMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	barLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
)

// VoltageBar draws |v|/limit as a bar, red when close to saturation.
func VoltageBar(v, limit float64, width int) string {
	frac := 0.0
	if limit > 0 {
		frac = v / limit
	}
	if frac < 0 {
		frac = -frac
	}
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	sign := "+"
	if v < 0 {
		sign = "-"
	}
	bar := sign + strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case frac > 0.95:
		return barHigh.Render(bar)
	case frac > 0.5:
		return barMid.Render(bar)
	}
	return barLow.Render(bar)
}

// Sparkline renders the last width values with block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(idx, len(chars)-1))])
	}
	return b.String()
}
