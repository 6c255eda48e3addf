// Package export renders recorded runs for viewing outside the terminal.
package export

import (
	"fmt"
	"math"
	"strings"
)

// Trace is one named line on a chart.
type Trace struct {
	Name   string
	Color  string
	Values []float64
}

// TracesToSVG plots traces against times on shared axes with a legend.
func TracesToSVG(times []float64, traces []Trace, width, height int) (string, error) {
	if len(times) < 2 {
		return "", fmt.Errorf("svg: need at least 2 samples, got %d", len(times))
	}
	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, tr := range traces {
		if len(tr.Values) != len(times) {
			return "", fmt.Errorf("svg: trace %s has %d samples, want %d", tr.Name, len(tr.Values), len(times))
		}
		for _, v := range tr.Values {
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
	}
	if len(traces) == 0 {
		minY, maxY = 0, 1
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	if minY < 0 && maxY > 0 {
		zero := float64(height) - (0-minY)/rangeY*float64(height)
		sb.WriteString(fmt.Sprintf(`<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#333344"/>
`, zero, width, zero))
	}

	for i, tr := range traces {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, tr.Color))
		for j, v := range tr.Values {
			x := (times[j] - minX) / rangeX * float64(width)
			y := float64(height) - (v-minY)/rangeY*float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
		sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16*(i+1), tr.Color, tr.Name))
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}
