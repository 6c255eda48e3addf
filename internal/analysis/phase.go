package analysis

import (
	"strings"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// PhasePortrait is a trajectory in the position/velocity plane.
type PhasePortrait struct {
	Points []struct{ X, Y float64 }
}

func NewPhasePortrait(states []dynamo.JointState) *PhasePortrait {
	portrait := &PhasePortrait{
		Points: make([]struct{ X, Y float64 }, len(states)),
	}
	for i, s := range states {
		portrait.Points[i].X = s.Position
		portrait.Points[i].Y = s.Velocity
	}
	return portrait
}

// ASCII draws the pp on a width by height grid, position across.
func (pp *PhasePortrait) ASCII(width, height int) string {
	if pp == nil || len(pp.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := pp.Points[0].X, pp.Points[0].X
	minY, maxY := pp.Points[0].Y, pp.Points[0].Y

	for _, p := range pp.Points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	for _, p := range pp.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '*'
		}
	}

	// axes, where visible
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
