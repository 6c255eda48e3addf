package export

import (
	"strings"
	"testing"
)

func TestTracesToSVG(t *testing.T) {
	times := []float64{0, 0.02, 0.04}
	svg, err := TracesToSVG(times, []Trace{
		{Name: "position", Color: "#00ff88", Values: []float64{0, 0.5, 1}},
		{Name: "voltage", Color: "#ff4444", Values: []float64{-1, 2, 0}},
	}, 400, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Error("not a complete svg document")
	}
	if strings.Count(svg, "<path") != 2 || !strings.Contains(svg, ">voltage</text>") {
		t.Errorf("missing traces:\n%s", svg)
	}
	if !strings.Contains(svg, "<line") {
		t.Error("expected a zero line for a trace crossing zero")
	}
}

func TestTracesToSVGErrors(t *testing.T) {
	if _, err := TracesToSVG([]float64{0}, nil, 10, 10); err == nil {
		t.Error("expected error for a single sample")
	}
	_, err := TracesToSVG([]float64{0, 1}, []Trace{{Name: "x", Values: []float64{1}}}, 10, 10)
	if err == nil {
		t.Error("expected length mismatch error")
	}
}
