// Package tui is a live terminal view of a joint loop driving the simulated
// arm.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/loop"
	"github.com/san-kum/jointctl/internal/metrics"
	"github.com/san-kum/jointctl/internal/sim"
	"github.com/san-kum/jointctl/internal/telemetry"
)

const (
	width           = 40
	height          = 18
	historyCapacity = 300
	goalStep        = 5 * math.Pi / 180
)

type TickMsg time.Time

// Model steps the runner once per loop period.
type Model struct {
	cfg      *config.Config
	runner   *sim.Runner
	recorder *telemetry.Recorder
	metrics  []dynamo.Metric
	canvas   *Canvas
	running  bool
	err      error
	lastTick uint64
}

func New(cfg *config.Config, opts ...loop.Option) (Model, error) {
	rec := telemetry.NewRecorder(historyCapacity)
	ms := metrics.Standard(0.01)
	opts = append(opts, loop.WithTelemetry(rec))
	runner, err := sim.NewRunner(cfg, ms, opts...)
	if err != nil {
		return Model{}, err
	}
	return Model{
		cfg:      cfg,
		runner:   runner,
		recorder: rec,
		metrics:  ms,
		canvas:   NewCanvas(width, height),
		running:  true,
	}, nil
}

func (m Model) Runner() *sim.Runner { return m.runner }

func (m Model) tick() tea.Cmd {
	period := time.Duration(m.cfg.Dt * float64(time.Second))
	return tea.Tick(period, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	l := m.runner.Loop
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "h":
			l.Hold()
		case "up", "k":
			l.SetGoal(l.GoalAngle() + goalStep)
		case "down", "j":
			l.SetGoal(l.GoalAngle() - goalStep)
		case "f":
			m.runner.Joint.FailNext(5)
		case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
			// digits pick a goal in tens of degrees
			l.SetGoal(float64(key[0]-'0') * 10 * math.Pi / 180)
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.err = m.runner.Step()
		}
		return m, m.tick()
	}
	return m, nil
}

// project maps a joint angle to the end of a radius on the canvas, zero
// pointing right and positive angles counter-clockwise.
func (m Model) project(angle float64, length float64) (int, int) {
	cx, cy := width, height*2
	return cx + int(length*math.Cos(angle)), cy - int(length*math.Sin(angle))
}

func (m Model) draw() {
	l := m.runner.Loop
	mapping := l.Mapping()
	cx, cy := width, height*2
	length := float64(height*2) * 0.9

	m.canvas.Clear()
	gx, gy := m.project(l.GoalAngle(), length)
	m.canvas.DrawLine(cx, cy, gx, gy, true)
	rx, ry := m.project(mapping.ToAngle(l.Reference().Position), length*0.6)
	m.canvas.DrawLine(cx, cy, rx, ry, true)
	ax, ay := m.project(l.KinematicAngle(), length)
	m.canvas.DrawLine(cx, cy, ax, ay, false)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			m.canvas.Set(ax+dx, ay+dy)
			m.canvas.Set(cx+dx, cy+dy)
		}
	}
}

func deg(rad float64) string { return fmt.Sprintf("%7.2f°", rad*180/math.Pi) }

func (m Model) View() string {
	l := m.runner.Loop
	mapping := l.Mapping()
	m.draw()

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.cfg.Name)) + "\n")
	switch {
	case m.err != nil:
		s.WriteString(statusFault.Render("STOPPED: "+m.err.Error()) + "\n\n")
	case !m.running:
		s.WriteString(statusPaused.Render("PAUSED") + "\n\n")
	default:
		s.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.runner.Joint.Time()))
	row("Goal", deg(l.GoalAngle()))
	row("Angle", deg(l.KinematicAngle()))
	row("Reference", deg(mapping.ToAngle(l.Reference().Position)))
	row("Estimate", deg(mapping.ToAngle(l.Estimate().Position)))
	row("Velocity", fmt.Sprintf("%7.3f rad/s", mapping.VelocityToAngle(l.Estimate().Velocity)))
	row("Voltage", fmt.Sprintf("%6.2fV ", l.Voltage())+VoltageBar(l.Voltage(), m.cfg.MaxVoltage, 16))
	row("Faults", fmt.Sprintf("%d / %d ticks", l.Faults(), l.Ticks()))

	volts := m.recorder.Series(func(s dynamo.Sample) float64 { return s.Voltage })
	if len(volts) > 1 {
		chart := asciigraph.Plot(volts, asciigraph.Height(5), asciigraph.Width(28), asciigraph.Caption("Voltage"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	errs := m.recorder.Series(func(s dynamo.Sample) float64 { return s.Reference.Position - s.Measured })
	s.WriteString(labelStyle.Render("Tracking") + Sparkline(errs, 30) + "\n")

	s.WriteString("\n")
	for _, metric := range m.metrics {
		s.WriteString(fmt.Sprintf("%-15s", metric.Name()) + valueStyle.Render(fmt.Sprintf("%.4f", metric.Value())) + "\n")
	}

	s.WriteString(keyHint.Render("↑↓:Goal 0-9:Goal×10° H:Hold F:Fault\nSP:Pause Q:Quit"))
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.canvas.String()), statsStyle.Render(s.String()))
}
