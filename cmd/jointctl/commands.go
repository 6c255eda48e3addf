package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/jointctl/internal/analysis"
	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/export"
	"github.com/san-kum/jointctl/internal/loop"
	"github.com/san-kum/jointctl/internal/metrics"
	"github.com/san-kum/jointctl/internal/optim"
	"github.com/san-kum/jointctl/internal/physics"
	"github.com/san-kum/jointctl/internal/profile"
	"github.com/san-kum/jointctl/internal/scenario"
	"github.com/san-kum/jointctl/internal/sim"
	"github.com/san-kum/jointctl/internal/storage"
	"github.com/san-kum/jointctl/internal/telemetry"
	"github.com/san-kum/jointctl/internal/tui"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// loadConfig resolves --config, --preset or the default, then applies the
// flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q, try: %s", preset, strings.Join(sortedPresets(), ", "))
		}
	default:
		cfg = config.DefaultConfig()
	}

	f := cmd.Flags()
	if f.Changed("goal") {
		cfg.Sim.Goal = goal
	}
	if f.Changed("initial") {
		cfg.Sim.InitialAngle = initial
	}
	if f.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if f.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if f.Changed("noise") {
		cfg.Sim.NoiseStdDev = noise
	}
	if f.Changed("feedforward") {
		cfg.Tuning.Feedforward = ffwd
	}
	return cfg, cfg.Validate()
}

func sortedPresets() []string {
	names := config.ListPresets()
	sort.Strings(names)
	return names
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	runner, err := sim.NewRunner(cfg, metrics.Standard(settleBand),
		loop.WithLogger(slog.Default()),
		loop.WithTelemetry(telemetry.Logger{Log: slog.Default(), Every: 25}))
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := runner.Run(ctx, runner.Ticks())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	printSummary(cfg, result, elapsed)
	plotResult(cfg, result)
	return saveResult(cfg.Sim.Seed, cfg.Sim.Goal, result)
}

func printSummary(cfg *config.Config, result *sim.Result, elapsed time.Duration) {
	final := result.Final()
	m := cfg.Kinematics
	fmt.Printf("joint:   %s\n", result.Name)
	fmt.Printf("ticks:   %d (%.2fs simulated in %v)\n", result.Len(), float64(result.Len())*result.Dt, elapsed.Round(time.Microsecond))
	fmt.Printf("goal:    %.4f rad\n", m.ToAngle(result.Goals[len(result.Goals)-1]))
	fmt.Printf("final:   %v\n", m.StateToAngle(final))
	fmt.Printf("faults:  %d\n\n", result.Faults)

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-15s %.6f\n", name, result.Metrics[name])
	}
	fmt.Println()
}

func plotResult(cfg *config.Config, result *sim.Result) {
	if result.Len() < 2 {
		return
	}
	positions := make([]float64, result.Len())
	refs := make([]float64, result.Len())
	for i := range result.States {
		positions[i] = cfg.Kinematics.ToAngle(result.States[i].Position)
		refs[i] = cfg.Kinematics.ToAngle(result.References[i].Position)
	}
	fmt.Println(asciigraph.PlotMany([][]float64{refs, positions},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Green),
		asciigraph.Caption("reference (blue) and angle (green), rad"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(result.Voltages,
		asciigraph.Height(6),
		asciigraph.Width(80),
		asciigraph.Caption("voltage"),
	))
	fmt.Println()
}

func saveResult(seed int64, goal float64, result *sim.Result) error {
	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(seed, goal, result)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, err := tui.New(cfg, loop.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

var errDone = errors.New("done")

func runDrive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rec := telemetry.NewRecorder(1)
	runner, err := sim.NewRunner(cfg, nil,
		loop.WithLogger(slog.Default()),
		loop.WithTelemetry(telemetry.Multi{rec, telemetry.Logger{Log: slog.Default(), Every: 10}}))
	if err != nil {
		return err
	}

	ticks := runner.Ticks()
	period := time.Duration(cfg.Dt * float64(time.Second))
	d := &sim.Driver{
		Loop:   runner.Loop,
		Joint:  runner.Joint,
		Period: period,
		OnTick: func(err error) error {
			if err != nil && !errors.Is(err, dynamo.ErrSensorFault) {
				return err
			}
			if s, ok := rec.Last(); ok && s.Tick%uint64(max(1, int(0.5/cfg.Dt))) == 0 {
				fmt.Printf("t=%6.2fs angle=%8.4f ref=%8.4f V=%7.3f\n",
					s.Time, s.Angle, cfg.Kinematics.ToAngle(s.Reference.Position), s.Voltage)
			}
			if runner.Loop.Ticks() >= uint64(ticks) {
				return errDone
			}
			return nil
		},
	}
	if err := d.Run(ctx); err != nil && !errors.Is(err, errDone) && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Printf("stopped after %d ticks, %d faults, angle %.4f rad\n",
		runner.Loop.Ticks(), runner.Loop.Faults(), runner.Loop.KinematicAngle())
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	cfg, err := sc.Resolve()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, err := sc.Run(ctx, metrics.Standard(settleBand), loop.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	if sc.Description != "" {
		fmt.Println(sc.Description)
		fmt.Println()
	}
	printSummary(cfg, result, time.Since(start))
	plotResult(cfg, result)
	return saveResult(cfg.Sim.Seed, cfg.Sim.Goal, result)
}

func printGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runner, err := sim.NewRunner(cfg, nil)
	if err != nil {
		return err
	}
	params, err := cfg.ArmParameters()
	if err != nil {
		return err
	}
	arm, err := physics.NewArm(params)
	if err != nil {
		return err
	}

	fmt.Printf("joint %s, dt %.4fs, motor %s x%d\n", cfg.Name, cfg.Dt, params.Motor.Name, params.Motor.Count)
	constants := arm.GetParams()
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %g\n", name, constants[name])
	}
	fmt.Printf("free speed at %.0fV: %.4f rad/s\n\n", cfg.MaxVoltage, arm.FreeSpeed(cfg.MaxVoltage))

	show := func(name string, m mat.Matrix) {
		fmt.Printf("%s =\n%v\n\n", name, mat.Formatted(m, mat.Prefix(""), mat.Squeeze()))
	}
	plant := runner.Loop.Plant()
	k, l := runner.Loop.Gains()
	show("A", plant.A)
	show("B", plant.B)
	show("Ad", plant.Ad)
	show("Bd", plant.Bd)
	show("K (lqr)", k)
	show("L (kalman, steady state)", l)
	return nil
}

func printProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m := cfg.Kinematics
	tp := profile.New(cfg.Constraints,
		m.StateToRaw(dynamo.JointState{Position: to}),
		m.StateToRaw(dynamo.JointState{Position: from}))

	total := tp.TotalTime()
	fmt.Printf("move %.4f -> %.4f rad takes %.3fs\n\n", from, to, total)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T\tPOSITION\tVELOCITY")
	var positions []float64
	for t := 0.0; t <= total+cfg.Dt/2; t += cfg.Dt {
		s := tp.Calculate(t)
		positions = append(positions, m.ToAngle(s.Position))
		if int(math.Round(t/cfg.Dt))%10 == 0 {
			fmt.Fprintf(w, "%.2f\t%.5f\t%.5f\n", t, m.ToAngle(s.Position), m.VelocityToAngle(s.Velocity))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(positions) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(positions, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("position (rad)")))
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(params) == 0 {
		return fmt.Errorf("need at least one --param, one of: %s", strings.Join(optim.ParamNames(), ", "))
	}
	names := make([]string, 0, len(params))
	ranges := make([][]float64, 0, len(params))
	for _, p := range params {
		name, list, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("bad --param %q, want name=v1,v2", p)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return fmt.Errorf("--param %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	best, val, err := g.Search(ctx, cfg, metricName)
	if err != nil {
		return err
	}
	fmt.Printf("best %s = %.6f\n", metricName, val)
	for _, name := range names {
		fmt.Printf("  %-20s %g\n", name, best[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOINT\tTIME\tDURATION\tDT\tGOAL\tFAULTS\tTRACKING")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%.4f\t%d\t%.5f\n",
			run.ID,
			run.Joint,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Goal,
			run.Faults,
			run.Metrics["tracking_rms"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.Times) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("joint: %s\n", meta.Joint)
	fmt.Printf("samples: %d\n\n", len(series.Times))

	pos, ref, est, vel := column(series.States, false), column(series.References, false),
		column(series.Estimates, false), column(series.States, true)
	for _, p := range []struct {
		caption string
		data    []float64
	}{
		{"position (sensor units)", pos},
		{"reference position", ref},
		{"velocity", vel},
		{"voltage", series.Voltages},
	} {
		fmt.Println(asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		))
		fmt.Println()
	}

	if svgOut != "" {
		svg, err := export.TracesToSVG(series.Times, []export.Trace{
			{Name: "goal", Color: "#666688", Values: series.Goals},
			{Name: "reference", Color: "#00ccff", Values: ref},
			{Name: "estimate", Color: "#ffcc00", Values: est},
			{Name: "position", Color: "#00ff88", Values: pos},
		}, 960, 400)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgOut)
	}
	return nil
}

func column(states []dynamo.JointState, velocity bool) []float64 {
	out := make([]float64, len(states))
	for i, s := range states {
		if velocity {
			out[i] = s.Velocity
		} else {
			out[i] = s.Position
		}
	}
	return out
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series.Times) < 2 {
		return fmt.Errorf("no data to analyze")
	}

	fmt.Printf("run: %s (%s)\n\n", meta.ID, meta.Joint)

	start := series.States[0].Position
	target := series.Goals[len(series.Goals)-1]
	info := analysis.StepResponse(series.Times, series.States, start, target)
	fmt.Println("step response:")
	fmt.Printf("  rise time    %.3fs\n", info.RiseTime)
	fmt.Printf("  overshoot    %.2f%% (peak at %.3fs)\n", info.Overshoot*100, info.PeakTime)
	fmt.Printf("  final error  %.6f\n\n", info.FinalError)

	ps, err := analysis.PowerSpectrum(series.Voltages, meta.Dt)
	if err != nil {
		return err
	}
	fmt.Println("voltage spectrum:")
	fmt.Printf("  dominant     %.3f Hz\n", ps.Dominant())
	fmt.Printf("  chatter      %.2f%% of power above %.1f Hz\n\n", ps.Chatter()*100, ps.Freqs[len(ps.Freqs)-1]/2)

	if len(ps.Power) > 2 {
		fmt.Println(asciigraph.Plot(ps.Power[1:],
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("voltage power spectrum (excluding DC)"),
		))
		fmt.Println()
	}

	fmt.Println("phase portrait (position across, velocity up):")
	fmt.Print(analysis.NewPhasePortrait(series.States).ASCII(70, 20))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMOTOR\tGEAR\tINERTIA\tOFFSET\tSCALE\tFEEDFORWARD")
	for _, name := range sortedPresets() {
		c := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s x%d\t%.1f\t%.3f\t%.4f\t%.1f\t%v\n",
			name, c.Plant.Motor, c.Plant.Motors, c.Plant.GearRatio, c.Plant.MomentOfInertia,
			c.Kinematics.Offset, c.Kinematics.Scale, c.Tuning.Feedforward)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return fmt.Errorf("unknown preset %q", preset)
		}
	}
	if len(args) == 0 {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}
