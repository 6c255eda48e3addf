package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/jointctl/internal/logging"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	goal       float64
	initial    float64
	duration   float64
	seed       int64
	noise      float64
	ffwd       bool
	settleBand float64
	noSave     bool
	svgOut     string
	from       float64
	to         float64
	params     []string
	metricName string

	logLevel  string
	logFormat string
	logFile   string
	logger    *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jointctl",
		Short:         "single-joint motion controller: profile, estimate, regulate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			cfg.Level = logLevel
			cfg.Format = logFormat
			cfg.Filename = logFile
			l, err := logging.New(cfg)
			if err != nil {
				return err
			}
			logger = l
			slog.SetDefault(l.Logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logger != nil {
				return logger.Close()
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".jointctl", "data directory")
	pf.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&logFile, "log-file", "", "also log to this file, rotated")

	jointFlags := func(cmd *cobra.Command) {
		f := cmd.Flags()
		f.StringVar(&configFile, "config", "", "config file path (yaml)")
		f.StringVar(&preset, "preset", "", "use preset configuration")
		f.Float64Var(&goal, "goal", 1.0, "goal angle (rad)")
		f.Float64Var(&initial, "initial", 0, "initial angle (rad)")
		f.Float64Var(&duration, "time", 4.0, "simulated duration (s)")
		f.Int64Var(&seed, "seed", 1, "measurement noise seed")
		f.Float64Var(&noise, "noise", 0, "measurement noise std-dev (sensor units)")
		f.BoolVar(&ffwd, "feedforward", false, "add plant-inversion feedforward")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate a move and save the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	jointFlags(runCmd)
	runCmd.Flags().Float64Var(&settleBand, "band", 0.01, "settling band (rad)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive the simulated joint interactively",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	jointFlags(liveCmd)

	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "tick the loop on the wall clock and log telemetry",
		Args:  cobra.NoArgs,
		RunE:  runDrive,
	}
	jointFlags(driveCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted goal sequence",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().Float64Var(&settleBand, "band", 0.01, "settling band (rad)")
	scenarioCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	gainsCmd := &cobra.Command{
		Use:   "gains",
		Short: "print the discretized plant, regulator and estimator gains",
		Args:  cobra.NoArgs,
		RunE:  printGains,
	}
	jointFlags(gainsCmd)

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "print the trapezoidal profile for a move",
		Args:  cobra.NoArgs,
		RunE:  printProfile,
	}
	jointFlags(profileCmd)
	profileCmd.Flags().Float64Var(&from, "from", 0, "start angle (rad)")
	profileCmd.Flags().Float64Var(&to, "to", 1, "end angle (rad)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search tunings by simulation",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	jointFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&params, "param", nil, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "tracking_rms", "metric to minimize")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "also write an svg chart to this path")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response, voltage spectrum and phase portrait",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list joint presets",
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a config file (default or --preset) to path or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "preset to write")

	rootCmd.AddCommand(runCmd, liveCmd, driveCmd, scenarioCmd, gainsCmd, profileCmd,
		tuneCmd, listCmd, plotCmd, analyzeCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
