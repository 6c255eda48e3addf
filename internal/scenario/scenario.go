// Package scenario loads scripted goal sequences and runs them against the
// simulated joint.
package scenario

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/loop"
	"github.com/san-kum/jointctl/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario is a joint configuration plus timed goal changes.
//
//	name: pick-and-place
//	preset: bench
//	duration: 8
//	initial_goal: 0
//	steps:
//	  - {at: 0.5, angle: 1.0}
//	  - {at: 4.0, angle: -0.5}
type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Preset      string     `yaml:"preset"`
	Config      string     `yaml:"config"` // path, overrides Preset
	Duration    float64    `yaml:"duration"`
	InitialGoal *float64   `yaml:"initial_goal"`
	FaultsAt    []int      `yaml:"faults_at"` // ticks at which one reading fails
	Steps       []sim.Step `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &sc, nil
}

// Resolve returns the configuration the scenario runs with.
func (sc *Scenario) Resolve() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case sc.Config != "":
		c, err := config.Load(sc.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case sc.Preset != "":
		if cfg = config.GetPreset(sc.Preset); cfg == nil {
			return nil, fmt.Errorf("scenario %s: unknown preset %q", sc.Name, sc.Preset)
		}
	default:
		cfg = config.DefaultConfig()
	}
	if sc.Name != "" {
		cfg.Name = sc.Name
	}
	if sc.Duration > 0 {
		cfg.Sim.Duration = sc.Duration
	}
	if sc.InitialGoal != nil {
		cfg.Sim.Goal = *sc.InitialGoal
	}
	return cfg, cfg.Validate()
}

// Run plays the scenario to the end of its duration.
func (sc *Scenario) Run(ctx context.Context, ms []dynamo.Metric, opts ...loop.Option) (*sim.Result, error) {
	cfg, err := sc.Resolve()
	if err != nil {
		return nil, err
	}
	for _, st := range sc.Steps {
		if math.IsNaN(st.Angle) || st.At < 0 {
			return nil, fmt.Errorf("%w: scenario step %+v", dynamo.ErrParameterBounds, st)
		}
	}

	runner, err := sim.NewRunner(cfg, ms, opts...)
	if err != nil {
		return nil, err
	}
	runner.Schedule = sim.Schedule(sc.Steps).Sorted()

	faults := make(map[int]bool, len(sc.FaultsAt))
	for _, tick := range sc.FaultsAt {
		faults[tick] = true
	}

	ticks := runner.Ticks()
	for i := 1; i <= ticks; i++ {
		select {
		case <-ctx.Done():
			return runner.Result(), ctx.Err()
		default:
		}
		if faults[i] {
			runner.Joint.FailNext(1)
		}
		if err := runner.Step(); err != nil {
			return runner.Result(), fmt.Errorf("scenario %s tick %d: %w", cfg.Name, i, err)
		}
	}
	return runner.Result(), nil
}
