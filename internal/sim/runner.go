package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/loop"
	"github.com/san-kum/jointctl/internal/physics"
)

// Result is the trace of a simulated run in sensor units.
type Result struct {
	Name       string
	Dt         float64
	Times      []float64
	States     []dynamo.JointState
	References []dynamo.JointState
	Estimates  []dynamo.JointState
	Voltages   []float64
	Goals      []float64
	Faults     int
	Metrics    map[string]float64
}

func (r *Result) Len() int { return len(r.Times) }

// Final returns the last true state, or the zero state for an empty run.
func (r *Result) Final() dynamo.JointState {
	if len(r.States) == 0 {
		return dynamo.JointState{}
	}
	return r.States[len(r.States)-1]
}

// Runner ticks a loop against a simulated joint in lockstep, advancing the
// joint one period after each tick.
type Runner struct {
	Loop     *loop.Loop
	Joint    *Joint
	Schedule Schedule

	cfg     *config.Config
	metrics []dynamo.Metric
	result  *Result
}

// NewRunner builds a simulated joint from cfg.Plant and cfg.Sim and a loop
// from cfg. metrics are observed by the loop and collected into the result.
func NewRunner(cfg *config.Config, metrics []dynamo.Metric, opts ...loop.Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.ArmParameters()
	if err != nil {
		return nil, err
	}
	arm, err := physics.NewArm(params)
	if err != nil {
		return nil, err
	}

	initial := dynamo.JointState{Position: cfg.Kinematics.ToRaw(cfg.Sim.InitialAngle)}
	jointOpts := []JointOption{WithSubsteps(cfg.Sim.Substeps)}
	if cfg.Sim.NoiseStdDev > 0 {
		jointOpts = append(jointOpts, WithNoise(cfg.Sim.NoiseStdDev, cfg.Sim.Seed))
	}
	joint := NewJoint(arm, initial, jointOpts...)

	opts = append(opts, loop.WithMetrics(metrics...))
	l, err := loop.New(cfg, joint, joint, opts...)
	if err != nil {
		return nil, err
	}
	l.SetGoal(cfg.Sim.Goal)

	r := &Runner{Loop: l, Joint: joint, cfg: cfg, metrics: metrics}
	r.reset()
	return r, nil
}

func (r *Runner) reset() {
	r.result = &Result{
		Name:    r.cfg.Name,
		Dt:      r.cfg.Dt,
		Metrics: make(map[string]float64),
	}
	for _, m := range r.metrics {
		m.Reset()
	}
}

// Ticks is the number of periods cfg.Sim.Duration spans.
func (r *Runner) Ticks() int {
	return int(math.Round(r.cfg.Sim.Duration / r.cfg.Dt))
}

// Step runs one tick, advances the joint and records the period.
// Sensor faults are counted, anything else is returned.
func (r *Runner) Step() error {
	prev := r.Joint.Time()
	now := prev + r.cfg.Dt
	if st, ok := r.Schedule.Due(prev, now); ok {
		r.Loop.SetGoal(st.Angle)
	}

	if err := r.Loop.Tick(); err != nil {
		if !errors.Is(err, dynamo.ErrSensorFault) {
			return err
		}
		r.result.Faults++
	}
	r.Joint.Advance(r.cfg.Dt)

	res := r.result
	res.Times = append(res.Times, r.Joint.Time())
	res.States = append(res.States, r.Joint.State())
	res.References = append(res.References, r.Loop.Reference())
	res.Estimates = append(res.Estimates, r.Loop.Estimate())
	res.Voltages = append(res.Voltages, r.Loop.Voltage())
	res.Goals = append(res.Goals, r.Loop.Goal().Position)
	return nil
}

// Run steps ticks times, or until ctx is done.
func (r *Runner) Run(ctx context.Context, ticks int) (*Result, error) {
	if ticks <= 0 {
		return nil, fmt.Errorf("%w: ticks must be positive, got %d", dynamo.ErrParameterBounds, ticks)
	}
	r.Schedule = r.Schedule.Sorted()

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return r.Result(), ctx.Err()
		default:
		}
		if err := r.Step(); err != nil {
			return r.Result(), err
		}
	}
	return r.Result(), nil
}

// Result returns the trace so far with metric values filled in.
func (r *Runner) Result() *Result {
	for _, m := range r.metrics {
		r.result.Metrics[m.Name()] = m.Value()
	}
	return r.result
}
