package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/control"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/estimator"
	"github.com/san-kum/jointctl/internal/kinematics"
	"github.com/san-kum/jointctl/internal/physics"
	"github.com/san-kum/jointctl/internal/profile"
	"github.com/san-kum/jointctl/internal/statespace"
	"gonum.org/v1/gonum/mat"
)

// snapshot is what readers outside the tick goroutine see.
type snapshot struct {
	reference dynamo.JointState
	estimate  dynamo.JointState
	measured  float64
	voltage   float64
}

type Loop struct {
	name       string
	dt         float64
	maxVoltage float64
	mapping    kinematics.Mapping
	goalLimits *config.Limits
	sensorLim  *config.Limits

	plant    *statespace.System
	profiler *profile.Profiler
	kf       *estimator.KalmanFilter
	lqr      *control.LQR
	ff       *control.Feedforward

	sensor    dynamo.Sensor
	velocity  dynamo.VelocitySensor
	actuator  dynamo.Actuator
	telemetry []dynamo.Telemetry
	metrics   []dynamo.Metric
	logger    *slog.Logger

	// owned by the tick goroutine
	reference dynamo.JointState
	voltage   float64
	u, y      *mat.VecDense

	goal   atomic.Pointer[dynamo.JointState]
	state  atomic.Pointer[snapshot]
	ticks  atomic.Uint64
	faults atomic.Uint64
}

// New derives the plant, estimator and regulator from cfg and seeds them
// from one sensor reading. The initial goal holds the joint where it is.
func New(cfg *config.Config, sensor dynamo.Sensor, actuator dynamo.Actuator, opts ...Option) (*Loop, error) {
	if sensor == nil || actuator == nil {
		return nil, errors.New("loop: sensor and actuator are required")
	}
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
	plant, err := arm.Model(cfg.Dt)
	if err != nil {
		return nil, fmt.Errorf("plant model: %w", err)
	}
	profiler, err := profile.NewProfiler(cfg.Constraints)
	if err != nil {
		return nil, err
	}
	kf, err := estimator.New(plant, cfg.Tuning.StateStdDevs, []float64{cfg.Tuning.MeasurementStdDev}, cfg.Dt)
	if err != nil {
		return nil, err
	}
	lqr, err := control.NewLQR(plant, cfg.Tuning.QTolerances, []float64{cfg.Tuning.RTolerance}, cfg.Dt)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		name:       cfg.Name,
		dt:         cfg.Dt,
		maxVoltage: cfg.MaxVoltage,
		mapping:    cfg.Kinematics,
		goalLimits: cfg.GoalLimits,
		sensorLim:  cfg.SensorLimits,
		plant:      plant,
		profiler:   profiler,
		kf:         kf,
		lqr:        lqr,
		sensor:     sensor,
		actuator:   actuator,
		logger:     slog.New(slog.DiscardHandler),
		u:          mat.NewVecDense(1, nil),
		y:          mat.NewVecDense(1, nil),
	}
	if v, ok := sensor.(dynamo.VelocitySensor); ok {
		l.velocity = v
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.Tuning.Feedforward {
		if l.ff, err = control.NewFeedforward(plant, cfg.Dt); err != nil {
			return nil, err
		}
	}

	if err := l.seed(); err != nil {
		return nil, err
	}
	l.logger.Info("joint loop ready",
		"joint", l.name,
		"dt", l.dt,
		"k_position", lqr.K.At(0, 0),
		"k_velocity", lqr.K.At(0, 1),
		"feedforward", l.ff != nil,
		"reference", l.reference.String())
	return l, nil
}

func (l *Loop) seed() error {
	pos, err := l.read()
	if err != nil {
		return fmt.Errorf("seed estimator: %w", err)
	}
	initial := dynamo.JointState{Position: pos}
	if l.velocity != nil {
		if v, err := l.velocity.Velocity(); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			initial.Velocity = v
		}
	}
	l.kf.Reset(mat.NewVecDense(2, []float64{initial.Position, initial.Velocity}))
	l.reference = initial
	if l.ff != nil {
		l.ff.Reset(initial)
	}
	goal := dynamo.JointState{Position: pos}
	l.goal.Store(&goal)
	l.publish(pos)
	return nil
}

// read returns a plausible raw position or an ErrSensorFault.
func (l *Loop) read() (float64, error) {
	raw, err := l.sensor.Position()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", dynamo.ErrSensorFault, err)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: non-finite reading %v", dynamo.ErrSensorFault, raw)
	}
	if !l.sensorLim.Contains(raw) {
		return 0, fmt.Errorf("%w: reading %.4f outside [%.4f, %.4f]",
			dynamo.ErrSensorFault, raw, l.sensorLim.Min, l.sensorLim.Max)
	}
	return raw, nil
}

// Tick runs one control period. The only error it returns is a
// *dynamo.TickError wrapping dynamo.ErrSensorFault; the previous voltage is
// re-emitted and the estimate propagated open loop when that happens.
func (l *Loop) Tick() error {
	tick := l.ticks.Add(1)

	raw, err := l.read()
	if err != nil {
		return l.fault(tick, err)
	}

	goal := *l.goal.Load()
	next := l.profiler.Next(l.dt, l.reference, goal)

	l.y.SetVec(0, raw)
	if err := l.kf.Correct(l.u, l.y); err != nil {
		return l.fault(tick, fmt.Errorf("%w: %v", dynamo.ErrSensorFault, err))
	}
	estimate := l.kf.State()

	u := l.lqr.CalculateScalar(estimate, next)
	if l.ff != nil {
		u += l.ff.Calculate(next)
	}
	out := control.Clamp(u, l.maxVoltage)

	l.actuator.SetVoltage(out)
	l.voltage = out
	l.u.SetVec(0, out)
	l.kf.Predict(l.u, l.dt)
	l.reference = next
	l.publish(raw)

	s := dynamo.Sample{
		Tick:      tick,
		Time:      float64(tick) * l.dt,
		Goal:      l.mapping.ToAngle(goal.Position),
		Angle:     l.mapping.ToAngle(raw),
		Reference: next,
		Estimate:  estimate,
		Measured:  raw,
		Voltage:   out,
		Saturated: out != u,
	}
	for _, m := range l.metrics {
		m.Observe(s)
	}
	for _, t := range l.telemetry {
		if err := t.Report(s); err != nil {
			l.logger.Debug("telemetry report failed", "tick", tick, "err", err)
		}
	}
	return nil
}

func (l *Loop) fault(tick uint64, err error) error {
	l.faults.Add(1)
	l.actuator.SetVoltage(l.voltage)
	l.kf.Predict(l.u, l.dt)
	l.logger.Warn("sensor fault, holding output", "joint", l.name, "tick", tick, "voltage", l.voltage, "err", err)
	return &dynamo.TickError{Tick: tick, Wrapped: err}
}

func (l *Loop) publish(raw float64) {
	l.state.Store(&snapshot{
		reference: l.reference,
		estimate:  l.kf.State(),
		measured:  raw,
		voltage:   l.voltage,
	})
}

// SetGoal replaces the goal with a stationary state at angle. Goal limits,
// when configured, clamp it. Non-finite angles are ignored.
func (l *Loop) SetGoal(angle float64) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		l.logger.Warn("ignoring non-finite goal", "joint", l.name, "angle", angle)
		return
	}
	if clamped := l.goalLimits.Clamp(angle); clamped != angle {
		l.logger.Info("goal clamped", "joint", l.name, "requested", angle, "goal", clamped)
		angle = clamped
	}
	l.store(l.mapping.ToRaw(angle))
}

// SetGoalRaw is SetGoal in sensor units.
func (l *Loop) SetGoalRaw(raw float64) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		l.logger.Warn("ignoring non-finite goal", "joint", l.name, "raw", raw)
		return
	}
	if l.goalLimits != nil {
		l.SetGoal(l.mapping.ToAngle(raw))
		return
	}
	l.store(raw)
}

// Hold stops the joint where the profile currently is.
func (l *Loop) Hold() {
	l.store(l.state.Load().reference.Position)
}

func (l *Loop) store(raw float64) {
	goal := dynamo.JointState{Position: raw}
	l.goal.Store(&goal)
}

// Goal returns the current goal in sensor units.
func (l *Loop) Goal() dynamo.JointState { return *l.goal.Load() }

// GoalAngle returns the goal as a joint angle.
func (l *Loop) GoalAngle() float64 { return l.mapping.ToAngle(l.Goal().Position) }

// KinematicAngle maps the latest raw sensor reading, not the filtered
// estimate, to a joint angle.
func (l *Loop) KinematicAngle() float64 {
	return l.mapping.ToAngle(l.state.Load().measured)
}

func (l *Loop) Reference() dynamo.JointState { return l.state.Load().reference }
func (l *Loop) Estimate() dynamo.JointState  { return l.state.Load().estimate }
func (l *Loop) Voltage() float64             { return l.state.Load().voltage }
func (l *Loop) Ticks() uint64                { return l.ticks.Load() }
func (l *Loop) Faults() uint64               { return l.faults.Load() }
func (l *Loop) Dt() float64                  { return l.dt }
func (l *Loop) Mapping() kinematics.Mapping  { return l.mapping }

// AtGoal reports whether the estimate sits within tol of a stationary goal.
func (l *Loop) AtGoal(tol float64) bool {
	return l.Estimate().Near(l.Goal(), tol)
}

// Plant returns the discretized model the controller was designed on.
func (l *Loop) Plant() *statespace.System { return l.plant }

// Gains returns the regulator gain and the steady-state Kalman gain.
func (l *Loop) Gains() (lqr, kalman mat.Matrix) {
	return l.lqr.K, l.kf.SteadyStateGain()
}
