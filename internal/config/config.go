package config

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/kinematics"
	"github.com/san-kum/jointctl/internal/physics"
	"github.com/san-kum/jointctl/internal/profile"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.020
	DefaultMaxVoltage = 12.0
	DefaultDuration   = 4.0
	DefaultSubsteps   = 20
)

type Config struct {
	Name         string              `yaml:"name"`
	Dt           float64             `yaml:"dt"`
	MaxVoltage   float64             `yaml:"max_voltage"`
	Plant        PlantConfig         `yaml:"plant"`
	Kinematics   kinematics.Mapping  `yaml:"kinematics"`
	Constraints  profile.Constraints `yaml:"constraints"`
	Tuning       TuningConfig        `yaml:"tuning"`
	GoalLimits   *Limits             `yaml:"goal_limits,omitempty"`
	SensorLimits *Limits             `yaml:"sensor_limits,omitempty"`
	Sim          SimConfig           `yaml:"sim"`
}

type PlantConfig struct {
	Motor           string  `yaml:"motor"`
	Motors          int     `yaml:"motors"`
	GearRatio       float64 `yaml:"gear_ratio"`
	MomentOfInertia float64 `yaml:"moment_of_inertia"`
}

// TuningConfig holds the estimator and regulator weights.
type TuningConfig struct {
	StateStdDevs      []float64 `yaml:"state_std_devs"`
	MeasurementStdDev float64   `yaml:"measurement_std_dev"`
	QTolerances       []float64 `yaml:"q_tolerances"`
	RTolerance        float64   `yaml:"r_tolerance"`
	Feedforward       bool      `yaml:"feedforward"`
}

// Limits is a closed interval. Goals are clamped into it, sensor readings
// outside it are treated as faults.
type Limits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (l *Limits) Contains(v float64) bool {
	return l == nil || (v >= l.Min && v <= l.Max)
}

func (l *Limits) Clamp(v float64) float64 {
	if l == nil {
		return v
	}
	return math.Max(l.Min, math.Min(l.Max, v))
}

// SimConfig only affects the simulated joint, never the controller.
type SimConfig struct {
	Duration     float64 `yaml:"duration"`
	InitialAngle float64 `yaml:"initial_angle"`
	Goal         float64 `yaml:"goal"`
	NoiseStdDev  float64 `yaml:"noise_std_dev"`
	Seed         int64   `yaml:"seed"`
	Substeps     int     `yaml:"substeps"`
}

func deg(d float64) float64 { return d * math.Pi / 180 }

func DefaultTuning() TuningConfig {
	return TuningConfig{
		StateStdDevs:      []float64{0.015, 0.17},
		MeasurementStdDev: 0.01,
		QTolerances:       []float64{deg(1.0), deg(10.0)},
		RTolerance:        12.0,
	}
}

// DefaultConfig is the elbow plant read through an identity mapping.
func DefaultConfig() *Config {
	return &Config{
		Name:       "default",
		Dt:         DefaultDt,
		MaxVoltage: DefaultMaxVoltage,
		Plant: PlantConfig{
			Motor:           "neo",
			Motors:          2,
			GearRatio:       240,
			MomentOfInertia: 2,
		},
		Kinematics: kinematics.Identity(),
		Constraints: profile.Constraints{
			MaxVelocity:     deg(45),
			MaxAcceleration: deg(90),
		},
		Tuning: DefaultTuning(),
		Sim: SimConfig{
			Duration: DefaultDuration,
			Goal:     1.0,
			Substeps: DefaultSubsteps,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Tuning.StateStdDevs = append([]float64(nil), c.Tuning.StateStdDevs...)
	out.Tuning.QTolerances = append([]float64(nil), c.Tuning.QTolerances...)
	if c.GoalLimits != nil {
		l := *c.GoalLimits
		out.GoalLimits = &l
	}
	if c.SensorLimits != nil {
		l := *c.SensorLimits
		out.SensorLimits = &l
	}
	return &out
}

// ArmParameters resolves the motor catalog entry.
func (c *Config) ArmParameters() (physics.ArmParameters, error) {
	motor, err := physics.MotorByName(c.Plant.Motor, c.Plant.Motors)
	if err != nil {
		return physics.ArmParameters{}, err
	}
	return physics.ArmParameters{
		Motor:           motor,
		GearRatio:       c.Plant.GearRatio,
		MomentOfInertia: c.Plant.MomentOfInertia,
	}, nil
}

// Validate checks everything the controller derivation depends on.
func (c *Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return dynamo.Bounds("dt", "must be positive, got %f", c.Dt)
	}
	if !(c.MaxVoltage > 0) || math.IsInf(c.MaxVoltage, 0) {
		return dynamo.Bounds("max_voltage", "must be positive, got %f", c.MaxVoltage)
	}
	params, err := c.ArmParameters()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := c.Kinematics.Validate(); err != nil {
		return err
	}
	if err := c.Constraints.Validate(); err != nil {
		return err
	}
	if len(c.Tuning.StateStdDevs) != 2 {
		return dynamo.Bounds("tuning.state_std_devs", "need 2 values, got %d", len(c.Tuning.StateStdDevs))
	}
	if len(c.Tuning.QTolerances) != 2 {
		return dynamo.Bounds("tuning.q_tolerances", "need 2 values, got %d", len(c.Tuning.QTolerances))
	}
	if !(c.Tuning.MeasurementStdDev > 0) {
		return dynamo.Bounds("tuning.measurement_std_dev", "must be positive, got %f", c.Tuning.MeasurementStdDev)
	}
	if !(c.Tuning.RTolerance > 0) {
		return dynamo.Bounds("tuning.r_tolerance", "must be positive, got %f", c.Tuning.RTolerance)
	}
	for name, l := range map[string]*Limits{"goal_limits": c.GoalLimits, "sensor_limits": c.SensorLimits} {
		if l != nil && !(l.Min < l.Max) {
			return dynamo.Bounds(name, "min %f must be below max %f", l.Min, l.Max)
		}
	}
	if c.Sim.Substeps < 0 {
		return dynamo.Bounds("sim.substeps", "must not be negative, got %d", c.Sim.Substeps)
	}
	return nil
}
