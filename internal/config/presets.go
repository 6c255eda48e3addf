package config

import "github.com/san-kum/jointctl/internal/kinematics"

// Presets are the known joints. Elbow and shoulder share the controller and
// differ only in constants and sensor orientation.
var Presets = map[string]*Config{
	"elbow": {
		Name: "elbow", Dt: DefaultDt, MaxVoltage: DefaultMaxVoltage,
		Plant:       PlantConfig{Motor: "neo", Motors: 2, GearRatio: 240, MomentOfInertia: 2},
		Kinematics:  kinematics.Mapping{Offset: 630, Scale: 240},
		Constraints: DefaultConfig().Constraints,
		Tuning:      DefaultTuning(),
		Sim:         SimConfig{Duration: 30, InitialAngle: 0, Goal: 0.05, Substeps: DefaultSubsteps},
	},
	"shoulder": {
		Name: "shoulder", Dt: DefaultDt, MaxVoltage: DefaultMaxVoltage,
		Plant:       PlantConfig{Motor: "neo", Motors: 2, GearRatio: 300, MomentOfInertia: 4},
		Kinematics:  kinematics.Mapping{Offset: 230.2364949, Scale: -300},
		Constraints: DefaultConfig().Constraints,
		Tuning:      DefaultTuning(),
		Sim:         SimConfig{Duration: 30, InitialAngle: 0, Goal: -0.05, Substeps: DefaultSubsteps},
	},
	"bench": DefaultConfig(),
	"noisy": func() *Config {
		c := DefaultConfig()
		c.Name = "noisy"
		c.Sim.NoiseStdDev = 0.005
		c.Sim.Seed = 1
		c.Sim.Duration = 6
		return c
	}(),
	"feedforward": func() *Config {
		c := DefaultConfig()
		c.Name = "feedforward"
		c.Tuning.Feedforward = true
		return c
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
