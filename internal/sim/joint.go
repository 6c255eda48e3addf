package sim

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/integrators"
)

// Joint is simulated hardware: a plant integrated with RK4 under a
// zero-order-hold voltage, read through an optionally noisy encoder.
type Joint struct {
	mu         sync.Mutex
	plant      dynamo.System
	integrator *integrators.RK4
	x          dynamo.State
	u          dynamo.Control
	t          float64
	substeps   int

	noise    float64
	rng      *rand.Rand
	failures int
}

// The arm's electrical pole is fast; RK4 at a full 20ms period is unstable.
const defaultSubsteps = 20

type JointOption func(*Joint)

// WithNoise adds zero-mean Gaussian noise to position readings.
func WithNoise(stdDev float64, seed int64) JointOption {
	return func(j *Joint) {
		j.noise = stdDev
		j.rng = rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	}
}

func WithSubsteps(n int) JointOption {
	return func(j *Joint) {
		if n > 0 {
			j.substeps = n
		}
	}
}

func NewJoint(plant dynamo.System, initial dynamo.JointState, opts ...JointOption) *Joint {
	j := &Joint{
		plant:      plant,
		integrator: integrators.NewRK4(),
		x:          initial.Vector(),
		u:          make(dynamo.Control, plant.ControlDim()),
		substeps:   defaultSubsteps,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Joint) Position() (float64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failures > 0 {
		j.failures--
		return 0, fmt.Errorf("encoder disconnected: %w", dynamo.ErrSensorFault)
	}
	pos := j.x[0]
	if j.noise > 0 {
		pos += j.noise * j.rng.NormFloat64()
	}
	return pos, nil
}

func (j *Joint) Velocity() (float64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.x[1], nil
}

func (j *Joint) SetVoltage(volts float64) {
	j.mu.Lock()
	j.u[0] = volts
	j.mu.Unlock()
}

// Advance integrates the plant dt seconds under the last voltage.
func (j *Joint) Advance(dt float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.x = j.integrator.Substep(j.plant, j.x, j.u, j.t, dt, j.substeps)
	j.t += dt
}

// FailNext makes the next n position reads fail.
func (j *Joint) FailNext(n int) {
	j.mu.Lock()
	j.failures += n
	j.mu.Unlock()
}

func (j *Joint) State() dynamo.JointState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return dynamo.JointStateOf(j.x)
}

func (j *Joint) Voltage() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.u[0]
}

func (j *Joint) Time() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.t
}
