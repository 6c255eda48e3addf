package sim

import (
	"sync"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// MirroredActuator drives a leader and an inverted follower with one
// command, for two motors facing each other on the same gearbox.
type MirroredActuator struct {
	Leader   dynamo.Actuator
	Follower dynamo.Actuator
}

func (m MirroredActuator) SetVoltage(volts float64) {
	m.Leader.SetVoltage(volts)
	if m.Follower != nil {
		m.Follower.SetVoltage(-volts)
	}
}

// Output is an actuator that only remembers the last command.
type Output struct {
	mu    sync.Mutex
	volts float64
	count int
}

func (o *Output) SetVoltage(volts float64) {
	o.mu.Lock()
	o.volts = volts
	o.count++
	o.mu.Unlock()
}

func (o *Output) Voltage() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volts
}

func (o *Output) Commands() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}
