package sim

import (
	"context"
	"time"
)

type Ticker interface {
	Tick() error
}

// Driver calls Tick once per wall-clock period until the context ends.
// When Joint is set it is advanced by one period after each tick.
type Driver struct {
	Loop   Ticker
	Joint  *Joint
	Period time.Duration
	// OnTick, when set, sees every tick result. A non-nil return stops the
	// driver with that error.
	OnTick func(err error) error
}

func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := d.Loop.Tick()
			if d.Joint != nil {
				d.Joint.Advance(d.Period.Seconds())
			}
			if d.OnTick != nil {
				if stop := d.OnTick(err); stop != nil {
					return stop
				}
			}
		}
	}
}
