package loop

import (
	"log/slog"

	"github.com/san-kum/jointctl/internal/dynamo"
)

type Option func(*Loop)

// WithTelemetry adds a sink that receives one Sample per healthy tick.
func WithTelemetry(t dynamo.Telemetry) Option {
	return func(l *Loop) {
		if t != nil {
			l.telemetry = append(l.telemetry, t)
		}
	}
}

func WithMetrics(ms ...dynamo.Metric) Option {
	return func(l *Loop) {
		l.metrics = append(l.metrics, ms...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithVelocitySensor seeds the initial velocity from v instead of the
// position sensor.
func WithVelocitySensor(v dynamo.VelocitySensor) Option {
	return func(l *Loop) {
		l.velocity = v
	}
}
