package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for controller construction and ticking.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates mismatched matrix or vector dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingular indicates a matrix that had to be inverted was singular.
	ErrSingular = errors.New("dynamo: singular matrix")

	// ErrNoConvergence indicates an iterative solver hit its iteration cap.
	ErrNoConvergence = errors.New("dynamo: solver did not converge")

	// ErrSensorFault indicates a missing or implausible sensor reading.
	ErrSensorFault = errors.New("dynamo: sensor fault")
)

// ConfigError wraps a construction failure with the offending field.
type ConfigError struct {
	Field   string
	Wrapped error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Wrapped)
}

func (e *ConfigError) Unwrap() error {
	return e.Wrapped
}

// Bounds returns a ConfigError for field wrapping ErrParameterBounds.
func Bounds(field string, format string, args ...any) error {
	return &ConfigError{
		Field:   field,
		Wrapped: fmt.Errorf("%w: "+format, append([]any{ErrParameterBounds}, args...)...),
	}
}

// TickError wraps a skipped tick with its index.
type TickError struct {
	Tick    uint64
	Wrapped error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d skipped: %v", e.Tick, e.Wrapped)
}

func (e *TickError) Unwrap() error {
	return e.Wrapped
}
