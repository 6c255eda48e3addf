package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestJointStateValid(t *testing.T) {
	tests := []struct {
		name string
		j    JointState
		want bool
	}{
		{"zero", JointState{}, true},
		{"finite", JointState{1.5, -0.2}, true},
		{"nan position", JointState{math.NaN(), 0}, false},
		{"inf velocity", JointState{0, math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.j.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJointStateVectorRoundTrip(t *testing.T) {
	j := JointState{Position: 0.3, Velocity: -1.2}
	if got := JointStateOf(j.Vector()); got != j {
		t.Errorf("expected %v, got %v", j, got)
	}
	if got := JointStateOf(State{2}); got.Position != 2 || got.Velocity != 0 {
		t.Errorf("short vector: got %v", got)
	}
}

func TestJointStateNear(t *testing.T) {
	if got := (JointState{1, 0.5}); !got.Near(JointState{1.001, 0.5}, 0.01) || got.Near(JointState{1.1, 0.5}, 0.01) {
		t.Errorf("Near tolerance wrong for %v", got)
	}
}

func TestBoundsUnwraps(t *testing.T) {
	err := Bounds("plant.gear_ratio", "must be positive, got %f", -1.0)
	if !errors.Is(err, ErrParameterBounds) {
		t.Fatal("expected ErrParameterBounds in chain")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "plant.gear_ratio" {
		t.Errorf("expected ConfigError for plant.gear_ratio, got %v", err)
	}
}
