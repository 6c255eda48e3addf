package profile

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/jointctl/internal/dynamo"
)

const eps = 1e-9

func elbowConstraints() Constraints {
	return Constraints{
		MaxVelocity:     45 * math.Pi / 180,
		MaxAcceleration: 90 * math.Pi / 180,
	}
}

func TestConvergesWithinLimits(t *testing.T) {
	tests := []struct {
		name    string
		start   dynamo.JointState
		goal    dynamo.JointState
		maxTick int
	}{
		{"forward long", dynamo.JointState{}, dynamo.JointState{Position: 1.0}, 200},
		{"reverse long", dynamo.JointState{Position: 2.0}, dynamo.JointState{Position: -1.5}, 400},
		{"short triangle", dynamo.JointState{}, dynamo.JointState{Position: 0.05}, 50},
		{"negative start", dynamo.JointState{Position: -0.3}, dynamo.JointState{Position: -0.29}, 20},
		{"raw frame", dynamo.JointState{Position: 630}, dynamo.JointState{Position: 631}, 200},
	}

	c := elbowConstraints()
	p, err := NewProfiler(c)
	if err != nil {
		t.Fatal(err)
	}
	dt := 0.02

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := tt.start
			reached := false
			for i := 0; i < tt.maxTick; i++ {
				next := p.Next(dt, ref, tt.goal)
				if math.Abs(next.Velocity) > c.MaxVelocity+eps {
					t.Fatalf("tick %d: velocity %f exceeds %f", i, next.Velocity, c.MaxVelocity)
				}
				if accel := math.Abs(next.Velocity-ref.Velocity) / dt; accel > c.MaxAcceleration+1e-6 {
					t.Fatalf("tick %d: acceleration %f exceeds %f", i, accel, c.MaxAcceleration)
				}
				ref = next
				if ref == tt.goal {
					reached = true
					break
				}
			}
			if !reached {
				t.Errorf("reference %v never reached goal %v", ref, tt.goal)
			}
		})
	}
}

func TestMonotonicTowardGoal(t *testing.T) {
	p := &Profiler{Constraints: elbowConstraints()}
	goal := dynamo.JointState{Position: -1}
	ref := dynamo.JointState{Position: 0.5}
	prev := math.Abs(goal.Position - ref.Position)
	for i := 0; i < 300; i++ {
		ref = p.Next(0.02, ref, goal)
		d := math.Abs(goal.Position - ref.Position)
		if d > prev+eps {
			t.Fatalf("tick %d: distance grew from %f to %f", i, prev, d)
		}
		prev = d
	}
	if prev != 0 {
		t.Errorf("expected to finish at goal, %f left", prev)
	}
}

func TestIdempotentAtGoal(t *testing.T) {
	p := &Profiler{Constraints: elbowConstraints()}
	goal := dynamo.JointState{Position: 0.7}
	ref := goal
	for i := 0; i < 10; i++ {
		ref = p.Next(0.02, ref, goal)
		if ref != goal {
			t.Fatalf("tick %d: expected %v, got %v", i, goal, ref)
		}
	}
}

func TestSingleTickIsMaxIncrement(t *testing.T) {
	c := elbowConstraints()
	next := New(c, dynamo.JointState{Position: 10}, dynamo.JointState{}).Calculate(0.02)
	wantV := c.MaxAcceleration * 0.02
	if math.Abs(next.Velocity-wantV) > eps {
		t.Errorf("expected velocity %f, got %f", wantV, next.Velocity)
	}
	wantP := 0.5 * c.MaxAcceleration * 0.02 * 0.02
	if math.Abs(next.Position-wantP) > eps {
		t.Errorf("expected position %f, got %f", wantP, next.Position)
	}
}

func TestTotalTime(t *testing.T) {
	c := Constraints{MaxVelocity: 1, MaxAcceleration: 2}

	// 0.5 s to accelerate (0.25 rad), 0.5 s cruise (0.5 rad), 0.5 s decel (0.25 rad).
	tr := New(c, dynamo.JointState{Position: 1}, dynamo.JointState{})
	if got := tr.TotalTime(); math.Abs(got-1.5) > eps {
		t.Errorf("expected 1.5s, got %f", got)
	}
	if !tr.IsFinished(1.5) || tr.IsFinished(1.0) {
		t.Error("IsFinished disagrees with TotalTime")
	}
	if got := tr.Calculate(0.75); math.Abs(got.Velocity-1) > eps || math.Abs(got.Position-0.5) > eps {
		t.Errorf("unexpected cruise state %v", got)
	}

	// Triangle: 0.1 rad never reaches cruise.
	tri := New(c, dynamo.JointState{Position: 0.1}, dynamo.JointState{})
	want := 2 * math.Sqrt(0.1/2)
	if got := tri.TotalTime(); math.Abs(got-want) > eps {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestTimeLeftUntil(t *testing.T) {
	c := Constraints{MaxVelocity: 1, MaxAcceleration: 2}
	tr := New(c, dynamo.JointState{Position: -1}, dynamo.JointState{})

	if got := tr.TimeLeftUntil(-0.25); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("expected 0.5s to reach end of acceleration, got %f", got)
	}
	if got := tr.TimeLeftUntil(-0.75); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected 1.0s to reach start of deceleration, got %f", got)
	}
	if got := tr.TimeLeftUntil(-5); got != tr.TotalTime() {
		t.Errorf("target past goal should return total time, got %f", got)
	}
	if got := tr.TimeLeftUntil(1); got != 0 {
		t.Errorf("target behind start should return 0, got %f", got)
	}
}

func TestNonZeroStartVelocity(t *testing.T) {
	c := Constraints{MaxVelocity: 1, MaxAcceleration: 2}
	start := dynamo.JointState{Position: 0, Velocity: 1}
	tr := New(c, dynamo.JointState{Position: 2}, start)

	first := tr.Calculate(0.01)
	if math.Abs(first.Velocity-1) > eps {
		t.Errorf("expected to keep cruising, got %v", first)
	}
	end := tr.Calculate(tr.TotalTime() + 1)
	if end.Position != 2 || end.Velocity != 0 {
		t.Errorf("expected goal at the end, got %v", end)
	}
}

func TestGoalInsideStoppingDistance(t *testing.T) {
	c := elbowConstraints()
	p := &Profiler{Constraints: c}
	dt := 0.02

	cruising := dynamo.JointState{}
	for i := 0; i < 40; i++ {
		cruising = p.Next(dt, cruising, dynamo.JointState{Position: 1})
	}
	if math.Abs(cruising.Velocity-c.MaxVelocity) > eps {
		t.Fatalf("expected to be cruising, got %v", cruising)
	}
	reversed := dynamo.JointState{Position: -cruising.Position, Velocity: -cruising.Velocity}

	tests := []struct {
		name  string
		start dynamo.JointState
		goal  dynamo.JointState
	}{
		{"stop where it is", cruising, dynamo.JointState{Position: cruising.Position}},
		{"goal just ahead", cruising, dynamo.JointState{Position: cruising.Position + 0.05}},
		{"goal behind", cruising, dynamo.JointState{Position: 0}},
		{"stop moving negative", reversed, dynamo.JointState{Position: reversed.Position}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := StoppingPoint(c, tt.start)
			ref := tt.start
			ahead := math.Copysign(1, tt.start.Velocity)
			farthest := 0.0
			for i := 0; i < 200; i++ {
				next := p.Next(dt, ref, tt.goal)
				if accel := math.Abs(next.Velocity-ref.Velocity) / dt; accel > c.MaxAcceleration+1e-6 {
					t.Fatalf("tick %d: acceleration %f exceeds %f", i, accel, c.MaxAcceleration)
				}
				if step := math.Abs(next.Position - ref.Position); step > c.MaxVelocity*dt+eps {
					t.Fatalf("tick %d: position jumped %f", i, step)
				}
				farthest = math.Max(farthest, ahead*(next.Position-tt.start.Position))
				ref = next
			}
			if ref != tt.goal {
				t.Errorf("expected to settle at %v, got %v", tt.goal, ref)
			}
			if want := math.Abs(stop - tt.start.Position); farthest > want+1e-9 {
				t.Errorf("travelled %f ahead of the start, stopping distance is %f", farthest, want)
			}
		})
	}
}

func TestStoppingPoint(t *testing.T) {
	c := Constraints{MaxVelocity: 1, MaxAcceleration: 2}
	if got := StoppingPoint(c, dynamo.JointState{Position: 1, Velocity: 1}); math.Abs(got-1.25) > eps {
		t.Errorf("expected 1.25, got %f", got)
	}
	if got := StoppingPoint(c, dynamo.JointState{Position: 1, Velocity: -1}); math.Abs(got-0.75) > eps {
		t.Errorf("expected 0.75, got %f", got)
	}
}

func TestConstraintsValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Constraints
		ok   bool
	}{
		{"valid", Constraints{1, 1}, true},
		{"zero velocity", Constraints{0, 1}, false},
		{"negative accel", Constraints{1, -1}, false},
		{"nan", Constraints{math.NaN(), 1}, false},
		{"inf", Constraints{1, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected bounds error, got %v", err)
			}
		})
	}
	if _, err := NewProfiler(Constraints{}); err == nil {
		t.Error("NewProfiler should reject zero constraints")
	}
}
