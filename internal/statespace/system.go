// Package statespace holds linear time-invariant models and the discrete-time
// matrix algebra the estimator and regulator are built from.
//
// Models are stored in continuous form (A, B, C, D) together with the
// zero-order-hold discretization (Ad, Bd) for the nominal loop period.
package statespace

import (
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

type System struct {
	A, B, C, D *mat.Dense
	Ad, Bd     *mat.Dense
	Dt         float64

	states, inputs, outputs int
}

// New validates dimensions and discretizes the model for dt.
func New(a, b, c, d *mat.Dense, dt float64) (*System, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, dynamo.Bounds("dt", "must be positive and finite, got %f", dt)
	}
	n, nc := a.Dims()
	if n != nc {
		return nil, fmt.Errorf("%w: A is %dx%d", dynamo.ErrDimensionMismatch, n, nc)
	}
	br, m := b.Dims()
	if br != n {
		return nil, fmt.Errorf("%w: B has %d rows, want %d", dynamo.ErrDimensionMismatch, br, n)
	}
	p, cc := c.Dims()
	if cc != n {
		return nil, fmt.Errorf("%w: C has %d columns, want %d", dynamo.ErrDimensionMismatch, cc, n)
	}
	if d == nil {
		d = mat.NewDense(p, m, nil)
	}
	if dr, dc := d.Dims(); dr != p || dc != m {
		return nil, fmt.Errorf("%w: D is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, dr, dc, p, m)
	}

	ad, bd := Discretize(a, b, dt)
	if !finite(ad) || !finite(bd) {
		return nil, fmt.Errorf("discretize: %w", dynamo.ErrInvalidState)
	}

	return &System{
		A: a, B: b, C: c, D: d,
		Ad: ad, Bd: bd, Dt: dt,
		states: n, inputs: m, outputs: p,
	}, nil
}

func (s *System) States() int  { return s.states }
func (s *System) Inputs() int  { return s.inputs }
func (s *System) Outputs() int { return s.outputs }

// Discrete returns Ad and Bd for dt, reusing the cached pair for the nominal period.
func (s *System) Discrete(dt float64) (*mat.Dense, *mat.Dense) {
	if dt == s.Dt {
		return s.Ad, s.Bd
	}
	return Discretize(s.A, s.B, dt)
}

// Step returns Ad·x + Bd·u for the nominal period.
func (s *System) Step(x, u mat.Vector) *mat.VecDense {
	return s.StepDt(x, u, s.Dt)
}

func (s *System) StepDt(x, u mat.Vector, dt float64) *mat.VecDense {
	ad, bd := s.Discrete(dt)
	next := mat.NewVecDense(s.states, nil)
	next.MulVec(ad, x)
	if u != nil {
		bu := mat.NewVecDense(s.states, nil)
		bu.MulVec(bd, u)
		next.AddVec(next, bu)
	}
	return next
}

// Output returns C·x + D·u.
func (s *System) Output(x, u mat.Vector) *mat.VecDense {
	y := mat.NewVecDense(s.outputs, nil)
	y.MulVec(s.C, x)
	if u != nil {
		du := mat.NewVecDense(s.outputs, nil)
		du.MulVec(s.D, u)
		y.AddVec(y, du)
	}
	return y
}

func finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func eye(n int) *mat.Dense {
	result := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		result.Set(i, i, 1.0)
	}
	return result
}

// Diag builds a diagonal matrix from values.
func Diag(values ...float64) *mat.Dense {
	n := len(values)
	result := mat.NewDense(n, n, nil)
	for i, v := range values {
		result.Set(i, i, v)
	}
	return result
}

// CostMatrix builds Bryson's-rule weights diag(1/tol²).
func CostMatrix(tolerances ...float64) (*mat.Dense, error) {
	values := make([]float64, len(tolerances))
	for i, tol := range tolerances {
		if !(tol > 0) || math.IsInf(tol, 0) {
			return nil, fmt.Errorf("%w: tolerance %d must be positive, got %f", dynamo.ErrParameterBounds, i, tol)
		}
		values[i] = 1 / (tol * tol)
	}
	return Diag(values...), nil
}

// CovarianceMatrix builds diag(σ²).
func CovarianceMatrix(stdDevs ...float64) (*mat.Dense, error) {
	values := make([]float64, len(stdDevs))
	for i, sd := range stdDevs {
		if !(sd > 0) || math.IsInf(sd, 0) {
			return nil, fmt.Errorf("%w: std-dev %d must be positive, got %f", dynamo.ErrParameterBounds, i, sd)
		}
		values[i] = sd * sd
	}
	return Diag(values...), nil
}
