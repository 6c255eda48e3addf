package control

import (
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/statespace"
	"gonum.org/v1/gonum/mat"
)

type LQR struct {
	K *mat.Dense
	u *mat.VecDense
}

// NewLQR computes K = (BᵀSB + R)⁻¹BᵀSA for the plant discretized at dt,
// with Q = diag(1/qelms²) and R = diag(1/relms²). qelms are the acceptable
// excursions per state, relms the acceptable effort per input.
func NewLQR(sys *statespace.System, qelms, relms []float64, dt float64) (*LQR, error) {
	if len(qelms) != sys.States() || len(relms) != sys.Inputs() {
		return nil, fmt.Errorf("%w: lqr tolerances %d/%d for %d states, %d inputs",
			dynamo.ErrDimensionMismatch, len(qelms), len(relms), sys.States(), sys.Inputs())
	}
	q, err := statespace.CostMatrix(qelms...)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "tuning.q_tolerances", Wrapped: err}
	}
	r, err := statespace.CostMatrix(relms...)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "tuning.r_tolerance", Wrapped: err}
	}

	ad, bd := sys.Discrete(dt)
	k, err := Gain(ad, bd, q, r)
	if err != nil {
		return nil, err
	}
	return NewLQRFromGain(k), nil
}

// NewLQRFromGain wraps a precomputed gain.
func NewLQRFromGain(k *mat.Dense) *LQR {
	rows, _ := k.Dims()
	return &LQR{K: k, u: mat.NewVecDense(rows, nil)}
}

// Gain solves the discrete regulator problem for (A, B, Q, R).
func Gain(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	s, err := statespace.DARE(a, b, q, r)
	if err != nil {
		return nil, fmt.Errorf("lqr: %w", err)
	}
	_, m := b.Dims()
	n, _ := a.Dims()

	lhs := mat.NewDense(m, m, nil)
	lhs.Product(b.T(), s, b)
	lhs.Add(lhs, r)

	rhs := mat.NewDense(m, n, nil)
	rhs.Product(b.T(), s, a)

	var k mat.Dense
	if err := k.Solve(lhs, rhs); err != nil {
		return nil, fmt.Errorf("lqr gain: %w", dynamo.ErrSingular)
	}
	if !dynamo.State(k.RawMatrix().Data).IsValid() {
		return nil, fmt.Errorf("lqr gain: %w", dynamo.ErrInvalidState)
	}
	return &k, nil
}

// Calculate returns K·(r − x). The result is unclamped.
func (l *LQR) Calculate(x, r mat.Vector) mat.Vector {
	e := mat.NewVecDense(r.Len(), nil)
	e.SubVec(r, x)
	l.u.MulVec(l.K, e)
	return l.u
}

// CalculateScalar is Calculate for a single-input plant with joint states.
func (l *LQR) CalculateScalar(x, r dynamo.JointState) float64 {
	return l.Calculate(mat.NewVecDense(2, x.Vector()), mat.NewVecDense(2, r.Vector())).AtVec(0)
}

// Clamp saturates u to [-limit, limit]. NaN maps to zero.
func Clamp(u, limit float64) float64 {
	if math.IsNaN(u) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, u))
}
