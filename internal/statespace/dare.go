package statespace

import (
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	dareTolerance     = 1e-10
	dareMaxIterations = 100
)

// DARE solves AᵀXA − X − AᵀXB(BᵀXB + R)⁻¹BᵀXA + Q = 0 for X with the
// structured doubling algorithm. (A, B) must be stabilizable and R positive
// definite; otherwise an error wrapping ErrSingular or ErrNoConvergence is returned.
func DARE(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	n, _ := a.Dims()
	_, m := b.Dims()
	if qr, qc := q.Dims(); qr != n || qc != n {
		return nil, fmt.Errorf("%w: Q is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, qr, qc, n, n)
	}
	if rr, rc := r.Dims(); rr != m || rc != m {
		return nil, fmt.Errorf("%w: R is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, rr, rc, m, m)
	}

	// G = B R⁻¹ Bᵀ
	var rInvBt mat.Dense
	if err := rInvBt.Solve(r, b.T()); err != nil {
		return nil, fmt.Errorf("dare: R: %w", dynamo.ErrSingular)
	}
	g := mat.NewDense(n, n, nil)
	g.Mul(b, &rInvBt)

	ak := mat.DenseCopyOf(a)
	h := mat.DenseCopyOf(q)
	id := eye(n)

	for i := 0; i < dareMaxIterations; i++ {
		w := mat.NewDense(n, n, nil)
		w.Mul(g, h)
		w.Add(id, w)

		var v1, v2 mat.Dense
		if err := v1.Solve(w, ak); err != nil {
			return nil, fmt.Errorf("dare: iteration %d: %w", i, dynamo.ErrSingular)
		}
		if err := v2.Solve(w, g); err != nil {
			return nil, fmt.Errorf("dare: iteration %d: %w", i, dynamo.ErrSingular)
		}

		gNext := mat.NewDense(n, n, nil)
		gNext.Product(ak, &v2, ak.T())
		gNext.Add(g, gNext)

		hNext := mat.NewDense(n, n, nil)
		hNext.Product(v1.T(), h, ak)
		hNext.Add(h, hNext)

		aNext := mat.NewDense(n, n, nil)
		aNext.Mul(ak, &v1)

		diff := mat.NewDense(n, n, nil)
		diff.Sub(hNext, h)
		delta := mat.Norm(diff, 2)
		scale := mat.Norm(hNext, 2)
		if math.IsNaN(scale) || math.IsInf(scale, 0) {
			return nil, fmt.Errorf("dare: diverged at iteration %d: %w", i, dynamo.ErrNoConvergence)
		}

		g, h, ak = gNext, hNext, aNext
		if delta <= dareTolerance*scale {
			return symmetrize(h), nil
		}
	}
	return nil, fmt.Errorf("dare: %d iterations: %w", dareMaxIterations, dynamo.ErrNoConvergence)
}

func symmetrize(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, n, nil)
	out.Add(x, x.T())
	out.Scale(0.5, out)
	return out
}

// Pinv returns the left pseudo-inverse (BᵀB)⁻¹Bᵀ of a full column rank matrix.
func Pinv(b mat.Matrix) (*mat.Dense, error) {
	_, m := b.Dims()
	btb := mat.NewDense(m, m, nil)
	btb.Mul(b.T(), b)
	var out mat.Dense
	if err := out.Solve(btb, b.T()); err != nil {
		return nil, fmt.Errorf("pinv: %w", dynamo.ErrSingular)
	}
	return &out, nil
}
