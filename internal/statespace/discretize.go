package statespace

import "gonum.org/v1/gonum/mat"

// Discretize applies a zero-order hold to (A, B) over dt using the matrix
// exponential of [[A B] [0 0]]·dt.
func Discretize(a, b mat.Matrix, dt float64) (ad, bd *mat.Dense) {
	n, _ := a.Dims()
	_, m := b.Dims()

	aug := mat.NewDense(n+m, n+m, nil)
	aug.Slice(0, n, 0, n).(*mat.Dense).Scale(dt, a)
	aug.Slice(0, n, n, n+m).(*mat.Dense).Scale(dt, b)

	var phi mat.Dense
	phi.Exp(aug)

	ad = mat.DenseCopyOf(phi.Slice(0, n, 0, n))
	bd = mat.DenseCopyOf(phi.Slice(0, n, n, n+m))
	return ad, bd
}

// DiscretizeAQ discretizes a continuous process-noise covariance Q with
// Van Loan's method and returns (Ad, Qd).
func DiscretizeAQ(a, q mat.Matrix, dt float64) (ad, qd *mat.Dense) {
	n, _ := a.Dims()

	m := mat.NewDense(2*n, 2*n, nil)
	m.Slice(0, n, 0, n).(*mat.Dense).Scale(-dt, a)
	m.Slice(0, n, n, 2*n).(*mat.Dense).Scale(dt, q)
	m.Slice(n, 2*n, n, 2*n).(*mat.Dense).Scale(dt, a.T())

	var phi mat.Dense
	phi.Exp(m)

	phi12 := phi.Slice(0, n, n, 2*n)
	phi22 := phi.Slice(n, 2*n, n, 2*n)

	ad = mat.DenseCopyOf(phi22.T())
	qd = mat.NewDense(n, n, nil)
	qd.Mul(ad, phi12)

	// Keep Qd exactly symmetric.
	sym := mat.NewDense(n, n, nil)
	sym.Add(qd, qd.T())
	sym.Scale(0.5, sym)
	return ad, sym
}

// DiscretizeR converts a continuous measurement covariance to its discrete
// equivalent for a sample period dt.
func DiscretizeR(r mat.Matrix, dt float64) *mat.Dense {
	rd := mat.DenseCopyOf(r)
	rd.Scale(1/dt, rd)
	return rd
}
