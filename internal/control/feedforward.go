package control

import (
	"fmt"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/statespace"
	"gonum.org/v1/gonum/mat"
)

// Feedforward inverts the plant to find the input that moves the reference
// from r to nextR in one period: u = B⁺(nextR − A·r).
type Feedforward struct {
	ad   *mat.Dense
	bInv *mat.Dense
	r    *mat.VecDense
	u    *mat.VecDense
}

func NewFeedforward(sys *statespace.System, dt float64) (*Feedforward, error) {
	ad, bd := sys.Discrete(dt)
	bInv, err := statespace.Pinv(bd)
	if err != nil {
		return nil, fmt.Errorf("feedforward: %w", err)
	}
	return &Feedforward{
		ad:   ad,
		bInv: bInv,
		r:    mat.NewVecDense(sys.States(), nil),
		u:    mat.NewVecDense(sys.Inputs(), nil),
	}, nil
}

// Reset sets the current reference without producing an input.
func (f *Feedforward) Reset(r dynamo.JointState) {
	f.r.SetVec(0, r.Position)
	f.r.SetVec(1, r.Velocity)
	f.u.Zero()
}

// Calculate returns the feedforward input toward nextR and advances the
// stored reference.
func (f *Feedforward) Calculate(nextR dynamo.JointState) float64 {
	next := mat.NewVecDense(2, []float64{nextR.Position, nextR.Velocity})
	ar := mat.NewVecDense(2, nil)
	ar.MulVec(f.ad, f.r)
	ar.SubVec(next, ar)
	f.u.MulVec(f.bInv, ar)
	f.r.CopyVec(next)
	return f.u.AtVec(0)
}
