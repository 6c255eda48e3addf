// Package estimator implements the state observer of the joint.
//
// KalmanFilter fuses the plant's predicted evolution with noisy position
// measurements. It must be driven in the order Correct, then Predict, once
// per tick.
package estimator

import (
	"fmt"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/statespace"
	"gonum.org/v1/gonum/mat"
)

// KalmanFilter is a discrete-time linear Kalman filter over a fixed plant.
type KalmanFilter struct {
	sys *statespace.System

	contQ *mat.Dense
	qd    *mat.Dense
	rd    *mat.Dense

	// steady-state prior covariance and gain, used for seeding
	ssP *mat.Dense
	ssK *mat.Dense

	xhat *mat.VecDense
	p    *mat.Dense
	gain *mat.Dense
}

// New builds a filter for sys. stateStdDevs describe how far the model is
// trusted (one per state), measurementStdDevs how far the sensor is trusted
// (one per output). dt is the nominal loop period.
func New(sys *statespace.System, stateStdDevs, measurementStdDevs []float64, dt float64) (*KalmanFilter, error) {
	n, p := sys.States(), sys.Outputs()
	if len(stateStdDevs) != n {
		return nil, fmt.Errorf("%w: %d state std-devs for %d states", dynamo.ErrDimensionMismatch, len(stateStdDevs), n)
	}
	if len(measurementStdDevs) != p {
		return nil, fmt.Errorf("%w: %d measurement std-devs for %d outputs", dynamo.ErrDimensionMismatch, len(measurementStdDevs), p)
	}

	contQ, err := statespace.CovarianceMatrix(stateStdDevs...)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "tuning.state_std_devs", Wrapped: err}
	}
	contR, err := statespace.CovarianceMatrix(measurementStdDevs...)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "tuning.measurement_std_dev", Wrapped: err}
	}

	ad, qd := statespace.DiscretizeAQ(sys.A, contQ, dt)
	rd := statespace.DiscretizeR(contR, dt)

	// The filter Riccati equation is the dual of the regulator one.
	ssP, err := statespace.DARE(ad.T(), sys.C.T(), qd, rd)
	if err != nil {
		return nil, fmt.Errorf("kalman steady state: %w", err)
	}
	ssK, err := gain(ssP, sys.C, rd)
	if err != nil {
		return nil, err
	}

	kf := &KalmanFilter{
		sys:   sys,
		contQ: contQ,
		qd:    qd,
		rd:    rd,
		ssP:   ssP,
		ssK:   ssK,
	}
	kf.Reset(mat.NewVecDense(n, nil))
	return kf, nil
}

// gain returns P·Cᵀ·(C·P·Cᵀ + R)⁻¹.
func gain(p, c, r *mat.Dense) (*mat.Dense, error) {
	rows, n := c.Dims()
	s := mat.NewDense(rows, rows, nil)
	s.Product(c, p, c.T())
	s.Add(s, r)

	// K = P Cᵀ S⁻¹, solved as Sᵀ Kᵀ = C Pᵀ.
	cp := mat.NewDense(rows, n, nil)
	cp.Mul(c, p.T())
	var kt mat.Dense
	if err := kt.Solve(s.T(), cp); err != nil {
		return nil, fmt.Errorf("kalman gain: %w", dynamo.ErrSingular)
	}
	return mat.DenseCopyOf(kt.T()), nil
}

// Reset seeds the estimate with x0 and the covariance with the
// steady-state prior, the uncertainty the filter settles to anyway.
func (kf *KalmanFilter) Reset(x0 mat.Vector) {
	kf.xhat = mat.VecDenseCopyOf(x0)
	kf.p = mat.DenseCopyOf(kf.ssP)
	kf.gain = mat.DenseCopyOf(kf.ssK)
}

// Correct fuses measurement y taken while input u was applied.
func (kf *KalmanFilter) Correct(u, y mat.Vector) error {
	if y.Len() != kf.sys.Outputs() {
		return fmt.Errorf("%w: measurement has %d entries, want %d", dynamo.ErrDimensionMismatch, y.Len(), kf.sys.Outputs())
	}
	n := kf.sys.States()
	c := kf.sys.C

	residual := mat.NewVecDense(y.Len(), nil)
	residual.SubVec(y, kf.sys.Output(kf.xhat, u))

	k, err := gain(kf.p, c, kf.rd)
	if err != nil {
		return err
	}

	dx := mat.NewVecDense(n, nil)
	dx.MulVec(k, residual)
	next := mat.NewVecDense(n, nil)
	next.AddVec(kf.xhat, dx)
	if !dynamo.State(next.RawVector().Data).IsValid() {
		return fmt.Errorf("kalman correct: %w", dynamo.ErrInvalidState)
	}

	// Joseph form keeps P symmetric positive definite:
	// P = (I − KC) P (I − KC)ᵀ + K R Kᵀ
	ikc := mat.NewDense(n, n, nil)
	ikc.Mul(k, c)
	ikc.Sub(eye(n), ikc)

	p := mat.NewDense(n, n, nil)
	p.Product(ikc, kf.p, ikc.T())
	krk := mat.NewDense(n, n, nil)
	krk.Product(k, kf.rd, k.T())
	p.Add(p, krk)

	kf.xhat = next
	kf.p = p
	kf.gain = k
	return nil
}

// Predict advances the estimate by dt under input u.
func (kf *KalmanFilter) Predict(u mat.Vector, dt float64) {
	n := kf.sys.States()
	ad := kf.sys.Ad
	qd := kf.qd
	if dt != kf.sys.Dt {
		ad, qd = statespace.DiscretizeAQ(kf.sys.A, kf.contQ, dt)
	}

	kf.xhat = kf.sys.StepDt(kf.xhat, u, dt)

	p := mat.NewDense(n, n, nil)
	p.Product(ad, kf.p, ad.T())
	p.Add(p, qd)
	kf.p = p
}

// Xhat returns the current state estimate.
func (kf *KalmanFilter) Xhat() mat.Vector {
	return kf.xhat
}

// State returns the estimate as a joint state.
func (kf *KalmanFilter) State() dynamo.JointState {
	return dynamo.JointState{Position: kf.xhat.AtVec(0), Velocity: kf.xhat.AtVec(1)}
}

// P returns the current error covariance.
func (kf *KalmanFilter) P() mat.Matrix {
	return kf.p
}

// Gain returns the gain used by the last correction.
func (kf *KalmanFilter) Gain() mat.Matrix {
	return kf.gain
}

// SteadyStateGain returns the gain the filter converges to.
func (kf *KalmanFilter) SteadyStateGain() mat.Matrix {
	return kf.ssK
}

func eye(n int) *mat.Dense {
	result := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		result.Set(i, i, 1.0)
	}
	return result
}
