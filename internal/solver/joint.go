package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"astrocal/internal/calerr"
)

// solveJoint builds the dense design matrix over pinhole corrections and
// distortion coefficients and solves both axes with one QR factorisation.
//
// Columns 0..M-1 are the pinhole corrections, the rest the basis terms.
// Under GaugeFieldCenter the constant term is omitted; under
// GaugeMeanCorrection it is kept and a final row constrains the
// corrections to sum to zero.
func solveJoint(sys *system, opts Options) (*solution, error) {
	m := len(sys.pinholes)
	k := sys.terms()

	first := 1
	rows := sys.rows()
	if opts.Gauge == GaugeMeanCorrection {
		first = 0
		rows++
	}
	cols := m + k - first

	A := mat.NewDense(rows, cols, nil)
	B := mat.NewDense(rows, 2, nil)
	for r := 0; r < sys.rows(); r++ {
		A.Set(r, sys.rowPin[r], 1)
		for t := first; t < k; t++ {
			A.Set(r, m+t-first, sys.phi.At(r, t))
		}
		B.Set(r, 0, sys.rhs.At(r, 0))
		B.Set(r, 1, sys.rhs.At(r, 1))
	}
	if opts.Gauge == GaugeMeanCorrection {
		for i := 0; i < m; i++ {
			A.Set(rows-1, i, 1)
		}
	}

	cond, err := checkCondition(sys, A, opts)
	if err != nil {
		return nil, err
	}

	var qr mat.QR
	qr.Factorize(A)

	var x mat.Dense
	if err := qr.SolveTo(&x, false, B); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, &calerr.DegeneracyError{Cond: float64(c), MaxCond: opts.MaxCondition, Detail: diagnose(sys)}
		}
		return nil, fmt.Errorf("joint solve: %w", err)
	}

	sol := &solution{
		coef:  mat.NewDense(k, 2, nil),
		delta: mat.NewDense(m, 2, nil),
		cond:  cond,
	}
	for i := 0; i < m; i++ {
		sol.delta.SetRow(i, x.RawRowView(i))
	}
	for t := first; t < k; t++ {
		sol.coef.SetRow(t, x.RawRowView(m+t-first))
	}
	return sol, nil
}
