package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"astrocal/internal/calerr"
)

// solveEliminated solves the same system as solveJoint with the pinhole
// corrections eliminated.
//
// For fixed coefficients the best correction of pinhole i is the mean
// residual over its observations, so subtracting per-pinhole means from
// both the basis rows and the right-hand side leaves a K-1 column system
// in the non-constant coefficients. The constant column vanishes under
// centring; it is set by the gauge afterwards and the corrections are
// recovered by back-substitution.
func solveEliminated(sys *system, opts Options) (*solution, error) {
	m := len(sys.pinholes)
	k := sys.terms()
	n := sys.rows()

	phiMean := mat.NewDense(m, k, nil)
	rhsMean := mat.NewDense(m, 2, nil)
	for r := 0; r < n; r++ {
		pin := sys.rowPin[r]
		w := 1 / float64(sys.counts[pin])
		for t := 0; t < k; t++ {
			phiMean.Set(pin, t, phiMean.At(pin, t)+w*sys.phi.At(r, t))
		}
		rhsMean.Set(pin, 0, rhsMean.At(pin, 0)+w*sys.rhs.At(r, 0))
		rhsMean.Set(pin, 1, rhsMean.At(pin, 1)+w*sys.rhs.At(r, 1))
	}

	sol := &solution{
		coef:  mat.NewDense(k, 2, nil),
		delta: mat.NewDense(m, 2, nil),
		cond:  1,
	}

	if k > 1 {
		A := mat.NewDense(n, k-1, nil)
		B := mat.NewDense(n, 2, nil)
		for r := 0; r < n; r++ {
			pin := sys.rowPin[r]
			for t := 1; t < k; t++ {
				A.Set(r, t-1, sys.phi.At(r, t)-phiMean.At(pin, t))
			}
			B.Set(r, 0, sys.rhs.At(r, 0)-rhsMean.At(pin, 0))
			B.Set(r, 1, sys.rhs.At(r, 1)-rhsMean.At(pin, 1))
		}

		if err := checkCentred(sys, A, opts); err != nil {
			return nil, err
		}
		cond, err := checkCondition(sys, A, opts)
		if err != nil {
			return nil, err
		}
		sol.cond = cond

		var qr mat.QR
		qr.Factorize(A)

		var beta mat.Dense
		if err := qr.SolveTo(&beta, false, B); err != nil {
			var c mat.Condition
			if errors.As(err, &c) {
				return nil, &calerr.DegeneracyError{Cond: float64(c), MaxCond: opts.MaxCondition, Detail: diagnose(sys)}
			}
			return nil, fmt.Errorf("reduced solve: %w", err)
		}
		for t := 1; t < k; t++ {
			sol.coef.SetRow(t, beta.RawRowView(t-1))
		}
	}

	// delta_i = mean residual of pinhole i under the non-constant field.
	var meanX, meanY float64
	for i := 0; i < m; i++ {
		dx, dy := rhsMean.At(i, 0), rhsMean.At(i, 1)
		for t := 1; t < k; t++ {
			dx -= phiMean.At(i, t) * sol.coef.At(t, 0)
			dy -= phiMean.At(i, t) * sol.coef.At(t, 1)
		}
		sol.delta.Set(i, 0, dx)
		sol.delta.Set(i, 1, dy)
		meanX += dx
		meanY += dy
	}

	if opts.Gauge == GaugeMeanCorrection && m > 0 {
		meanX /= float64(m)
		meanY /= float64(m)
		sol.coef.Set(0, 0, meanX)
		sol.coef.Set(0, 1, meanY)
		for i := 0; i < m; i++ {
			sol.delta.Set(i, 0, sol.delta.At(i, 0)-meanX)
			sol.delta.Set(i, 1, sol.delta.At(i, 1)-meanY)
		}
	}
	return sol, nil
}

// checkCentred rejects basis terms that centring wiped out: a term that is
// constant over every pinhole's observations carries no information, and
// the rounding noise left in its column would otherwise hide that from the
// condition number.
func checkCentred(sys *system, centred *mat.Dense, opts Options) error {
	for t := 1; t < sys.terms(); t++ {
		before := mat.Norm(sys.phi.ColView(t), 2)
		after := mat.Norm(centred.ColView(t-1), 2)
		if before == 0 || after*opts.MaxCondition < before {
			cond := math.Inf(1)
			if after > 0 {
				cond = before / after
			}
			return &calerr.DegeneracyError{
				Cond:    cond,
				MaxCond: opts.MaxCondition,
				Detail:  diagnose(sys) + fmt.Sprintf(", term %s unconstrained", sys.basis.Terms()[t]),
			}
		}
	}
	return nil
}
