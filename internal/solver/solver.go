// Package solver fits a distortion field and per-pinhole position
// corrections jointly from shifted-mask centroid observations.
//
// Each observation of lattice point i in exposure j is modelled as
//
//	c_ij = p_i + delta_i + s_j + D(p_i + s_j)
//
// where p_i is the nominal home position, delta_i the unknown pinhole
// correction, s_j the mask shift and D the polynomial distortion field
// evaluated at the nominal shifted position. The model is linear in the
// unknowns, and x and y share one design matrix.
package solver

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"astrocal/internal/calerr"
	"astrocal/internal/distortion"
	"astrocal/internal/grid"
	"astrocal/pkg/geometry"
)

// Observation is one valid centroid of one lattice point in one exposure.
type Observation struct {
	Exposure int
	Index    grid.Index
	Nominal  geometry.Point2D // home position p_i
	Shift    geometry.Point2D // mask shift s_j
	Measured geometry.Point2D // centroid c_ij
}

// Pinhole is the estimated home position of one lattice point.
type Pinhole struct {
	Index        grid.Index
	Nominal      geometry.Point2D
	Correction   geometry.Point2D
	Observations int
}

// Corrected returns the nominal position plus the fitted correction.
func (p Pinhole) Corrected() geometry.Point2D {
	return p.Nominal.Add(p.Correction)
}

// Result is a successful solve.
type Result struct {
	Model    *distortion.Model
	Pinholes []Pinhole // nil unless Options.KeepPinholes
	Summary  Summary
}

type obsKey struct {
	exposure int
	index    grid.Index
}

// system is the assembled observation set shared by both formulations.
type system struct {
	basis distortion.Basis
	obs   []Observation

	pinholes []grid.Index
	nominal  []geometry.Point2D
	counts   []int
	rowPin   []int // row -> pinhole

	exposures []int

	phi *mat.Dense // rows x K basis samples at p_i + s_j
	rhs *mat.Dense // rows x 2, c_ij - p_i - s_j
}

func (s *system) rows() int  { return len(s.obs) }
func (s *system) terms() int { return s.basis.Len() }

// unknowns is the number of free parameters per axis once the gauge is
// fixed.
func (s *system) unknowns() int {
	return len(s.pinholes) + s.terms() - 1
}

// Solve fits the distortion model to the observations.
func Solve(obs []Observation, basis distortion.Basis, opts Options) (*Result, error) {
	if err := basis.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sys, err := assemble(obs, basis)
	if err != nil {
		return nil, err
	}

	need := max(sys.unknowns()+opts.MinRedundancy, 1)
	if sys.rows() < need {
		return nil, &calerr.InsufficientDataError{Have: sys.rows(), Need: need, Degree: basis.Degree}
	}

	method := opts.Method
	if method == MethodAuto {
		method = MethodJoint
		if sys.unknowns() > opts.JointLimit {
			method = MethodEliminated
		}
	}

	logrus.WithFields(logrus.Fields{
		"observations": sys.rows(),
		"pinholes":     len(sys.pinholes),
		"exposures":    len(sys.exposures),
		"degree":       basis.Degree,
		"unknowns":     sys.unknowns(),
		"method":       method,
		"gauge":        opts.Gauge,
	}).Debug("solving distortion system")

	var sol *solution
	switch method {
	case MethodJoint:
		sol, err = solveJoint(sys, opts)
	default:
		sol, err = solveEliminated(sys, opts)
	}
	if err != nil {
		return nil, err
	}

	coeffX := make([]float64, sys.terms())
	coeffY := make([]float64, sys.terms())
	for k := range coeffX {
		coeffX[k] = sol.coef.At(k, 0)
		coeffY[k] = sol.coef.At(k, 1)
	}
	model, err := distortion.NewModel(basis, coeffX, coeffY)
	if err != nil {
		return nil, &calerr.DegeneracyError{Cond: sol.cond, MaxCond: opts.MaxCondition, Detail: err.Error()}
	}

	res := &Result{Model: model}
	res.Summary = summarize(sys, sol, method)
	if opts.KeepPinholes {
		res.Pinholes = make([]Pinhole, len(sys.pinholes))
		for i, idx := range sys.pinholes {
			res.Pinholes[i] = Pinhole{
				Index:        idx,
				Nominal:      sys.nominal[i],
				Correction:   geometry.Point2D{X: sol.delta.At(i, 0), Y: sol.delta.At(i, 1)},
				Observations: sys.counts[i],
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"rms":       res.Summary.RMS,
		"max":       res.Summary.MaxResidual,
		"condition": res.Summary.Condition,
	}).Debug("distortion solve complete")

	return res, nil
}

// assemble indexes pinholes and exposures and fills the basis and
// right-hand-side matrices. Observations with non-finite values are
// skipped.
func assemble(obs []Observation, basis distortion.Basis) (*system, error) {
	sys := &system{basis: basis}

	seen := make(map[obsKey]struct{}, len(obs))
	pinSet := make(map[grid.Index]geometry.Point2D)
	expSet := make(map[int]struct{})
	for _, o := range obs {
		if !o.Measured.IsFinite() || !o.Nominal.IsFinite() || !o.Shift.IsFinite() {
			continue
		}
		key := obsKey{o.Exposure, o.Index}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate observation of lattice point %s in exposure %d", o.Index, o.Exposure)
		}
		seen[key] = struct{}{}

		if nom, ok := pinSet[o.Index]; ok && nom != o.Nominal {
			return nil, fmt.Errorf("lattice point %s has inconsistent nominal positions %v and %v", o.Index, nom, o.Nominal)
		}
		pinSet[o.Index] = o.Nominal
		expSet[o.Exposure] = struct{}{}
		sys.obs = append(sys.obs, o)
	}

	sys.pinholes = make([]grid.Index, 0, len(pinSet))
	for idx := range pinSet {
		sys.pinholes = append(sys.pinholes, idx)
	}
	sort.Slice(sys.pinholes, func(a, b int) bool {
		pa, pb := sys.pinholes[a], sys.pinholes[b]
		if pa.J != pb.J {
			return pa.J < pb.J
		}
		return pa.I < pb.I
	})
	pinIdx := make(map[grid.Index]int, len(sys.pinholes))
	sys.nominal = make([]geometry.Point2D, len(sys.pinholes))
	for i, idx := range sys.pinholes {
		pinIdx[idx] = i
		sys.nominal[i] = pinSet[idx]
	}

	for e := range expSet {
		sys.exposures = append(sys.exposures, e)
	}
	sort.Ints(sys.exposures)

	n := len(sys.obs)
	if n == 0 {
		return sys, nil
	}

	k := basis.Len()
	sys.phi = mat.NewDense(n, k, nil)
	sys.rhs = mat.NewDense(n, 2, nil)
	sys.rowPin = make([]int, n)
	sys.counts = make([]int, len(sys.pinholes))
	buf := make([]float64, 0, k)
	for r, o := range sys.obs {
		pin := pinIdx[o.Index]
		sys.rowPin[r] = pin
		sys.counts[pin]++

		buf = basis.Sample(o.Nominal.Add(o.Shift), buf)
		sys.phi.SetRow(r, buf)

		d := o.Measured.Sub(o.Nominal).Sub(o.Shift)
		sys.rhs.Set(r, 0, d.X)
		sys.rhs.Set(r, 1, d.Y)
	}
	return sys, nil
}

// solution holds the fitted parameters for both axes.
type solution struct {
	coef  *mat.Dense // K x 2, full basis including the constant term
	delta *mat.Dense // M x 2
	cond  float64
}

// conditionNumber returns the 2-norm condition number of a, +Inf when it
// is singular or the decomposition fails.
func conditionNumber(a mat.Matrix) float64 {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return math.Inf(1)
	}
	return svd.Cond()
}

// checkCondition returns a DegeneracyError when a is too poorly conditioned
// to solve.
func checkCondition(sys *system, a mat.Matrix, opts Options) (float64, error) {
	cond := conditionNumber(a)
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > opts.MaxCondition {
		return cond, &calerr.DegeneracyError{Cond: cond, MaxCond: opts.MaxCondition, Detail: diagnose(sys)}
	}
	return cond, nil
}

// diagnose names the most likely cause of a degenerate system.
func diagnose(sys *system) string {
	shifts := make(map[geometry.Point2D]struct{})
	var pts []geometry.Point2D
	for _, o := range sys.obs {
		if _, ok := shifts[o.Shift]; !ok {
			shifts[o.Shift] = struct{}{}
			pts = append(pts, o.Shift)
		}
	}
	switch {
	case len(pts) < 2:
		return "all exposures share one mask shift"
	case collinear(pts):
		return fmt.Sprintf("%d distinct mask shifts are collinear", len(pts))
	case len(sys.pinholes) < sys.terms():
		return fmt.Sprintf("%d lattice points observed for %d basis terms", len(sys.pinholes), sys.terms())
	}
	return fmt.Sprintf("%d distinct mask shifts, degree %d", len(pts), sys.basis.Degree)
}

func collinear(pts []geometry.Point2D) bool {
	if len(pts) < 3 {
		return true
	}
	bb := geometry.BoundingBox(pts)
	tol := 1e-9 * math.Max(1, bb.Diagonal()*bb.Diagonal())
	a := pts[0]
	var far geometry.Point2D
	farDist := -1.0
	for _, p := range pts[1:] {
		if d := p.Distance(a); d > farDist {
			far, farDist = p, d
		}
	}
	for _, p := range pts {
		cross := (far.X-a.X)*(p.Y-a.Y) - (far.Y-a.Y)*(p.X-a.X)
		if math.Abs(cross) > tol {
			return false
		}
	}
	return true
}
