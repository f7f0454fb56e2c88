// Package distortion defines the bivariate polynomial distortion basis, the
// fitted model and its evaluation.
//
// Coordinates are normalised before the polynomial is applied:
//
//	u = (x - Center.X) / Scale
//	v = (y - Center.Y) / Scale
//
// and the terms are ordered by total degree n = 0..Degree, then by the
// power of u, k = 0..n, giving u^k * v^(n-k). Coefficient slices follow the
// same order everywhere: in the solve, in the evaluator and on disk.
package distortion

import (
	"fmt"
	"math"

	"astrocal/internal/calerr"
	"astrocal/pkg/geometry"
)

// MaxDegree caps the polynomial degree; higher orders are numerically
// meaningless over a detector field.
const MaxDegree = 12

// Term is one basis monomial u^XPow * v^YPow.
type Term struct {
	XPow int `json:"xpow"`
	YPow int `json:"ypow"`
}

func (t Term) String() string {
	switch {
	case t.XPow == 0 && t.YPow == 0:
		return "1"
	case t.YPow == 0:
		return monomial("u", t.XPow)
	case t.XPow == 0:
		return monomial("v", t.YPow)
	default:
		return monomial("u", t.XPow) + "*" + monomial("v", t.YPow)
	}
}

func monomial(name string, pow int) string {
	if pow == 1 {
		return name
	}
	return fmt.Sprintf("%s^%d", name, pow)
}

// NumTerms returns the number of monomials of total degree <= degree.
func NumTerms(degree int) int {
	return (degree + 1) * (degree + 2) / 2
}

// Basis is a normalised bivariate polynomial basis.
type Basis struct {
	Degree int              `json:"degree"`
	Center geometry.Point2D `json:"center"`
	Scale  float64          `json:"scale"`
}

// NewBasis validates and returns a basis.
func NewBasis(degree int, center geometry.Point2D, scale float64) (Basis, error) {
	b := Basis{Degree: degree, Center: center, Scale: scale}
	return b, b.Validate()
}

// FieldBasis returns a basis normalised to a width x height detector: the
// centre is the field centre and one unit spans half the longer side.
func FieldBasis(degree, width, height int) (Basis, error) {
	if width <= 0 || height <= 0 {
		return Basis{}, calerr.Configf("bounds", "must be positive, got %dx%d", width, height)
	}
	center := geometry.Point2D{X: float64(width/2) - 0.5, Y: float64(height/2) - 0.5}
	return NewBasis(degree, center, float64(max(width, height))/2)
}

// Validate checks the basis parameters.
func (b Basis) Validate() error {
	if b.Degree < 0 {
		return calerr.Configf("solve.degree", "must be non-negative, got %d", b.Degree)
	}
	if b.Degree > MaxDegree {
		return calerr.Configf("solve.degree", "must be at most %d, got %d", MaxDegree, b.Degree)
	}
	if math.IsNaN(b.Scale) || math.IsInf(b.Scale, 0) || b.Scale <= 0 {
		return calerr.Configf("basis.scale", "must be a positive finite number, got %v", b.Scale)
	}
	if !b.Center.IsFinite() {
		return calerr.Configf("basis.center", "must be finite")
	}
	return nil
}

// Len returns the number of basis terms.
func (b Basis) Len() int {
	return NumTerms(b.Degree)
}

// Terms returns the monomials in canonical order.
func (b Basis) Terms() []Term {
	terms := make([]Term, 0, b.Len())
	for n := 0; n <= b.Degree; n++ {
		for k := 0; k <= n; k++ {
			terms = append(terms, Term{XPow: k, YPow: n - k})
		}
	}
	return terms
}

// Normalize maps a pixel coordinate to basis coordinates (u, v).
func (b Basis) Normalize(p geometry.Point2D) (u, v float64) {
	return (p.X - b.Center.X) / b.Scale, (p.Y - b.Center.Y) / b.Scale
}

// Sample evaluates every basis term at p, appending to dst[:0].
func (b Basis) Sample(p geometry.Point2D, dst []float64) []float64 {
	u, v := b.Normalize(p)

	upow := make([]float64, b.Degree+1)
	vpow := make([]float64, b.Degree+1)
	upow[0], vpow[0] = 1, 1
	for i := 1; i <= b.Degree; i++ {
		upow[i] = upow[i-1] * u
		vpow[i] = vpow[i-1] * v
	}

	dst = dst[:0]
	for n := 0; n <= b.Degree; n++ {
		for k := 0; k <= n; k++ {
			dst = append(dst, upow[k]*vpow[n-k])
		}
	}
	return dst
}
