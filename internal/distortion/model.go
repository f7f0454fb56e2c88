package distortion

import (
	"fmt"
	"math"

	"astrocal/pkg/geometry"
)

// Model is a fitted distortion field: two independent polynomials over the
// same basis, one per displacement axis. It is not modified after creation.
type Model struct {
	Basis  Basis
	CoeffX []float64
	CoeffY []float64
}

// NewModel checks that the coefficient vectors match the basis.
func NewModel(b Basis, coeffX, coeffY []float64) (*Model, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(coeffX) != b.Len() || len(coeffY) != b.Len() {
		return nil, fmt.Errorf("coefficient count mismatch: x=%d y=%d, basis has %d terms",
			len(coeffX), len(coeffY), b.Len())
	}
	for i := range coeffX {
		if math.IsNaN(coeffX[i]) || math.IsInf(coeffX[i], 0) || math.IsNaN(coeffY[i]) || math.IsInf(coeffY[i], 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	return &Model{Basis: b, CoeffX: coeffX, CoeffY: coeffY}, nil
}

// Degree returns the polynomial degree.
func (m *Model) Degree() int {
	return m.Basis.Degree
}

// Evaluate returns the displacement (dx, dy) at p.
func (m *Model) Evaluate(p geometry.Point2D) geometry.Point2D {
	samples := m.Basis.Sample(p, make([]float64, 0, m.Basis.Len()))
	var d geometry.Point2D
	for i, s := range samples {
		d.X += m.CoeffX[i] * s
		d.Y += m.CoeffY[i] * s
	}
	return d
}

// Displacement is the model evaluated at one query coordinate.
type Displacement struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// EvaluateAll evaluates the model at every point, preserving order.
func (m *Model) EvaluateAll(points []geometry.Point2D) []Displacement {
	out := make([]Displacement, len(points))
	buf := make([]float64, 0, m.Basis.Len())
	for i, p := range points {
		buf = m.Basis.Sample(p, buf)
		var dx, dy float64
		for k, s := range buf {
			dx += m.CoeffX[k] * s
			dy += m.CoeffY[k] * s
		}
		out[i] = Displacement{X: p.X, Y: p.Y, DX: dx, DY: dy}
	}
	return out
}

// Coefficient pairs a basis term with its x and y coefficients.
type Coefficient struct {
	Term Term    `json:"term"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Coefficients lists the coefficients tagged with their terms, in basis
// order.
func (m *Model) Coefficients() []Coefficient {
	terms := m.Basis.Terms()
	out := make([]Coefficient, len(terms))
	for i, t := range terms {
		out[i] = Coefficient{Term: t, X: m.CoeffX[i], Y: m.CoeffY[i]}
	}
	return out
}
