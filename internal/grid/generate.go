package grid

import (
	"fmt"
	"math"

	"astrocal/internal/calerr"
	"astrocal/pkg/geometry"
)

// Index identifies a lattice cell.
type Index struct {
	I int `json:"i"`
	J int `json:"j"`
}

func (ix Index) String() string {
	return fmt.Sprintf("(%d,%d)", ix.I, ix.J)
}

// Point is a nominal pinhole: a lattice index and its home position.
type Point struct {
	Index Index            `json:"index"`
	Pos   geometry.Point2D `json:"pos"`
}

// Shifted returns the nominal position of the pinhole for a mask shift.
func (p Point) Shifted(shift geometry.Point2D) geometry.Point2D {
	return p.Pos.Add(shift)
}

// FieldCenter returns the continuous coordinate of the centre of a
// width x height image under the pixel-centre convention.
func FieldCenter(width, height int) geometry.Point2D {
	return geometry.Point2D{
		X: float64(width/2) - 0.5,
		Y: float64(height/2) - 0.5,
	}
}

// Generate returns every lattice point whose home position lies in
// [0,width) x [0,height), with lattice index (0,0) at center+offset.
// Points are ordered by J then I, so identical inputs give identical output.
func (g Geometry) Generate(center geometry.Point2D, width, height int) ([]Point, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, calerr.Configf("bounds", "must be positive, got %dx%d", width, height)
	}

	switch g.Kind {
	case KindHex:
		return g.Hex.generate(center, width, height)
	default:
		return nil, calerr.Configf("grid.type", "unsupported geometry %q", string(g.Kind))
	}
}

// Basis returns the transform mapping lattice index (i, j) to the position
// relative to the lattice origin.
func (h *Hex) Basis() geometry.AffineTransform {
	shape := geometry.AffineTransform{
		A: h.Pitch, B: 0.5 * h.Pitch,
		C: 0, D: math.Sqrt(3) / 2 * h.Pitch,
	}
	return geometry.Rotation(h.Rotation).Compose(shape)
}

func (h *Hex) generate(center geometry.Point2D, width, height int) ([]Point, error) {
	origin := center.Add(h.Offset)
	bounds := geometry.Rect{Width: float64(width), Height: float64(height)}

	basis := h.Basis()
	basis.TX, basis.TY = origin.X, origin.Y
	toIndex, ok := basis.Inverse()
	if !ok {
		return nil, calerr.Configf("grid.pitch", "pitch %g gives a singular lattice basis", h.Pitch)
	}

	// The field is a parallelogram in index space; its corners bound i and j.
	iMin, jMin := math.Inf(1), math.Inf(1)
	iMax, jMax := math.Inf(-1), math.Inf(-1)
	for _, c := range []geometry.Point2D{
		{X: 0, Y: 0}, {X: bounds.Width, Y: 0},
		{X: 0, Y: bounds.Height}, {X: bounds.Width, Y: bounds.Height},
	} {
		ij := toIndex.Apply(c)
		iMin, iMax = math.Min(iMin, ij.X), math.Max(iMax, ij.X)
		jMin, jMax = math.Min(jMin, ij.Y), math.Max(jMax, ij.Y)
	}
	if iMax-iMin > maxLatticeSpan || jMax-jMin > maxLatticeSpan {
		return nil, calerr.Configf("grid.pitch", "pitch %g is too small for a %dx%d field", h.Pitch, width, height)
	}
	i0, i1 := int(math.Floor(iMin)), int(math.Ceil(iMax))
	j0, j1 := int(math.Floor(jMin)), int(math.Ceil(jMax))

	var points []Point
	for j := j0; j <= j1; j++ {
		for i := i0; i <= i1; i++ {
			pos := basis.Apply(geometry.Point2D{X: float64(i), Y: float64(j)})
			if !bounds.Contains(pos) {
				continue
			}
			points = append(points, Point{Index: Index{I: i, J: j}, Pos: pos})
		}
	}
	return points, nil
}
