// Package grid generates the nominal pinhole positions of a calibration mask.
//
// A Geometry is a tagged variant: Kind selects the lattice family and the
// matching parameter record holds its parameters. Only hexagonal masks exist
// today; a new family adds a Kind constant, a parameter record and a case in
// Generate.
package grid

import (
	"fmt"
	"math"

	"astrocal/internal/calerr"
	"astrocal/pkg/geometry"
)

// Kind identifies a lattice family.
type Kind string

const (
	// KindHex is a hexagonal (triangular) lattice.
	KindHex Kind = "hex"
)

func (k Kind) String() string {
	switch k {
	case KindHex:
		return "Hex"
	default:
		return fmt.Sprintf("Kind(%q)", string(k))
	}
}

// Hex holds the parameters of a hexagonal lattice.
type Hex struct {
	Pitch    float64          `json:"pitch" yaml:"pitch"`       // spacing between neighbours (pixels)
	Rotation float64          `json:"rotation" yaml:"rotation"` // radians, counter-clockwise
	Offset   geometry.Point2D `json:"offset" yaml:"offset"`     // lattice origin relative to image centre (pixels)
}

// hexSymmetry is the rotational symmetry period of a hexagonal lattice.
const hexSymmetry = math.Pi / 3

// maxLatticeSpan bounds the index range per axis so a tiny pitch cannot
// stall generation.
const maxLatticeSpan = 4000

// Geometry is a mask geometry.
type Geometry struct {
	Kind Kind
	Hex  *Hex
}

// NewHex returns a hexagonal geometry.
func NewHex(pitch, rotation float64, offset geometry.Point2D) Geometry {
	return Geometry{Kind: KindHex, Hex: &Hex{Pitch: pitch, Rotation: rotation, Offset: offset}}
}

// Validate checks that the geometry parameters are usable.
func (g Geometry) Validate() error {
	switch g.Kind {
	case KindHex:
		if g.Hex == nil {
			return calerr.Configf("grid", "hex geometry without parameters")
		}
		h := g.Hex
		if math.IsNaN(h.Pitch) || math.IsInf(h.Pitch, 0) || h.Pitch <= 0 {
			return calerr.Configf("grid.pitch", "must be a positive finite number, got %v", h.Pitch)
		}
		if math.IsNaN(h.Rotation) || math.IsInf(h.Rotation, 0) {
			return calerr.Configf("grid.rotation", "must be finite, got %v", h.Rotation)
		}
		if !h.Offset.IsFinite() {
			return calerr.Configf("grid.offset", "must be finite, got (%v, %v)", h.Offset.X, h.Offset.Y)
		}
		return nil
	case "":
		return calerr.Configf("grid.type", "missing")
	default:
		return calerr.Configf("grid.type", "unsupported geometry %q", string(g.Kind))
	}
}

// Canonical returns a copy with the rotation folded into the lattice's
// symmetry period. The point set is unchanged; lattice indices may be
// relabelled.
func (g Geometry) Canonical() Geometry {
	switch g.Kind {
	case KindHex:
		if g.Hex == nil {
			return g
		}
		h := *g.Hex
		h.Rotation = math.Mod(h.Rotation, hexSymmetry)
		if h.Rotation < 0 {
			h.Rotation += hexSymmetry
		}
		return Geometry{Kind: KindHex, Hex: &h}
	default:
		return g
	}
}

func (g Geometry) String() string {
	switch g.Kind {
	case KindHex:
		if g.Hex == nil {
			return "Hex{}"
		}
		return fmt.Sprintf("Hex{pitch=%g rotation=%g offset=(%g,%g)}",
			g.Hex.Pitch, g.Hex.Rotation, g.Hex.Offset.X, g.Hex.Offset.Y)
	default:
		return g.Kind.String()
	}
}
