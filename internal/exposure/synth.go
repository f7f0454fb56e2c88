package exposure

import (
	"math"

	"astrocal/pkg/geometry"
)

// Spot is a Gaussian point source used to synthesise frames.
type Spot struct {
	Pos   geometry.Point2D
	Flux  float64 // integrated intensity
	Sigma float64 // Gaussian width (pixels)
}

// Synthesize renders Gaussian spots on a constant background. Each spot is
// point-sampled at pixel centres out to six sigma.
func Synthesize(width, height int, spots []Spot, background float64, shift geometry.Point2D) *Frame {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = background
	}

	for _, s := range spots {
		if s.Sigma <= 0 || s.Flux == 0 {
			continue
		}
		amp := s.Flux / (2 * math.Pi * s.Sigma * s.Sigma)
		inv := 1 / (2 * s.Sigma * s.Sigma)
		reach := 6 * s.Sigma

		x0 := max(0, int(math.Floor(s.Pos.X-reach)))
		x1 := min(width-1, int(math.Ceil(s.Pos.X+reach)))
		y0 := max(0, int(math.Floor(s.Pos.Y-reach)))
		y1 := min(height-1, int(math.Ceil(s.Pos.Y+reach)))
		for y := y0; y <= y1; y++ {
			dy := float64(y) - s.Pos.Y
			for x := x0; x <= x1; x++ {
				dx := float64(x) - s.Pos.X
				data[y*width+x] += amp * math.Exp(-(dx*dx+dy*dy)*inv)
			}
		}
	}

	return &Frame{Width: width, Height: height, Data: data, Shift: shift}
}
