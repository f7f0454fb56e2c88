package centroid

import (
	"math"

	"astrocal/pkg/geometry"
)

type pixel struct {
	x, y   int
	val    float64
	border bool
}

// Compute measures the flux-weighted centroid of the pixels whose centres
// lie within p.Radius of center.
//
// The window's border ring (pixels farther than Radius-1 from the centre)
// feeds the background estimator. Intensities are background-subtracted and
// clipped at zero before the first moment is taken. A window that leaves the
// image is reported invalid unless p.AllowPartial is set, in which case the
// out-of-bounds pixels are simply excluded. Failures are reported through
// Valid and Reason, never as errors.
func Compute(img Image, center geometry.Point2D, p Params) Centroid {
	res := Centroid{Pos: center, Reason: ReasonNone}
	if !center.IsFinite() {
		res.Reason = ReasonOutOfBounds
		return res
	}

	pixels, partial := window(img, center, p.Radius)
	res.Pixels = len(pixels)
	switch {
	case len(pixels) == 0 && partial:
		res.Reason = ReasonOutOfBounds
		return res
	case len(pixels) == 0:
		res.Reason = ReasonEmptyWindow
		return res
	case partial && !p.AllowPartial:
		res.Reason = ReasonPartialWindow
		return res
	}

	bg := p.Background
	if bg == nil {
		bg = NoBackground{}
	}
	var border []float64
	for _, px := range pixels {
		if px.border {
			border = append(border, px.val)
		}
	}
	res.Background = bg.Estimate(border)

	var sumX, sumY, flux float64
	for _, px := range pixels {
		v := px.val - res.Background
		if v <= 0 {
			continue
		}
		sumX += float64(px.x) * v
		sumY += float64(px.y) * v
		flux += v
	}
	res.Flux = flux

	if flux <= 0 || flux < p.FluxThreshold {
		res.Reason = ReasonBelowThreshold
		return res
	}

	res.Pos = geometry.Point2D{X: sumX / flux, Y: sumY / flux}
	res.Valid = true
	return res
}

// window collects the in-bounds pixels of the circular window and reports
// whether any window pixel was out of bounds.
func window(img Image, center geometry.Point2D, radius float64) ([]pixel, bool) {
	w, h := img.Size()
	r2 := radius * radius
	inner := math.Max(radius-1, 0)
	inner2 := inner * inner

	x0 := int(math.Ceil(center.X - radius))
	x1 := int(math.Floor(center.X + radius))
	y0 := int(math.Ceil(center.Y - radius))
	y1 := int(math.Floor(center.Y + radius))

	partial := false
	var pixels []pixel
	for y := y0; y <= y1; y++ {
		dy := float64(y) - center.Y
		for x := x0; x <= x1; x++ {
			dx := float64(x) - center.X
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			if x < 0 || x >= w || y < 0 || y >= h {
				partial = true
				continue
			}
			pixels = append(pixels, pixel{x: x, y: y, val: img.At(x, y), border: d2 > inner2})
		}
	}
	return pixels, partial
}
