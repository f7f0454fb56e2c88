package centroid

import (
	"math"

	"astrocal/internal/calerr"
)

// Params holds the tunables of a centroid measurement.
type Params struct {
	Radius        float64    // search radius (pixels)
	FluxThreshold float64    // minimum accepted flux (image units)
	Background    Background // local background estimator; nil means none
	AllowPartial  bool       // measure windows that cross the image edge
}

// DefaultParams returns parameters suited to pinhole frames of a few
// thousand pixels with spots peaking in the tens of thousands of counts.
func DefaultParams() Params {
	return Params{
		Radius:        10,
		FluxThreshold: 10000,
		Background:    NoBackground{},
	}
}

// WithRadius returns a copy of params with a different search radius.
func (p Params) WithRadius(radius float64) Params {
	p.Radius = radius
	return p
}

// WithFluxThreshold returns a copy of params with a different threshold.
func (p Params) WithFluxThreshold(threshold float64) Params {
	p.FluxThreshold = threshold
	return p
}

// WithBackground returns a copy of params with a different estimator.
func (p Params) WithBackground(bg Background) Params {
	p.Background = bg
	return p
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius <= 0 {
		return calerr.Configf("centroid.radius", "must be a positive finite number, got %v", p.Radius)
	}
	if math.IsNaN(p.FluxThreshold) || math.IsInf(p.FluxThreshold, 0) || p.FluxThreshold < 0 {
		return calerr.Configf("centroid.flux_threshold", "must be a non-negative finite number, got %v", p.FluxThreshold)
	}
	if c, ok := p.Background.(Constant); ok && (math.IsNaN(c.Level) || math.IsInf(c.Level, 0)) {
		return calerr.Configf("centroid.background.level", "must be finite, got %v", c.Level)
	}
	return nil
}
