package config

import (
	"strings"

	"astrocal/internal/calerr"
	"astrocal/internal/centroid"
	"astrocal/internal/grid"
	"astrocal/internal/pipeline"
	"astrocal/internal/solver"
	"astrocal/pkg/geometry"
)

// Geometry builds the mask geometry. Every grid field is required; a
// missing one is reported by its dotted key.
func (c *Config) Geometry() (grid.Geometry, error) {
	if c.Grid.Type == nil {
		return grid.Geometry{}, calerr.Configf("grid.type", "missing")
	}
	kind := grid.Kind(strings.ToLower(strings.TrimSpace(*c.Grid.Type)))

	switch kind {
	case grid.KindHex:
		if c.Grid.Pitch == nil {
			return grid.Geometry{}, calerr.Configf("grid.pitch", "missing")
		}
		if c.Grid.Rotation == nil {
			return grid.Geometry{}, calerr.Configf("grid.rotation", "missing")
		}
		offset, err := c.Grid.offset()
		if err != nil {
			return grid.Geometry{}, err
		}
		g := grid.NewHex(*c.Grid.Pitch, *c.Grid.Rotation, offset)
		return g, g.Validate()
	default:
		return grid.Geometry{}, calerr.Configf("grid.type", "unsupported geometry %q", string(kind))
	}
}

func (g GridConfig) offset() (geometry.Point2D, error) {
	switch {
	case g.Offset == nil:
		return geometry.Point2D{}, calerr.Configf("grid.offset", "missing")
	case g.Offset.X == nil:
		return geometry.Point2D{}, calerr.Configf("grid.offset.x", "missing")
	case g.Offset.Y == nil:
		return geometry.Point2D{}, calerr.Configf("grid.offset.y", "missing")
	}
	return geometry.Point2D{X: *g.Offset.X, Y: *g.Offset.Y}, nil
}

// Options builds pipeline options, filling unset fields with defaults.
func (c *Config) Options() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	if c.Centroid.Radius != nil {
		opts.Centroid = opts.Centroid.WithRadius(*c.Centroid.Radius)
	}
	if c.Centroid.FluxThreshold != nil {
		opts.Centroid = opts.Centroid.WithFluxThreshold(*c.Centroid.FluxThreshold)
	}
	if c.Centroid.Background != nil {
		bg, err := centroid.ParseBackground(*c.Centroid.Background)
		if err != nil {
			return opts, err
		}
		opts.Centroid = opts.Centroid.WithBackground(bg)
	}
	opts.Centroid.AllowPartial = deref(c.Centroid.AllowPartial, opts.Centroid.AllowPartial)

	opts.MaxFailureFraction = deref(c.Detection.MaxFailureFraction, opts.MaxFailureFraction)
	opts.RequireCompleteTracks = deref(c.Detection.RequireCompleteTracks, opts.RequireCompleteTracks)

	opts.Degree = deref(c.Solve.Degree, opts.Degree)
	if c.Solve.Gauge != nil {
		g, err := solver.ParseGauge(*c.Solve.Gauge)
		if err != nil {
			return opts, err
		}
		opts.Solve.Gauge = g
	}
	if c.Solve.Method != nil {
		m, err := solver.ParseMethod(*c.Solve.Method)
		if err != nil {
			return opts, err
		}
		opts.Solve.Method = m
	}
	opts.Solve.MaxCondition = deref(c.Solve.MaxCondition, opts.Solve.MaxCondition)
	opts.Solve.MinRedundancy = deref(c.Solve.MinRedundancy, opts.Solve.MinRedundancy)
	opts.Solve.JointLimit = deref(c.Solve.JointLimit, opts.Solve.JointLimit)

	opts.Workers = deref(c.Workers, opts.Workers)

	return opts, opts.Validate()
}

// Resolve validates the whole config and returns the geometry and options
// for a run.
func (c *Config) Resolve() (grid.Geometry, pipeline.Options, error) {
	g, err := c.Geometry()
	if err != nil {
		return grid.Geometry{}, pipeline.Options{}, err
	}
	opts, err := c.Options()
	if err != nil {
		return grid.Geometry{}, pipeline.Options{}, err
	}
	return g, opts, nil
}

// Validate reports the first invalid or missing value.
func (c *Config) Validate() error {
	_, _, err := c.Resolve()
	return err
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// Ptr returns a pointer to v, for building configs in code.
func Ptr[T any](v T) *T {
	return &v
}
