package pipeline

import (
	"math"
	"runtime"

	"astrocal/internal/calerr"
	"astrocal/internal/centroid"
	"astrocal/internal/solver"
)

// Options configures a calibration run.
type Options struct {
	Centroid centroid.Params
	Degree   int
	Solve    solver.Options

	// MaxFailureFraction is the largest tolerated share of (frame, point)
	// pairs without a valid centroid. 1 tolerates any number.
	MaxFailureFraction float64

	// RequireCompleteTracks drops lattice points that lack a valid
	// centroid in any frame before solving.
	RequireCompleteTracks bool

	// Workers is the centroiding goroutine count; 0 means runtime.NumCPU().
	Workers int
}

// DefaultOptions returns the default run options.
func DefaultOptions() Options {
	return Options{
		Centroid:           centroid.DefaultParams(),
		Degree:             3,
		Solve:              solver.DefaultOptions(),
		MaxFailureFraction: 1,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := o.Centroid.Validate(); err != nil {
		return err
	}
	if err := o.Solve.Validate(); err != nil {
		return err
	}
	if o.Degree < 0 {
		return calerr.Configf("solve.degree", "must be non-negative, got %d", o.Degree)
	}
	if math.IsNaN(o.MaxFailureFraction) || o.MaxFailureFraction < 0 || o.MaxFailureFraction > 1 {
		return calerr.Configf("detection.max_failure_fraction", "must be in [0,1], got %v", o.MaxFailureFraction)
	}
	if o.Workers < 0 {
		return calerr.Configf("workers", "must be non-negative, got %d", o.Workers)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}
