// Package pipeline runs a differential calibration end to end: lattice
// generation, centroiding of every frame, the joint solve and evaluation of
// the fitted field at query coordinates.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"astrocal/internal/calerr"
	"astrocal/internal/distortion"
	"astrocal/internal/exposure"
	"astrocal/internal/grid"
	"astrocal/internal/solver"
	"astrocal/pkg/geometry"
)

// Report is the outcome of a successful run.
type Report struct {
	Width, Height int
	Lattice       []grid.Point
	Measurements  []Measurement
	Failures      []*calerr.DetectionError

	// Detections counts valid centroids per frame.
	Detections []int

	// Dropped lists lattice points removed for incomplete tracks.
	Dropped []grid.Index

	Result *solver.Result

	// Rows holds the field evaluated at the queries, in query order.
	Rows []distortion.Displacement

	// Extrapolated lists the query rows outside the convex hull of the
	// sampled positions.
	Extrapolated []int
}

// Model returns the fitted distortion model.
func (r *Report) Model() *distortion.Model {
	return r.Result.Model
}

// Run calibrates from frames taken with the mask at different shifts. The
// lattice is generated once from the first frame's shape; every frame must
// have the same shape. When queries is nil only the model is produced.
func Run(ctx context.Context, frames []*exposure.Frame, geom grid.Geometry, queries []geometry.Point2D, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, calerr.Configf("frames", "at least one frame is required")
	}
	for i, f := range frames[1:] {
		if !f.SameShape(frames[0]) {
			return nil, calerr.Configf("frames", "frame %d (%s) is %dx%d, expected %dx%d",
				i+1, f.Path, f.Width, f.Height, frames[0].Width, frames[0].Height)
		}
	}

	width, height := frames[0].Size()
	basis, err := distortion.FieldBasis(opts.Degree, width, height)
	if err != nil {
		return nil, err
	}

	lattice, err := geom.Generate(grid.FieldCenter(width, height), width, height)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"frames": len(frames), "lattice": len(lattice), "grid": geom.String()})
	log.Info("lattice generated")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Width: width, Height: height, Lattice: lattice}
	report.Measurements = Measure(frames, lattice, opts.Centroid, opts.workers())
	report.Detections = make([]int, len(frames))
	for _, m := range report.Measurements {
		if m.Centroid.Valid {
			report.Detections[m.Exposure]++
			continue
		}
		report.Failures = append(report.Failures, &calerr.DetectionError{
			Exposure: m.Exposure,
			I:        m.Point.Index.I,
			J:        m.Point.Index.J,
			Reason:   m.Centroid.Reason.String(),
		})
	}
	for j, n := range report.Detections {
		logrus.WithFields(logrus.Fields{"frame": frames[j].Path, "shift": frames[j].Shift, "detections": n}).
			Debug("frame centroided")
	}

	total := len(report.Measurements)
	if total > 0 && float64(len(report.Failures)) > opts.MaxFailureFraction*float64(total) {
		return nil, &calerr.DetectionToleranceError{
			Failed:    len(report.Failures),
			Total:     total,
			Tolerance: opts.MaxFailureFraction,
		}
	}
	log.WithFields(logrus.Fields{"failures": len(report.Failures), "total": total}).Info("centroiding complete")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keep := make(map[grid.Index]bool, len(lattice))
	for _, pt := range lattice {
		keep[pt.Index] = true
	}
	if opts.RequireCompleteTracks {
		for _, f := range report.Failures {
			idx := grid.Index{I: f.I, J: f.J}
			if keep[idx] {
				keep[idx] = false
				report.Dropped = append(report.Dropped, idx)
			}
		}
		if len(report.Dropped) > 0 {
			log.WithField("dropped", len(report.Dropped)).Info("dropped lattice points with incomplete tracks")
		}
	}

	obs := make([]solver.Observation, 0, total-len(report.Failures))
	samples := make([]geometry.Point2D, 0, cap(obs))
	for _, m := range report.Measurements {
		if !m.Centroid.Valid || !keep[m.Point.Index] {
			continue
		}
		obs = append(obs, solver.Observation{
			Exposure: m.Exposure,
			Index:    m.Point.Index,
			Nominal:  m.Point.Pos,
			Shift:    frames[m.Exposure].Shift,
			Measured: m.Centroid.Pos,
		})
		samples = append(samples, m.Search)
	}

	result, err := solver.Solve(obs, basis, opts.Solve)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	report.Result = result
	log.WithFields(logrus.Fields{
		"observations": result.Summary.Observations,
		"rms":          result.Summary.RMS,
		"condition":    result.Summary.Condition,
	}).Info("distortion solved")

	if queries != nil {
		report.Rows = result.Model.EvaluateAll(queries)
		hull := geometry.ConvexHull(samples)
		for i, q := range queries {
			if !geometry.InConvexPolygon(q, hull) {
				report.Extrapolated = append(report.Extrapolated, i)
			}
		}
		if len(report.Extrapolated) > 0 {
			log.WithField("queries", len(report.Extrapolated)).Warn("queries outside the sampled field are extrapolated")
		}
	}
	return report, nil
}
