package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"astrocal/internal/exposure"
	"astrocal/internal/pipeline"
)

// printSummary writes a human-readable run summary.
func printSummary(w io.Writer, report *pipeline.Report, frames []*exposure.Frame) {
	s := report.Result.Summary

	fmt.Fprintln(w, bold("Calibration:"))
	fmt.Fprintf(w, "  Frames: %s, lattice points: %s\n", bold("%d", len(frames)), bold("%d", len(report.Lattice)))
	for j, f := range frames {
		fmt.Fprintf(w, "    %-24s shift (%+.3f, %+.3f)  detections %s\n",
			filepath.Base(f.Path), f.Shift.X, f.Shift.Y, detections(report.Detections[j], len(report.Lattice)))
	}
	if len(report.Failures) > 0 {
		fmt.Fprintf(w, "  Failed detections: %s\n", color.YellowString("%d", len(report.Failures)))
	}
	if len(report.Dropped) > 0 {
		fmt.Fprintf(w, "  Dropped incomplete tracks: %s\n", color.YellowString("%d", len(report.Dropped)))
	}

	fmt.Fprintln(w, bold("Solve:"))
	fmt.Fprintf(w, "  Method: %s, degree %d, %d observations, %d unknowns\n",
		s.Method, report.Model().Degree(), s.Observations, s.Unknowns)
	fmt.Fprintf(w, "  Condition number: %s\n", bold("%.3g", s.Condition))
	fmt.Fprintf(w, "  Residual RMS: %s (x %.4f, y %.4f), max %.4f px\n", rms(s.RMS), s.RMSX, s.RMSY, s.MaxResidual)
	for _, e := range s.PerExposure {
		fmt.Fprintf(w, "    frame %d: %d observations, RMS %.4f px\n", e.Exposure, e.Observations, e.RMS)
	}
	if len(report.Extrapolated) > 0 {
		fmt.Fprintf(w, "  %s\n", color.YellowString("%d queries lie outside the sampled field", len(report.Extrapolated)))
	}
}

func detections(n, total int) string {
	switch {
	case n == total:
		return color.GreenString("%d/%d", n, total)
	case n == 0:
		return color.RedString("%d/%d", n, total)
	default:
		return color.YellowString("%d/%d", n, total)
	}
}

func rms(v float64) string {
	if v < 0.05 {
		return color.New(color.Bold, color.FgGreen).Sprintf("%.4f px", v)
	}
	return color.New(color.Bold, color.FgYellow).Sprintf("%.4f px", v)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
