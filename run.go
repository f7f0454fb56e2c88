package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"astrocal/internal/config"
	"astrocal/internal/coords"
	"astrocal/internal/distortion"
	"astrocal/internal/exposure"
	"astrocal/internal/grid"
	"astrocal/internal/overlay"
	"astrocal/internal/pipeline"
	"astrocal/internal/plotting"
	"astrocal/pkg/geometry"
)

type runFlags struct {
	radius         float64
	fluxThreshold  float64
	degree         int
	background     string
	gauge          string
	method         string
	maxFailure     float64
	completeTracks bool
	workers        int

	save    string
	plot    string
	overlay string
}

// NewRunCommand .
func NewRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <pattern|manifest> [coordinates]",
		Short: "Calibrate from a set of shifted frames",
		Long: `Calibrate from a set of shifted frames.

The first argument is either a glob pattern matching frame images, each with
a sidecar <frame>.yaml holding xshift and yshift, or a .yaml/.json manifest
listing {path, xshift, yshift} entries.

With a coordinates file the fitted field is printed as x,y,dx,dy rows in the
order of the file; otherwise the coefficient table is printed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			geom, opts, err := cfg.Resolve()
			if err != nil {
				return err
			}

			frames, err := loadFrames(args[0])
			if err != nil {
				return err
			}

			var queries []geometry.Point2D
			if len(args) == 2 {
				queries, err = coords.LoadFile(args[1])
				if err != nil {
					return err
				}
				if queries == nil {
					queries = []geometry.Point2D{}
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := pipeline.Run(ctx, frames, geom, queries, opts)
			if err != nil {
				return pkgerrors.Wrapf(err, "calibration of %s failed", args[0])
			}

			printSummary(cmd.ErrOrStderr(), report, frames)

			if queries != nil {
				err = coords.WriteRows(cmd.OutOrStdout(), report.Rows)
			} else {
				err = coords.WriteCoefficients(cmd.OutOrStdout(), report.Model())
			}
			if err != nil {
				return err
			}

			return f.writeOutputs(report, frames, geom, opts)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&f.radius, "radius", 0, "centroid search radius in pixels")
	flags.Float64Var(&f.fluxThreshold, "flux-threshold", 0, "minimum accepted centroid flux")
	flags.IntVar(&f.degree, "degree", 0, "maximum total polynomial degree")
	flags.StringVar(&f.background, "background", "", "background estimate: none, border-median or constant:<level>")
	flags.StringVar(&f.gauge, "gauge", "", "gauge fixing: field-center or mean-correction")
	flags.StringVar(&f.method, "method", "", "solve method: auto, joint or eliminated")
	flags.Float64Var(&f.maxFailure, "max-failure-fraction", 0, "largest tolerated share of failed detections")
	flags.BoolVar(&f.completeTracks, "complete-tracks", false, "drop pinholes not detected in every frame")
	flags.IntVar(&f.workers, "workers", 0, "centroiding goroutines (0 = number of CPUs)")
	flags.StringVar(&f.save, "save", "", "write the fitted model to this .json file")
	flags.StringVar(&f.plot, "plot", "", "write an arrow plot of the field (.png, .svg or .pdf)")
	flags.StringVar(&f.overlay, "overlay", "", "write the first frame with search circles drawn on it")

	return cmd
}

// apply copies flags the user set into the config, overriding file and
// environment values.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("radius") {
		cfg.Centroid.Radius = config.Ptr(f.radius)
	}
	if changed("flux-threshold") {
		cfg.Centroid.FluxThreshold = config.Ptr(f.fluxThreshold)
	}
	if changed("background") {
		cfg.Centroid.Background = config.Ptr(f.background)
	}
	if changed("degree") {
		cfg.Solve.Degree = config.Ptr(f.degree)
	}
	if changed("gauge") {
		cfg.Solve.Gauge = config.Ptr(f.gauge)
	}
	if changed("method") {
		cfg.Solve.Method = config.Ptr(f.method)
	}
	if changed("max-failure-fraction") {
		cfg.Detection.MaxFailureFraction = config.Ptr(f.maxFailure)
	}
	if changed("complete-tracks") {
		cfg.Detection.RequireCompleteTracks = config.Ptr(f.completeTracks)
	}
	if changed("workers") {
		cfg.Workers = config.Ptr(f.workers)
	}
}

func (f *runFlags) writeOutputs(report *pipeline.Report, frames []*exposure.Frame, geom grid.Geometry, opts pipeline.Options) error {
	if f.save != "" {
		mf := distortion.NewFile(report.Model(), report.Result.Summary.Quality())
		mf.Grid = geom.String()
		mf.Width, mf.Height = report.Width, report.Height
		paths := make([]string, len(frames))
		for i, fr := range frames {
			paths[i] = fr.Path
		}
		mf.SetFrames(f.save, paths)
		if err := mf.Save(f.save); err != nil {
			return pkgerrors.Wrapf(err, "failed to save model %s", f.save)
		}
		logrus.WithFields(logrus.Fields{"path": f.save, "run": mf.RunID}).Info("model saved")
	}

	if f.plot != "" {
		popts := plotting.DefaultOptions(report.Width, report.Height)
		for _, pt := range report.Lattice {
			popts.Samples = append(popts.Samples, pt.Pos)
		}
		if err := plotting.SaveField(report.Model(), popts, f.plot); err != nil {
			return pkgerrors.Wrapf(err, "failed to write plot %s", f.plot)
		}
		logrus.WithField("path", f.plot).Info("field plot written")
	}

	if f.overlay != "" {
		var marks []overlay.Mark
		for _, m := range report.Measurements {
			if m.Exposure != 0 {
				break
			}
			marks = append(marks, overlay.Mark{Search: m.Search, Centroid: m.Centroid.Pos, Valid: m.Centroid.Valid})
		}
		if err := overlay.Save(f.overlay, frames[0], marks, overlay.DefaultStyle(opts.Centroid.Radius)); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"path": f.overlay, "frame": frames[0].Path}).Info("overlay written")
	}
	return nil
}

// loadConfig reads the config file, then .env and ASTROCAL_* overrides. The
// default config file is optional; an explicit one must exist.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == config.DefaultPath {
		cfg, err = config.LoadOptional(configPath)
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	if envFile != "" {
		err = config.LoadDotEnv(envFile)
	} else {
		err = config.LoadDotEnv()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFrames treats YAML/JSON paths as manifests and anything else as a
// glob pattern.
func loadFrames(source string) ([]*exposure.Frame, error) {
	var (
		frames []*exposure.Frame
		err    error
	)
	if exposure.IsManifest(source) {
		frames, err = exposure.LoadManifest(source)
	} else {
		frames, err = exposure.LoadGlob(source)
	}
	if err != nil {
		return nil, err
	}

	for _, f := range frames {
		logrus.WithFields(logrus.Fields{
			"frame":  filepath.Base(f.Path),
			"width":  f.Width,
			"height": f.Height,
			"shift":  f.Shift,
		}).Debug("frame loaded")
	}
	return frames, nil
}
