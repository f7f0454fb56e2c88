package main

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"astrocal/internal/calerr"
	"astrocal/internal/coords"
	"astrocal/internal/distortion"
	"astrocal/internal/plotting"
)

// NewEvalCommand .
func NewEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <model.json> <coordinates>",
		Short: "Evaluate a saved model at the coordinates in a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := distortion.LoadModel(args[0])
			if err != nil {
				return err
			}
			queries, err := coords.LoadFile(args[1])
			if err != nil {
				return err
			}
			return coords.WriteRows(cmd.OutOrStdout(), model.EvaluateAll(queries))
		},
	}
}

// NewPlotCommand .
func NewPlotCommand() *cobra.Command {
	var (
		width, height int
		step, scale   float64
	)
	cmd := &cobra.Command{
		Use:   "plot <model.json> <out.png>",
		Short: "Draw an arrow plot of a saved model",
		Long: `Draw an arrow plot of a saved model.

The detector size defaults to the frame size recorded in the model file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mf, err := distortion.LoadFile(args[0])
			if err != nil {
				return err
			}
			model, err := mf.Model()
			if err != nil {
				return pkgerrors.Wrapf(err, "invalid model %s", args[0])
			}

			w, h := width, height
			if w <= 0 {
				w = mf.Width
			}
			if h <= 0 {
				h = mf.Height
			}
			if w <= 0 || h <= 0 {
				return calerr.Configf("plot", "%s does not record the frame size, pass --width and --height", args[0])
			}
			opts := plotting.DefaultOptions(w, h)
			if step > 0 {
				opts.Step = step
			}
			opts.Scale = scale

			if err := plotting.SaveField(model, opts, args[1]); err != nil {
				return err
			}
			logrus.WithField("path", args[1]).Info("field plot written")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&width, "width", 0, "detector width in pixels")
	flags.IntVar(&height, "height", 0, "detector height in pixels")
	flags.Float64Var(&step, "step", 0, "arrow spacing in pixels")
	flags.Float64Var(&scale, "scale", 0, "arrow exaggeration (0 = automatic)")

	return cmd
}
