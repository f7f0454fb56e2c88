// Package plotting renders distortion fields as arrow plots.
package plotting

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"astrocal/internal/distortion"
	"astrocal/pkg/geometry"
)

// Options configures a field plot.
type Options struct {
	Width, Height int // detector size in pixels
	Step          float64
	Scale         float64 // arrow exaggeration; 0 picks one from the field
	Title         string
	Samples       []geometry.Point2D // drawn as dots when set
	Size          vg.Length
}

// DefaultOptions returns options for a width x height detector.
func DefaultOptions(width, height int) Options {
	return Options{
		Width:  width,
		Height: height,
		Step:   float64(max(width, height)) / 16,
		Title:  "Distortion field",
		Size:   8 * vg.Inch,
	}
}

// GridPoints returns a regular grid of points across the detector.
func GridPoints(width, height int, step float64) []geometry.Point2D {
	var pts []geometry.Point2D
	for y := step / 2; y < float64(height); y += step {
		for x := step / 2; x < float64(width); x += step {
			pts = append(pts, geometry.Point2D{X: x, Y: y})
		}
	}
	return pts
}

// AutoScale picks an exaggeration that makes the longest arrow span
// roughly one grid step.
func AutoScale(rows []distortion.Displacement, step float64) float64 {
	var longest float64
	for _, r := range rows {
		longest = max(longest, geometry.Point2D{X: r.DX, Y: r.DY}.Distance(geometry.Point2D{}))
	}
	if longest == 0 {
		return 1
	}
	return 0.9 * step / longest
}

// FieldPlot builds an arrow plot of the model over the detector.
func FieldPlot(m *distortion.Model, opts Options) (*plot.Plot, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid detector size %dx%d", opts.Width, opts.Height)
	}
	if opts.Step <= 0 {
		opts.Step = DefaultOptions(opts.Width, opts.Height).Step
	}

	rows := m.EvaluateAll(GridPoints(opts.Width, opts.Height, opts.Step))
	scale := opts.Scale
	if scale <= 0 {
		scale = AutoScale(rows, opts.Step)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (degree %d, arrows x%.3g)", opts.Title, m.Degree(), scale)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.X.Min, p.X.Max = 0, float64(opts.Width)
	p.Y.Min, p.Y.Max = 0, float64(opts.Height)
	p.Add(plotter.NewGrid())

	if len(opts.Samples) > 0 {
		xys := make(plotter.XYs, len(opts.Samples))
		for i, s := range opts.Samples {
			xys[i] = plotter.XY{X: s.X, Y: s.Y}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle = draw.GlyphStyle{
			Color:  color.RGBA{R: 200, G: 60, B: 60, A: 255},
			Radius: vg.Points(1.5),
			Shape:  draw.CircleGlyph{},
		}
		p.Add(scatter)
		p.Legend.Add("pinholes", scatter)
	}

	p.Add(NewQuiver(rows, scale))
	return p, nil
}

// SaveField renders the field plot to path; the format follows the
// extension (.png, .svg, .pdf).
func SaveField(m *distortion.Model, opts Options, path string) error {
	p, err := FieldPlot(m, opts)
	if err != nil {
		return err
	}
	size := opts.Size
	if size <= 0 {
		size = 8 * vg.Inch
	}
	aspect := float64(opts.Height) / float64(opts.Width)
	return p.Save(size, vg.Length(float64(size)*aspect), path)
}
