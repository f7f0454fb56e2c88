package plotting

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"astrocal/internal/distortion"
)

// Quiver draws one arrow per displacement, from (X, Y) to
// (X + Scale*DX, Y + Scale*DY) in data coordinates.
type Quiver struct {
	Rows  []distortion.Displacement
	Scale float64

	draw.LineStyle
	HeadLength vg.Length
}

// NewQuiver returns a quiver plotter with a thin black line style.
func NewQuiver(rows []distortion.Displacement, scale float64) *Quiver {
	return &Quiver{
		Rows:       rows,
		Scale:      scale,
		LineStyle:  draw.LineStyle{Color: color.Black, Width: vg.Points(0.75)},
		HeadLength: vg.Points(4),
	}
}

// Plot implements plot.Plotter.
func (q *Quiver) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, r := range q.Rows {
		x0, y0 := trX(r.X), trY(r.Y)
		x1, y1 := trX(r.X+q.Scale*r.DX), trY(r.Y+q.Scale*r.DY)
		c.StrokeLine2(q.LineStyle, x0, y0, x1, y1)

		dx, dy := float64(x1-x0), float64(y1-y0)
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		head := math.Min(float64(q.HeadLength), length/2)
		angle := math.Atan2(dy, dx)
		for _, side := range []float64{-1, 1} {
			a := angle + math.Pi - side*math.Pi/7
			hx := x1 + vg.Length(head*math.Cos(a))
			hy := y1 + vg.Length(head*math.Sin(a))
			c.StrokeLine2(q.LineStyle, x1, y1, hx, hy)
		}
	}
}

// DataRange implements plot.DataRanger.
func (q *Quiver) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, r := range q.Rows {
		for _, x := range []float64{r.X, r.X + q.Scale*r.DX} {
			xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		}
		for _, y := range []float64{r.Y, r.Y + q.Scale*r.DY} {
			ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
		}
	}
	return xmin, xmax, ymin, ymax
}
