// Package overlay renders frames with their search circles and measured
// centroids for visual inspection of a calibration run.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"astrocal/internal/exposure"
	"astrocal/pkg/geometry"
)

// Mark is one search window and the centroid found in it.
type Mark struct {
	Search   geometry.Point2D
	Centroid geometry.Point2D
	Valid    bool
}

// Style configures the overlay colours and display stretch.
type Style struct {
	Radius    float64
	Valid     color.RGBA
	Invalid   color.RGBA
	Centroid  color.RGBA
	Low, High float64 // display stretch quantiles
}

// DefaultStyle returns green circles for valid detections, red for
// failures and yellow centroid crosses.
func DefaultStyle(radius float64) Style {
	return Style{
		Radius:   radius,
		Valid:    color.RGBA{R: 0, G: 255, B: 0, A: 255},
		Invalid:  color.RGBA{R: 255, G: 0, B: 0, A: 255},
		Centroid: color.RGBA{R: 255, G: 255, B: 0, A: 255},
		Low:      0.005,
		High:     0.995,
	}
}

// Stretch maps frame intensities to 8 bits, clipping at the given
// quantiles of the pixel distribution.
func Stretch(f *exposure.Frame, low, high float64) []byte {
	sorted := append([]float64(nil), f.Data...)
	sort.Float64s(sorted)
	lo := stat.Quantile(low, stat.Empirical, sorted, nil)
	hi := stat.Quantile(high, stat.Empirical, sorted, nil)

	out := make([]byte, len(f.Data))
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, v := range f.Data {
		s := (v - lo) / span * 255
		out[i] = uint8(math.Max(0, math.Min(255, math.Round(s))))
	}
	return out
}

// FrameToMat converts a frame to a stretched 8-bit BGR Mat. The caller
// closes the result.
func FrameToMat(f *exposure.Frame, low, high float64) (gocv.Mat, error) {
	gray, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8U, Stretch(f, low, high))
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)
	return bgr, nil
}

// gocv colours are BGR.
func bgr(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.B, G: c.G, B: c.R, A: c.A}
}

func toPoint(p geometry.Point2D) image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Render draws the marks over the frame. The caller closes the result.
func Render(f *exposure.Frame, marks []Mark, style Style) (gocv.Mat, error) {
	img, err := FrameToMat(f, style.Low, style.High)
	if err != nil {
		return gocv.Mat{}, err
	}

	r := int(math.Round(style.Radius))
	for _, m := range marks {
		col := style.Valid
		if !m.Valid {
			col = style.Invalid
		}
		gocv.Circle(&img, toPoint(m.Search), r, bgr(col), 1)

		if m.Valid {
			c := toPoint(m.Centroid)
			arm := max(2, r/4)
			gocv.Line(&img, image.Point{X: c.X - arm, Y: c.Y}, image.Point{X: c.X + arm, Y: c.Y}, bgr(style.Centroid), 1)
			gocv.Line(&img, image.Point{X: c.X, Y: c.Y - arm}, image.Point{X: c.X, Y: c.Y + arm}, bgr(style.Centroid), 1)
		}
	}
	return img, nil
}

// Save renders the overlay and writes it to path; the format follows the
// extension.
func Save(path string, f *exposure.Frame, marks []Mark, style Style) error {
	img, err := Render(f, marks, style)
	if err != nil {
		return err
	}
	defer img.Close()

	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("failed to write overlay %s", path)
	}
	return nil
}
