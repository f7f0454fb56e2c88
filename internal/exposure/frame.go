// Package exposure holds calibration frames: decoded intensity arrays plus
// the mask shift commanded for each capture.
package exposure

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"astrocal/pkg/geometry"
)

// Frame is one exposure of the calibration mask. Data is row-major with
// Width columns; the value of pixel (x, y) has its centre at coordinate
// (x, y). A Frame is not modified after construction.
type Frame struct {
	Path   string           // Source file, empty for synthetic frames
	Width  int              // Columns
	Height int              // Rows
	Data   []float64        // Intensities, len Width*Height
	Shift  geometry.Point2D // Mask shift from the home position (pixels)
}

// NewFrame wraps data as a frame, checking its length against the shape.
func NewFrame(width, height int, data []float64, shift geometry.Point2D) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame shape %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("frame data has %d values, want %d for %dx%d", len(data), width*height, width, height)
	}
	if !shift.IsFinite() {
		return nil, fmt.Errorf("frame shift (%v, %v) is not finite", shift.X, shift.Y)
	}
	return &Frame{Width: width, Height: height, Data: data, Shift: shift}, nil
}

// FromImage converts a decoded image to a frame. Gray images keep their
// native sample values; other colour models are reduced to 16-bit luminance.
func FromImage(img image.Image, shift geometry.Point2D) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float64, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x, v := range row {
				data[y*w+x] = float64(v)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				data[y*w+x] = float64(g.Y)
			}
		}
	}

	return &Frame{Width: w, Height: h, Data: data, Shift: shift}
}

// At returns the intensity of pixel (x, y). The caller must stay in bounds.
func (f *Frame) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Size returns the frame dimensions.
func (f *Frame) Size() (width, height int) {
	return f.Width, f.Height
}

// SameShape reports whether two frames have identical dimensions.
func (f *Frame) SameShape(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// ToGray16 renders the frame as a 16-bit image, clamping values into range.
func (f *Frame) ToGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := math.Round(f.At(x, y))
			v = math.Max(0, math.Min(math.MaxUint16, v))
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

func (f *Frame) String() string {
	name := f.Path
	if name == "" {
		name = "<synthetic>"
	}
	return fmt.Sprintf("%s %dx%d, xshift %0.4f, yshift %0.4f", name, f.Width, f.Height, f.Shift.X, f.Shift.Y)
}
