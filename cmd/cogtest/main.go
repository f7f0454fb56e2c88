// Command cogtest centroids one frame against a grid and prints the results.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"astrocal/internal/centroid"
	"astrocal/internal/exposure"
	"astrocal/internal/grid"
	"astrocal/internal/overlay"
	"astrocal/internal/pipeline"
	"astrocal/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to frame (TIFF, PNG, or JPEG)")
	pitch := flag.Float64("pitch", 0, "Grid pitch in pixels")
	rotation := flag.Float64("rotation", 0, "Grid rotation in radians")
	offX := flag.Float64("offx", 0, "Grid offset x in pixels")
	offY := flag.Float64("offy", 0, "Grid offset y in pixels")
	shiftX := flag.Float64("xshift", 0, "Mask shift x (ignored when a sidecar exists)")
	shiftY := flag.Float64("yshift", 0, "Mask shift y (ignored when a sidecar exists)")
	radius := flag.Float64("radius", 10, "Search radius in pixels")
	threshold := flag.Float64("threshold", 10000, "Flux threshold")
	background := flag.String("background", "none", "Background: none, border-median, constant:<level>")
	overlayPath := flag.String("overlay", "", "Write an overlay image")
	flag.Parse()

	if *imagePath == "" || *pitch <= 0 {
		fmt.Println("Usage: cogtest -image <path> -pitch <px> [-rotation rad] [-radius 10] [-threshold 10000] [-overlay out.png]")
		os.Exit(1)
	}

	frame, err := exposure.Load(*imagePath)
	if err != nil {
		frame, err = exposure.Decode(*imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load frame: %v\n", err)
			os.Exit(1)
		}
		frame.Shift = geometry.Point2D{X: *shiftX, Y: *shiftY}
	}
	fmt.Printf("Loaded %s\n", frame)

	bg, err := centroid.ParseBackground(*background)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	params := centroid.DefaultParams().WithRadius(*radius).WithFluxThreshold(*threshold).WithBackground(bg)
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	geom := grid.NewHex(*pitch, *rotation, geometry.Point2D{X: *offX, Y: *offY})
	lattice, err := geom.Generate(grid.FieldCenter(frame.Width, frame.Height), frame.Width, frame.Height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Grid generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Grid: %s, %d points\n", geom, len(lattice))
	fmt.Printf("Centroid: radius %.1f, threshold %.0f, background %s\n\n", params.Radius, params.FluxThreshold, params.Background.Name())

	measurements := pipeline.Measure([]*exposure.Frame{frame}, lattice, params, 0)

	fmt.Printf("%-12s %10s %10s %10s %10s %12s %10s  %s\n",
		"Index", "NomX", "NomY", "X", "Y", "Flux", "Bkg", "Status")
	fmt.Println(strings.Repeat("-", 92))

	valid := 0
	var marks []overlay.Mark
	for _, m := range measurements {
		c := m.Centroid
		status := "ok"
		if c.Valid {
			valid++
		} else {
			status = c.Reason.String()
		}
		fmt.Printf("%-12s %10.2f %10.2f %10.3f %10.3f %12.1f %10.1f  %s\n",
			m.Point.Index, m.Search.X, m.Search.Y, c.Pos.X, c.Pos.Y, c.Flux, c.Background, status)
		marks = append(marks, overlay.Mark{Search: m.Search, Centroid: c.Pos, Valid: c.Valid})
	}

	fmt.Printf("\nTotal: %d of %d points detected\n", valid, len(measurements))

	if *overlayPath != "" {
		if err := overlay.Save(*overlayPath, frame, marks, overlay.DefaultStyle(params.Radius)); err != nil {
			fmt.Fprintf(os.Stderr, "Overlay failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Overlay written to %s\n", *overlayPath)
	}
}
