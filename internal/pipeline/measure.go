package pipeline

import (
	"sync"

	"astrocal/internal/centroid"
	"astrocal/internal/exposure"
	"astrocal/internal/grid"
	"astrocal/pkg/geometry"
)

// Measurement is the centroid of one lattice point in one frame.
type Measurement struct {
	Exposure int
	Point    grid.Point
	Search   geometry.Point2D // nominal position plus the frame's mask shift
	Centroid centroid.Centroid
}

// Measure centroids every lattice point in every frame at its shifted
// nominal position. The result is frame-major in lattice order.
func Measure(frames []*exposure.Frame, lattice []grid.Point, params centroid.Params, workers int) []Measurement {
	total := len(frames) * len(lattice)
	out := make([]Measurement, total)
	if total == 0 {
		return out
	}
	workers = max(1, min(workers, total))

	// Each worker owns a contiguous stripe of out.
	perWorker := (total + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * perWorker
		end := min(start+perWorker, total)
		if start >= total {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for n := start; n < end; n++ {
				j, i := n/len(lattice), n%len(lattice)
				f := frames[j]
				pt := lattice[i]
				search := pt.Shifted(f.Shift)
				out[n] = Measurement{
					Exposure: j,
					Point:    pt,
					Search:   search,
					Centroid: centroid.Compute(f, search, params),
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out
}
