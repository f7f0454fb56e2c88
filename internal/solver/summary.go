package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"astrocal/internal/distortion"
)

// ExposureStats summarises the residuals of one exposure.
type ExposureStats struct {
	Exposure     int     `json:"exposure"`
	Observations int     `json:"observations"`
	RMS          float64 `json:"rms"`
}

// Summary describes the quality of a fit. Residuals are measured minus
// predicted centroid positions, in pixels.
type Summary struct {
	Method       Method
	RMSX         float64
	RMSY         float64
	RMS          float64
	MaxResidual  float64
	Observations int
	Pinholes     int
	Exposures    int
	Unknowns     int
	Condition    float64
	PerExposure  []ExposureStats
}

// Quality converts the summary to the form stored in model files.
func (s Summary) Quality() *distortion.Quality {
	return &distortion.Quality{
		RMS:          s.RMS,
		RMSX:         s.RMSX,
		RMSY:         s.RMSY,
		MaxResidual:  s.MaxResidual,
		Observations: s.Observations,
		Pinholes:     s.Pinholes,
		Exposures:    s.Exposures,
		Condition:    s.Condition,
	}
}

func summarize(sys *system, sol *solution, method Method) Summary {
	n := sys.rows()
	resX := make([]float64, n)
	resY := make([]float64, n)
	norm := make([]float64, n)
	for r := 0; r < n; r++ {
		pin := sys.rowPin[r]
		px, py := sol.delta.At(pin, 0), sol.delta.At(pin, 1)
		for t := 0; t < sys.terms(); t++ {
			phi := sys.phi.At(r, t)
			px += phi * sol.coef.At(t, 0)
			py += phi * sol.coef.At(t, 1)
		}
		resX[r] = sys.rhs.At(r, 0) - px
		resY[r] = sys.rhs.At(r, 1) - py
		norm[r] = math.Hypot(resX[r], resY[r])
	}

	s := Summary{
		Method:       method,
		Observations: n,
		Pinholes:     len(sys.pinholes),
		Exposures:    len(sys.exposures),
		Unknowns:     sys.unknowns(),
		Condition:    sol.cond,
	}
	if n == 0 {
		return s
	}

	sx := floats.Dot(resX, resX)
	sy := floats.Dot(resY, resY)
	s.RMSX = math.Sqrt(sx / float64(n))
	s.RMSY = math.Sqrt(sy / float64(n))
	s.RMS = math.Sqrt((sx + sy) / float64(n))
	s.MaxResidual = floats.Max(norm)

	pos := make(map[int]int, len(sys.exposures))
	s.PerExposure = make([]ExposureStats, len(sys.exposures))
	for i, e := range sys.exposures {
		pos[e] = i
		s.PerExposure[i].Exposure = e
	}
	for r, o := range sys.obs {
		st := &s.PerExposure[pos[o.Exposure]]
		st.Observations++
		st.RMS += norm[r] * norm[r]
	}
	for i := range s.PerExposure {
		st := &s.PerExposure[i]
		st.RMS = math.Sqrt(st.RMS / float64(st.Observations))
	}
	return s
}
