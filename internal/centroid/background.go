package centroid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"astrocal/internal/calerr"
)

// Background estimates the per-pixel background level of a window from the
// intensities of its outermost ring.
type Background interface {
	Estimate(border []float64) float64
	Name() string
}

// NoBackground subtracts nothing.
type NoBackground struct{}

func (NoBackground) Estimate([]float64) float64 { return 0 }
func (NoBackground) Name() string              { return "none" }

// BorderMedian uses the median of the window's border ring; an even count
// averages the two middle values. An empty ring gives zero.
type BorderMedian struct{}

func (BorderMedian) Estimate(border []float64) float64 {
	if len(border) == 0 {
		return 0
	}
	sorted := make([]float64, len(border))
	copy(sorted, border)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (BorderMedian) Name() string { return "border-median" }

// Constant subtracts a fixed level, e.g. a known bias.
type Constant struct {
	Level float64
}

func (c Constant) Estimate([]float64) float64 { return c.Level }
func (c Constant) Name() string               { return fmt.Sprintf("constant:%g", c.Level) }

// ParseBackground maps a configuration name to an estimator. Accepted forms
// are "none", "border-median" and "constant:<level>".
func ParseBackground(name string) (Background, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	switch {
	case name == "" || name == "none":
		return NoBackground{}, nil
	case name == "border-median" || name == "median":
		return BorderMedian{}, nil
	case strings.HasPrefix(name, "constant:"):
		level, err := strconv.ParseFloat(strings.TrimPrefix(name, "constant:"), 64)
		if err != nil {
			return nil, calerr.Configf("centroid.background", "bad constant level in %q", name)
		}
		return Constant{Level: level}, nil
	default:
		return nil, calerr.Configf("centroid.background", "unknown method %q", name)
	}
}
