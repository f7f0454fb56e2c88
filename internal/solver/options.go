package solver

import (
	"fmt"
	"math"
	"strings"

	"astrocal/internal/calerr"
)

// Gauge selects how the uniform-shift degeneracy between the pinhole
// corrections and the constant distortion term is removed.
type Gauge int

const (
	// GaugeFieldCenter pins the constant basis term to zero: the field
	// vanishes at the basis centre and any common pinhole offset is carried
	// by the pinhole corrections.
	GaugeFieldCenter Gauge = iota
	// GaugeMeanCorrection constrains the pinhole corrections to sum to zero.
	GaugeMeanCorrection
)

func (g Gauge) String() string {
	switch g {
	case GaugeFieldCenter:
		return "field-center"
	case GaugeMeanCorrection:
		return "mean-correction"
	default:
		return fmt.Sprintf("Gauge(%d)", int(g))
	}
}

// ParseGauge parses a gauge name as used in configuration files.
func ParseGauge(s string) (Gauge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "field-center", "center":
		return GaugeFieldCenter, nil
	case "mean-correction", "mean":
		return GaugeMeanCorrection, nil
	}
	return 0, calerr.Configf("solve.gauge", "unknown gauge %q", s)
}

// Method selects the least-squares formulation.
type Method int

const (
	// MethodAuto picks MethodJoint for small systems, MethodEliminated
	// otherwise.
	MethodAuto Method = iota
	// MethodJoint solves the dense system over all unknowns at once.
	MethodJoint
	// MethodEliminated eliminates the pinhole corrections analytically and
	// solves the reduced system over the distortion coefficients only.
	MethodEliminated
)

func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodJoint:
		return "joint"
	case MethodEliminated:
		return "eliminated"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return MethodAuto, nil
	case "joint":
		return MethodJoint, nil
	case "eliminated", "schur":
		return MethodEliminated, nil
	}
	return 0, calerr.Configf("solve.method", "unknown method %q", s)
}

// Options configures a solve.
type Options struct {
	Gauge  Gauge
	Method Method

	// MaxCondition is the largest acceptable condition number of the
	// design matrix.
	MaxCondition float64

	// MinRedundancy is the number of observations required beyond the
	// unknown count.
	MinRedundancy int

	// JointLimit is the unknown count up to which MethodAuto uses the
	// joint formulation.
	JointLimit int

	// KeepPinholes returns the per-pinhole estimates in the result.
	KeepPinholes bool
}

// DefaultOptions returns the default solver options.
func DefaultOptions() Options {
	return Options{
		Gauge:         GaugeFieldCenter,
		Method:        MethodAuto,
		MaxCondition:  1e10,
		MinRedundancy: 1,
		JointLimit:    400,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Gauge != GaugeFieldCenter && o.Gauge != GaugeMeanCorrection {
		return calerr.Configf("solve.gauge", "unknown gauge %d", int(o.Gauge))
	}
	if o.Method < MethodAuto || o.Method > MethodEliminated {
		return calerr.Configf("solve.method", "unknown method %d", int(o.Method))
	}
	if math.IsNaN(o.MaxCondition) || o.MaxCondition <= 1 {
		return calerr.Configf("solve.max_condition", "must be greater than 1, got %v", o.MaxCondition)
	}
	if o.MinRedundancy < 0 {
		return calerr.Configf("solve.min_redundancy", "must be non-negative, got %d", o.MinRedundancy)
	}
	if o.JointLimit < 0 {
		return calerr.Configf("solve.joint_limit", "must be non-negative, got %d", o.JointLimit)
	}
	return nil
}
