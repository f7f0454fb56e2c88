// Package calerr defines the error taxonomy shared by the calibration
// packages. Every concrete type matches one of the sentinel errors through
// errors.Is, and carries the fields needed to diagnose a failed run without
// re-running it.
package calerr

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks.
var (
	ErrConfig           = errors.New("configuration error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDetection        = errors.New("detection failure")
	ErrDegenerate       = errors.New("numerically degenerate system")
)

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Configf builds a ConfigError with a formatted reason.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataError reports a solve that has fewer valid observations
// than unknowns plus the required redundancy.
type InsufficientDataError struct {
	Have   int // valid observations
	Need   int // unknowns + redundancy
	Degree int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d valid observations, need at least %d for degree %d",
		e.Have, e.Need, e.Degree)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DetectionError records a (frame, lattice point) pair without a valid
// centroid. It is collected by the pipeline rather than returned.
type DetectionError struct {
	Exposure int
	I, J     int
	Reason   string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("no detection in exposure %d at lattice (%d,%d): %s",
		e.Exposure, e.I, e.J, e.Reason)
}

func (e *DetectionError) Is(target error) bool { return target == ErrDetection }

// DetectionToleranceError is returned when the share of failed detections
// exceeds the caller's tolerance.
type DetectionToleranceError struct {
	Failed    int
	Total     int
	Tolerance float64
}

func (e *DetectionToleranceError) Error() string {
	frac := 0.0
	if e.Total > 0 {
		frac = float64(e.Failed) / float64(e.Total)
	}
	return fmt.Sprintf("%d of %d detections failed (%.1f%%), tolerance is %.1f%%",
		e.Failed, e.Total, 100*frac, 100*e.Tolerance)
}

func (e *DetectionToleranceError) Is(target error) bool { return target == ErrDetection }

// DegeneracyError reports a (near-)singular design matrix.
type DegeneracyError struct {
	Cond    float64 // condition number, +Inf when exactly singular
	MaxCond float64
	Detail  string
}

func (e *DegeneracyError) Error() string {
	msg := fmt.Sprintf("degenerate system: condition number %.3g exceeds %.3g", e.Cond, e.MaxCond)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *DegeneracyError) Is(target error) bool { return target == ErrDegenerate }
