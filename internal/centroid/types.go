// Package centroid estimates sub-pixel positions of point sources.
package centroid

import (
	"astrocal/pkg/geometry"
)

// Image is the read-only pixel access the engine needs. exposure.Frame
// satisfies it.
type Image interface {
	Size() (width, height int)
	At(x, y int) float64
}

// Reason explains why a centroid is invalid.
type Reason int

const (
	// ReasonNone marks a valid detection.
	ReasonNone Reason = iota
	// ReasonBelowThreshold means the window flux is under the threshold.
	ReasonBelowThreshold
	// ReasonOutOfBounds means the window does not overlap the image.
	ReasonOutOfBounds
	// ReasonPartialWindow means part of the window falls outside the image.
	ReasonPartialWindow
	// ReasonEmptyWindow means no pixel centre lies within the radius.
	ReasonEmptyWindow
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonBelowThreshold:
		return "flux below threshold"
	case ReasonOutOfBounds:
		return "window outside image"
	case ReasonPartialWindow:
		return "window crosses image edge"
	case ReasonEmptyWindow:
		return "empty window"
	default:
		return "unknown"
	}
}

// Centroid is the result of one measurement.
type Centroid struct {
	Pos        geometry.Point2D `json:"pos"`        // flux-weighted first moment
	Flux       float64          `json:"flux"`       // background-subtracted, clipped sum
	Background float64          `json:"background"` // per-pixel level that was subtracted
	Pixels     int              `json:"pixels"`     // in-bounds window pixels used
	Valid      bool             `json:"valid"`
	Reason     Reason           `json:"reason"`
}
