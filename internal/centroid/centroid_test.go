package centroid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrocal/internal/calerr"
	"astrocal/internal/exposure"
	"astrocal/pkg/geometry"
)

func spotFrame(pos geometry.Point2D, flux, background float64) *exposure.Frame {
	return exposure.Synthesize(64, 64, []exposure.Spot{{Pos: pos, Flux: flux, Sigma: 1.5}}, background, geometry.Point2D{})
}

func TestCompute_RecoversSubPixelCenter(t *testing.T) {
	truth := geometry.Point2D{X: 31.37, Y: 29.81}
	frame := spotFrame(truth, 1e5, 0)

	// Search from a nominal position that is off by a couple of pixels.
	c := Compute(frame, geometry.Point2D{X: 32, Y: 31}, DefaultParams().WithFluxThreshold(1000))

	require.True(t, c.Valid, "reason: %s", c.Reason)
	assert.Equal(t, ReasonNone, c.Reason)
	assert.InDelta(t, truth.X, c.Pos.X, 1e-3)
	assert.InDelta(t, truth.Y, c.Pos.Y, 1e-3)
	assert.InDelta(t, 1e5, c.Flux, 1)
	assert.Greater(t, c.Pixels, 300)
}

func TestCompute_BelowThreshold(t *testing.T) {
	frame := spotFrame(geometry.Point2D{X: 30, Y: 30}, 500, 0)

	c := Compute(frame, geometry.Point2D{X: 30, Y: 30}, DefaultParams().WithFluxThreshold(1000))
	assert.False(t, c.Valid)
	assert.Equal(t, ReasonBelowThreshold, c.Reason)
	assert.InDelta(t, 500, c.Flux, 1)
}

func TestCompute_FluxAtThresholdIsValid(t *testing.T) {
	frame := spotFrame(geometry.Point2D{X: 30, Y: 30}, 2000, 0)
	c := Compute(frame, geometry.Point2D{X: 30, Y: 30}, DefaultParams())
	threshold := c.Flux

	c = Compute(frame, geometry.Point2D{X: 30, Y: 30}, DefaultParams().WithFluxThreshold(threshold))
	assert.True(t, c.Valid)
}

func TestCompute_EmptyImageIsBelowThreshold(t *testing.T) {
	frame := exposure.Synthesize(32, 32, nil, 0, geometry.Point2D{})
	c := Compute(frame, geometry.Point2D{X: 16, Y: 16}, DefaultParams().WithFluxThreshold(0))
	assert.False(t, c.Valid)
	assert.Equal(t, ReasonBelowThreshold, c.Reason)
}

func TestCompute_WindowOutsideImage(t *testing.T) {
	frame := spotFrame(geometry.Point2D{X: 30, Y: 30}, 1e5, 0)

	c := Compute(frame, geometry.Point2D{X: -50, Y: -50}, DefaultParams())
	assert.False(t, c.Valid)
	assert.Equal(t, ReasonOutOfBounds, c.Reason)
	assert.Zero(t, c.Pixels)
}

func TestCompute_PartialWindow(t *testing.T) {
	frame := spotFrame(geometry.Point2D{X: 6, Y: 30}, 1e5, 0)
	params := DefaultParams().WithRadius(8).WithFluxThreshold(100)

	c := Compute(frame, geometry.Point2D{X: 6, Y: 30}, params)
	assert.False(t, c.Valid)
	assert.Equal(t, ReasonPartialWindow, c.Reason)

	params.AllowPartial = true
	c = Compute(frame, geometry.Point2D{X: 6, Y: 30}, params)
	require.True(t, c.Valid)
	// Out-of-bounds pixels are excluded, not zero-padded, so a spot whose
	// own light stays inside the image is still recovered.
	assert.InDelta(t, 6, c.Pos.X, 1e-3)
	assert.InDelta(t, 30, c.Pos.Y, 1e-3)
}

func TestCompute_BackgroundStrategies(t *testing.T) {
	truth := geometry.Point2D{X: 30.4, Y: 31.7}
	frame := spotFrame(truth, 1e5, 100)
	search := geometry.Point2D{X: 32, Y: 32}

	// Without a background model the pedestal drags the centroid toward the
	// window centre.
	raw := Compute(frame, search, DefaultParams())
	require.True(t, raw.Valid)
	assert.Greater(t, raw.Pos.Distance(truth), 0.01)

	med := Compute(frame, search, DefaultParams().WithBackground(BorderMedian{}))
	require.True(t, med.Valid)
	assert.InDelta(t, 100, med.Background, 1e-3)
	assert.InDelta(t, truth.X, med.Pos.X, 1e-3)
	assert.InDelta(t, truth.Y, med.Pos.Y, 1e-3)

	konst := Compute(frame, search, DefaultParams().WithBackground(Constant{Level: 100}))
	require.True(t, konst.Valid)
	assert.InDelta(t, truth.X, konst.Pos.X, 1e-3)
	assert.InDelta(t, truth.Y, konst.Pos.Y, 1e-3)
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	for name, p := range map[string]Params{
		"zero radius":        DefaultParams().WithRadius(0),
		"negative threshold": DefaultParams().WithFluxThreshold(-1),
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(), calerr.ErrConfig)
		})
	}
}

func TestParseBackground(t *testing.T) {
	bg, err := ParseBackground("")
	require.NoError(t, err)
	assert.Equal(t, "none", bg.Name())

	bg, err = ParseBackground("Border-Median")
	require.NoError(t, err)
	assert.Equal(t, BorderMedian{}, bg)

	bg, err = ParseBackground("constant:12.5")
	require.NoError(t, err)
	assert.Equal(t, Constant{Level: 12.5}, bg)

	_, err = ParseBackground("constant:abc")
	assert.ErrorIs(t, err, calerr.ErrConfig)
	_, err = ParseBackground("sigma-clip")
	assert.ErrorIs(t, err, calerr.ErrConfig)
}

func TestBorderMedian_OddCount(t *testing.T) {
	assert.Equal(t, 3.0, BorderMedian{}.Estimate([]float64{9, 1, 3, 2, 7}))
	assert.Equal(t, 2.0, BorderMedian{}.Estimate([]float64{3, 1, 2}))
	assert.Equal(t, 5.0, BorderMedian{}.Estimate([]float64{5}))
	assert.Equal(t, 0.0, BorderMedian{}.Estimate(nil))
}

func TestBorderMedian_EvenCount(t *testing.T) {
	assert.Equal(t, 2.5, BorderMedian{}.Estimate([]float64{4, 1, 3, 2}))
	assert.Equal(t, 6.0, BorderMedian{}.Estimate([]float64{8, 4}))

	border := []float64{10, 30, 20, 40}
	BorderMedian{}.Estimate(border)
	assert.Equal(t, []float64{10, 30, 20, 40}, border, "input must not be reordered")
}
