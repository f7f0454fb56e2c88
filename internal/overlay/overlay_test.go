package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrocal/internal/exposure"
	"astrocal/pkg/geometry"
)

func TestStretch(t *testing.T) {
	f, err := exposure.NewFrame(4, 1, []float64{10, 20, 30, 40}, geometry.Point2D{})
	require.NoError(t, err)

	out := Stretch(f, 0, 1)
	assert.Equal(t, []byte{0, 85, 170, 255}, out)

	flat, err := exposure.NewFrame(2, 1, []float64{5, 5}, geometry.Point2D{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, Stretch(flat, 0, 1))
}

func TestSave(t *testing.T) {
	spots := []exposure.Spot{{Pos: geometry.Point2D{X: 20, Y: 20}, Flux: 5e4, Sigma: 1.5}}
	f := exposure.Synthesize(48, 40, spots, 100, geometry.Point2D{})
	marks := []Mark{
		{Search: geometry.Point2D{X: 20.5, Y: 19.5}, Centroid: geometry.Point2D{X: 20, Y: 20}, Valid: true},
		{Search: geometry.Point2D{X: 40, Y: 30}},
	}

	img, err := Render(f, marks, DefaultStyle(6))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Rows())
	assert.Equal(t, 48, img.Cols())
	assert.Equal(t, 3, img.Channels())
	img.Close()

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, Save(path, f, marks, DefaultStyle(6)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
