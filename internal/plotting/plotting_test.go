package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrocal/internal/distortion"
	"astrocal/pkg/geometry"
)

func testModel(t *testing.T) *distortion.Model {
	t.Helper()
	b, err := distortion.FieldBasis(1, 400, 300)
	require.NoError(t, err)
	m, err := distortion.NewModel(b, []float64{0, 0.5, 1}, []float64{0, -1, 0.25})
	require.NoError(t, err)
	return m
}

func TestGridPoints(t *testing.T) {
	pts := GridPoints(100, 50, 25)
	assert.Len(t, pts, 4*2)
	assert.Equal(t, geometry.Point2D{X: 12.5, Y: 12.5}, pts[0])
	assert.Equal(t, geometry.Point2D{X: 87.5, Y: 37.5}, pts[len(pts)-1])
}

func TestAutoScale(t *testing.T) {
	rows := []distortion.Displacement{{DX: 3, DY: 4}, {DX: 1}}
	assert.InDelta(t, 0.9*10/5.0, AutoScale(rows, 10), 1e-12)
	assert.Equal(t, 1.0, AutoScale(nil, 10))
}

func TestQuiverDataRange(t *testing.T) {
	q := NewQuiver([]distortion.Displacement{{X: 10, Y: 20, DX: 1, DY: -2}, {X: 0, Y: 5}}, 10)
	xmin, xmax, ymin, ymax := q.DataRange()
	assert.Equal(t, 0.0, xmin)
	assert.Equal(t, 20.0, xmax)
	assert.Equal(t, 0.0, ymin)
	assert.Equal(t, 20.0, ymax)
}

func TestSaveField(t *testing.T) {
	opts := DefaultOptions(400, 300)
	opts.Samples = []geometry.Point2D{{X: 100, Y: 100}, {X: 200, Y: 150}}
	path := filepath.Join(t.TempDir(), "field.png")

	require.NoError(t, SaveField(testModel(t), opts, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestFieldPlot_RejectsBadSize(t *testing.T) {
	_, err := FieldPlot(testModel(t), Options{Width: 0, Height: 10})
	assert.Error(t, err)
}
