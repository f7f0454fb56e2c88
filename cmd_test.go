package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrocal/internal/distortion"
	"astrocal/internal/exposure"
	"astrocal/internal/grid"
	"astrocal/pkg/geometry"
)

// writeCalibrationSet renders shifted frames with sidecars and a config.
func writeCalibrationSet(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	const width, height = 200, 160
	geom := grid.NewHex(30, 0.05, geometry.Point2D{})
	lattice, err := geom.Generate(grid.FieldCenter(width, height), width, height)
	require.NoError(t, err)

	basis, err := distortion.FieldBasis(2, width, height)
	require.NoError(t, err)
	truth, err := distortion.NewModel(basis,
		[]float64{0, 0.4, -0.6, 0.3, -0.2, 0.25},
		[]float64{0, 0.5, 0.2, -0.15, 0.35, -0.1})
	require.NoError(t, err)

	shifts := []geometry.Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4}, {X: -3, Y: 3}, {X: 3, Y: -2}}
	for j, shift := range shifts {
		var spots []exposure.Spot
		for _, pt := range lattice {
			pos := pt.Shifted(shift)
			spots = append(spots, exposure.Spot{Pos: pos.Add(truth.Evaluate(pos)), Flux: 2e4, Sigma: 1.2})
		}
		f := exposure.Synthesize(width, height, spots, 0, shift)
		require.NoError(t, exposure.WritePNG(f, filepath.Join(dir, fmt.Sprintf("frame%02d.png", j)), true))
	}

	cfgPath = filepath.Join(dir, "astrocal.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
grid:
  type: hex
  pitch: 30
  rotation: 0.05
  offset: {x: 0, y: 0}
centroid:
  radius: 8
  flux_threshold: 1000
solve:
  degree: 2
`), 0644))
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func parseRows(t *testing.T, out string) [][]float64 {
	t.Helper()
	var rows [][]float64
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ",")
		require.Len(t, fields, 4, "line %q", line)
		row := make([]float64, 4)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			require.NoError(t, err)
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows
}

func TestRunAndEval(t *testing.T) {
	dir, cfgPath := writeCalibrationSet(t)
	coordsPath := filepath.Join(dir, "coords.txt")
	require.NoError(t, os.WriteFile(coordsPath, []byte("0,0\n0,2000,\n2000,0\n2000,2000\n"), 0644))
	modelPath := filepath.Join(dir, "model.json")

	out, err := execute(t, "run", filepath.Join(dir, "*.png"), coordsPath,
		"--config", cfgPath, "--save", modelPath, "--log-level", "warn")
	require.NoError(t, err)

	rows := parseRows(t, out)
	require.Len(t, rows, 4)
	want := [][2]float64{{0, 0}, {0, 2000}, {2000, 0}, {2000, 2000}}
	for i, row := range rows {
		assert.Equal(t, want[i][0], row[0])
		assert.Equal(t, want[i][1], row[1])
	}

	f, err := distortion.LoadFile(modelPath)
	require.NoError(t, err)
	require.NotNil(t, f.Quality)
	assert.Equal(t, 5, f.Quality.Exposures)
	assert.Len(t, f.Frames, 5)
	assert.Equal(t, "frame00.png", f.Frames[0])
	assert.Equal(t, 200, f.Width)
	assert.Equal(t, 160, f.Height)

	evalOut, err := execute(t, "eval", modelPath, coordsPath)
	require.NoError(t, err)
	assert.Equal(t, out, evalOut)
}

func TestPlotUsesRecordedFrameSize(t *testing.T) {
	dir, cfgPath := writeCalibrationSet(t)
	modelPath := filepath.Join(dir, "model.json")
	_, err := execute(t, "run", filepath.Join(dir, "*.png"), "--config", cfgPath,
		"--save", modelPath, "--log-level", "error")
	require.NoError(t, err)

	plotPath := filepath.Join(dir, "field.png")
	_, err = execute(t, "plot", modelPath, plotPath, "--log-level", "error")
	require.NoError(t, err)
	assert.FileExists(t, plotPath)

	f, err := distortion.LoadFile(modelPath)
	require.NoError(t, err)
	f.Width, f.Height = 0, 0
	require.NoError(t, f.Save(modelPath))
	_, err = execute(t, "plot", modelPath, plotPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--width")

	_, err = execute(t, "plot", modelPath, plotPath, "--width", "200", "--height", "160", "--log-level", "error")
	require.NoError(t, err)
}

func TestRunPrintsCoefficientsWithoutCoordinates(t *testing.T) {
	dir, cfgPath := writeCalibrationSet(t)

	out, err := execute(t, "run", filepath.Join(dir, "*.png"), "--config", cfgPath, "--degree", "1", "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# degree=1 "), out)
	assert.Equal(t, 2+distortion.NumTerms(1), strings.Count(out, "\n"))
}

func TestRunRejectsBadConfig(t *testing.T) {
	dir, _ := writeCalibrationSet(t)
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("grid:\n  type: hex\n"), 0644))

	_, err := execute(t, "run", filepath.Join(dir, "*.png"), "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.pitch")

	require.NoError(t, os.WriteFile(cfgPath, []byte("grid:\n  type: hex\n  pitch: 30\n  rotation: 0\n"), 0644))
	_, err = execute(t, "run", filepath.Join(dir, "*.png"), "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.offset")
}

func TestVersionCommand(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "astrocal ")
}
