package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrocal/internal/calerr"
	"astrocal/internal/centroid"
	"astrocal/internal/grid"
	"astrocal/internal/pipeline"
	"astrocal/internal/solver"
	"astrocal/pkg/geometry"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// hexGrid returns a complete grid section.
func hexGrid(pitch float64) GridConfig {
	return GridConfig{
		Type:     Ptr("hex"),
		Pitch:    Ptr(pitch),
		Rotation: Ptr(0.0),
		Offset:   &OffsetConfig{X: Ptr(0.0), Y: Ptr(0.0)},
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "astrocal.yaml", `
grid:
  type: hex
  pitch: 42.5
  rotation: 0.01
  offset: {x: 1.5, y: -2}
centroid:
  radius: 8
  flux_threshold: 5000
  background: border-median
detection:
  max_failure_fraction: 0.2
  require_complete_tracks: true
solve:
  degree: 4
  gauge: mean-correction
  method: eliminated
workers: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	g, opts, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, grid.NewHex(42.5, 0.01, geometry.Point2D{X: 1.5, Y: -2}), g)

	assert.Equal(t, 8.0, opts.Centroid.Radius)
	assert.Equal(t, 5000.0, opts.Centroid.FluxThreshold)
	assert.Equal(t, centroid.BorderMedian{}, opts.Centroid.Background)
	assert.Equal(t, 0.2, opts.MaxFailureFraction)
	assert.True(t, opts.RequireCompleteTracks)
	assert.Equal(t, 4, opts.Degree)
	assert.Equal(t, solver.GaugeMeanCorrection, opts.Solve.Gauge)
	assert.Equal(t, solver.MethodEliminated, opts.Solve.Method)
	assert.Equal(t, 3, opts.Workers)
}

func TestLoad_JSONUsesDefaults(t *testing.T) {
	path := writeFile(t, "astrocal.json", `{"grid": {"type": "hex", "pitch": 30, "rotation": 0, "offset": {"x": 0, "y": 0}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	g, opts, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, grid.NewHex(30, 0, geometry.Point2D{}), g)

	def := pipeline.DefaultOptions()
	assert.Equal(t, def.Degree, opts.Degree)
	assert.Equal(t, def.Centroid, opts.Centroid)
	assert.Equal(t, def.Solve, opts.Solve)
	assert.Equal(t, 1.0, opts.MaxFailureFraction)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown yaml key", "c.yaml", "grid:\n  pitch: 30\n  spacing: 2\n"},
		{"unknown json key", "c.json", `{"grid": {"pitch": 30}, "extra": 1}`},
		{"bad yaml", "c.yml", "grid: [\n"},
		{"unsupported extension", "c.toml", "pitch = 30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.True(t, errors.Is(err, calerr.ErrConfig), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "astrocal.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Grid.Pitch)
}

func TestResolve_NamesInvalidField(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing type", Config{}, "grid.type"},
		{"missing pitch", Config{Grid: GridConfig{Type: Ptr("hex")}}, "grid.pitch"},
		{"missing rotation", Config{Grid: GridConfig{Type: Ptr("hex"), Pitch: Ptr(10.0)}}, "grid.rotation"},
		{"missing offset", Config{Grid: GridConfig{Type: Ptr("hex"), Pitch: Ptr(10.0), Rotation: Ptr(0.0)}}, "grid.offset"},
		{"missing offset x", Config{Grid: GridConfig{Type: Ptr("hex"), Pitch: Ptr(10.0), Rotation: Ptr(0.0), Offset: &OffsetConfig{Y: Ptr(1.0)}}}, "grid.offset.x"},
		{"missing offset y", Config{Grid: GridConfig{Type: Ptr("hex"), Pitch: Ptr(10.0), Rotation: Ptr(0.0), Offset: &OffsetConfig{X: Ptr(1.0)}}}, "grid.offset.y"},
		{"negative pitch", Config{Grid: hexGrid(-1)}, "grid.pitch"},
		{"unknown type", Config{Grid: GridConfig{Type: Ptr("square"), Pitch: Ptr(10.0)}}, "grid.type"},
		{"zero radius", Config{Grid: hexGrid(10), Centroid: CentroidConfig{Radius: Ptr(0.0)}}, "centroid.radius"},
		{"negative threshold", Config{Grid: hexGrid(10), Centroid: CentroidConfig{FluxThreshold: Ptr(-1.0)}}, "centroid.flux_threshold"},
		{"bad background", Config{Grid: hexGrid(10), Centroid: CentroidConfig{Background: Ptr("mean")}}, "centroid.background"},
		{"negative degree", Config{Grid: hexGrid(10), Solve: SolveConfig{Degree: Ptr(-2)}}, "solve.degree"},
		{"bad gauge", Config{Grid: hexGrid(10), Solve: SolveConfig{Gauge: Ptr("anchor")}}, "solve.gauge"},
		{"bad fraction", Config{Grid: hexGrid(10), Detection: DetectionConfig{MaxFailureFraction: Ptr(1.5)}}, "detection.max_failure_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var cfgErr *calerr.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ASTROCAL_GRID_PITCH":              "55",
		"ASTROCAL_GRID_OFFSET_Y":           "3.5",
		"ASTROCAL_DEGREE":                  "2",
		"ASTROCAL_BACKGROUND":              "constant:120",
		"ASTROCAL_REQUIRE_COMPLETE_TRACKS": "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &Config{Grid: hexGrid(30), Solve: SolveConfig{Degree: Ptr(5)}}
	require.NoError(t, cfg.ApplyEnv(lookup))

	g, opts, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 55.0, g.Hex.Pitch)
	assert.Equal(t, geometry.Point2D{X: 0, Y: 3.5}, g.Hex.Offset)
	assert.Equal(t, 2, opts.Degree)
	assert.Equal(t, centroid.Constant{Level: 120}, opts.Centroid.Background)
	assert.True(t, opts.RequireCompleteTracks)
}

func TestGeometry_PartialGridIsRejected(t *testing.T) {
	path := writeFile(t, "astrocal.yaml", "grid:\n  pitch: 30\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Geometry()
	var cfgErr *calerr.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "grid.type", cfgErr.Field)
}

func TestApplyEnv_CompletesGrid(t *testing.T) {
	env := map[string]string{
		"ASTROCAL_GRID_TYPE":     "hex",
		"ASTROCAL_GRID_PITCH":    "30",
		"ASTROCAL_GRID_ROTATION": "0.1",
		"ASTROCAL_GRID_OFFSET_X": "1",
		"ASTROCAL_GRID_OFFSET_Y": "2",
	}
	cfg := &Config{}
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	g, err := cfg.Geometry()
	require.NoError(t, err)
	assert.Equal(t, grid.NewHex(30, 0.1, geometry.Point2D{X: 1, Y: 2}), g)
}

func TestApplyEnv_BadValue(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "ASTROCAL_WORKERS" {
			return "many", true
		}
		return "", false
	}
	err := (&Config{}).ApplyEnv(lookup)
	var cfgErr *calerr.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ASTROCAL_WORKERS", cfgErr.Field)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ASTROCAL_RADIUS=6.5\n")
	t.Setenv("ASTROCAL_RADIUS", "")
	os.Unsetenv("ASTROCAL_RADIUS")

	require.NoError(t, LoadDotEnv(path))
	cfg := &Config{Grid: hexGrid(20)}
	require.NoError(t, cfg.ApplyEnvironment())

	_, opts, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 6.5, opts.Centroid.Radius)
}

func TestLoadDotEnv_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	err := LoadDotEnv(missing)
	var cfgErr *calerr.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, missing, cfgErr.Field)

	malformed := writeFile(t, "bad.env", "ASTROCAL_RADIUS='6.5\n")
	assert.ErrorIs(t, LoadDotEnv(malformed), calerr.ErrConfig)
}

func TestLoadDotEnv_MissingDefaultIgnored(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	assert.NoError(t, LoadDotEnv())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := &Config{
		Grid:  GridConfig{Type: Ptr("hex"), Pitch: Ptr(25.0), Rotation: Ptr(0.2), Offset: &OffsetConfig{X: Ptr(1.0), Y: Ptr(-1.0)}},
		Solve: SolveConfig{Degree: Ptr(3), Method: Ptr("joint")},
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
