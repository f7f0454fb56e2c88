package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"astrocal/internal/calerr"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASTROCAL_"

// DotEnvPath is the env file read when none is named.
const DotEnvPath = ".env"

// LoadDotEnv loads variables from the given env files, or ./.env when none
// are named. Only a missing default file is ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(DotEnvPath); os.IsNotExist(err) {
			return nil
		}
		files = []string{DotEnvPath}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			return calerr.Configf(f, "failed to load env file: %v", err)
		}
	}
	return nil
}

// ApplyEnvironment overrides config values from the process environment.
func (c *Config) ApplyEnvironment() error {
	return c.ApplyEnv(os.LookupEnv)
}

// ApplyEnv overrides config values from ASTROCAL_* variables returned by
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("GRID_TYPE", &c.Grid.Type)
	e.float("GRID_PITCH", &c.Grid.Pitch)
	e.float("GRID_ROTATION", &c.Grid.Rotation)
	_, hasX := lookup(EnvPrefix + "GRID_OFFSET_X")
	_, hasY := lookup(EnvPrefix + "GRID_OFFSET_Y")
	if (hasX || hasY) && c.Grid.Offset == nil {
		c.Grid.Offset = &OffsetConfig{}
	}
	if c.Grid.Offset != nil {
		e.float("GRID_OFFSET_X", &c.Grid.Offset.X)
		e.float("GRID_OFFSET_Y", &c.Grid.Offset.Y)
	}

	e.float("RADIUS", &c.Centroid.Radius)
	e.float("FLUX_THRESHOLD", &c.Centroid.FluxThreshold)
	e.str("BACKGROUND", &c.Centroid.Background)
	e.bool("ALLOW_PARTIAL", &c.Centroid.AllowPartial)

	e.float("MAX_FAILURE_FRACTION", &c.Detection.MaxFailureFraction)
	e.bool("REQUIRE_COMPLETE_TRACKS", &c.Detection.RequireCompleteTracks)

	e.int("DEGREE", &c.Solve.Degree)
	e.str("GAUGE", &c.Solve.Gauge)
	e.str("METHOD", &c.Solve.Method)
	e.float("MAX_CONDITION", &c.Solve.MaxCondition)
	e.int("MIN_REDUNDANCY", &c.Solve.MinRedundancy)
	e.int("JOINT_LIMIT", &c.Solve.JointLimit)

	e.int("WORKERS", &c.Workers)

	return e.err
}

// envReader parses variables and keeps the first error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	return e.lookup(EnvPrefix + name)
}

func (e *envReader) str(name string, dst **string) {
	if v, ok := e.get(name); ok {
		*dst = &v
	}
}

func (e *envReader) float(name string, dst **float64) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = calerr.Configf(EnvPrefix+name, "not a number: %q", v)
		return
	}
	*dst = &f
}

func (e *envReader) int(name string, dst **int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = calerr.Configf(EnvPrefix+name, "not an integer: %q", v)
		return
	}
	*dst = &n
}

func (e *envReader) bool(name string, dst **bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = calerr.Configf(EnvPrefix+name, "not a boolean: %q", v)
		return
	}
	*dst = &b
}
