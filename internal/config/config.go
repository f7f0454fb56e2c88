// Package config loads calibration run settings from YAML or JSON files and
// ASTROCAL_* environment variables and resolves them into pipeline options.
//
// Every field is a pointer so that a key missing from the file can be told
// apart from an explicit zero; defaults are applied by Resolve.
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"astrocal/internal/calerr"
)

// DefaultPath is the config file read by the CLI when none is given.
const DefaultPath = "astrocal.yaml"

// Config is the root configuration document.
type Config struct {
	Grid      GridConfig      `yaml:"grid" json:"grid"`
	Centroid  CentroidConfig  `yaml:"centroid" json:"centroid"`
	Detection DetectionConfig `yaml:"detection" json:"detection"`
	Solve     SolveConfig     `yaml:"solve" json:"solve"`
	Workers   *int            `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// GridConfig describes the mask geometry.
type GridConfig struct {
	Type     *string       `yaml:"type,omitempty" json:"type,omitempty"`
	Pitch    *float64      `yaml:"pitch,omitempty" json:"pitch,omitempty"`
	Rotation *float64      `yaml:"rotation,omitempty" json:"rotation,omitempty"`
	Offset   *OffsetConfig `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// OffsetConfig is the lattice origin relative to the image centre.
type OffsetConfig struct {
	X *float64 `yaml:"x,omitempty" json:"x,omitempty"`
	Y *float64 `yaml:"y,omitempty" json:"y,omitempty"`
}

// CentroidConfig holds the centroid tunables.
type CentroidConfig struct {
	Radius        *float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	FluxThreshold *float64 `yaml:"flux_threshold,omitempty" json:"flux_threshold,omitempty"`
	Background    *string  `yaml:"background,omitempty" json:"background,omitempty"`
	AllowPartial  *bool    `yaml:"allow_partial,omitempty" json:"allow_partial,omitempty"`
}

// DetectionConfig controls how failed detections are handled.
type DetectionConfig struct {
	MaxFailureFraction    *float64 `yaml:"max_failure_fraction,omitempty" json:"max_failure_fraction,omitempty"`
	RequireCompleteTracks *bool    `yaml:"require_complete_tracks,omitempty" json:"require_complete_tracks,omitempty"`
}

// SolveConfig holds the solver tunables.
type SolveConfig struct {
	Degree        *int     `yaml:"degree,omitempty" json:"degree,omitempty"`
	Gauge         *string  `yaml:"gauge,omitempty" json:"gauge,omitempty"`
	Method        *string  `yaml:"method,omitempty" json:"method,omitempty"`
	MaxCondition  *float64 `yaml:"max_condition,omitempty" json:"max_condition,omitempty"`
	MinRedundancy *int     `yaml:"min_redundancy,omitempty" json:"min_redundancy,omitempty"`
	JointLimit    *int     `yaml:"joint_limit,omitempty" json:"joint_limit,omitempty"`
}

// Load reads a config file. The format follows the extension: .yaml/.yml
// or .json. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read config %s", path)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, &calerr.ConfigError{Field: path, Reason: err.Error()}
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, &calerr.ConfigError{Field: path, Reason: err.Error()}
		}
	default:
		return nil, calerr.Configf(path, "unsupported config format %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
	return cfg, nil
}

// LoadOptional reads path when it exists and returns an empty config
// otherwise.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	return Load(path)
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
