package distortion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// FileVersion is the current model file format version.
const FileVersion = 1

// Quality summarises how well a model fits its calibration data.
type Quality struct {
	RMS          float64 `json:"rms"`
	RMSX         float64 `json:"rms_x"`
	RMSY         float64 `json:"rms_y"`
	MaxResidual  float64 `json:"max_residual"`
	Observations int     `json:"observations"`
	Pinholes     int     `json:"pinholes"`
	Exposures    int     `json:"exposures"`
	Condition    float64 `json:"condition"`
}

// File is a saved distortion model (.json).
type File struct {
	Version int       `json:"version"`
	RunID   string    `json:"run_id"`
	Created time.Time `json:"created"`

	// Calibration inputs (frame paths relative to the model file)
	Grid   string   `json:"grid,omitempty"`
	Frames []string `json:"frames,omitempty"`
	Width  int      `json:"width,omitempty"`  // frame columns the model was fitted on
	Height int      `json:"height,omitempty"` // frame rows

	Basis  Basis     `json:"basis"`
	Terms  []Term    `json:"terms"`
	CoeffX []float64 `json:"coeff_x"`
	CoeffY []float64 `json:"coeff_y"`

	Quality *Quality `json:"quality,omitempty"`
}

// NewFile wraps a model for saving with a fresh run ID.
func NewFile(m *Model, q *Quality) *File {
	return &File{
		Version: FileVersion,
		RunID:   uuid.NewString(),
		Created: time.Now().UTC(),
		Basis:   m.Basis,
		Terms:   m.Basis.Terms(),
		CoeffX:  append([]float64(nil), m.CoeffX...),
		CoeffY:  append([]float64(nil), m.CoeffY...),
		Quality: q,
	}
}

// SetFrames records the calibration frame paths relative to the model file.
func (f *File) SetFrames(modelPath string, framePaths []string) {
	f.Frames = make([]string, 0, len(framePaths))
	for _, p := range framePaths {
		rel, err := filepath.Rel(filepath.Dir(modelPath), p)
		if err != nil {
			rel = p
		}
		f.Frames = append(f.Frames, rel)
	}
}

// Model rebuilds the model, checking the stored term order.
func (f *File) Model() (*Model, error) {
	want := f.Basis.Terms()
	if len(f.Terms) != 0 {
		if len(f.Terms) != len(want) {
			return nil, fmt.Errorf("model file lists %d terms, degree %d needs %d", len(f.Terms), f.Basis.Degree, len(want))
		}
		for i := range want {
			if f.Terms[i] != want[i] {
				return nil, fmt.Errorf("model file term %d is %s, expected %s", i, f.Terms[i], want[i])
			}
		}
	}
	return NewModel(f.Basis, f.CoeffX, f.CoeffY)
}

// Save writes the file as indented JSON.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFile reads a model file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read model %s", path)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse model %s", path)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("model %s has version %d, expected %d", path, f.Version, FileVersion)
	}
	return &f, nil
}

// LoadModel reads a model file and rebuilds the model.
func LoadModel(path string) (*Model, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := f.Model()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid model %s", path)
	}
	return m, nil
}

// Save writes the model with an optional quality summary.
func (m *Model) Save(path string, q *Quality) error {
	return NewFile(m, q).Save(path)
}
