package exposure

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"astrocal/pkg/geometry"

	_ "golang.org/x/image/tiff"
)

// ShiftRecord is the mask-shift metadata stored next to a frame, either as
// a sidecar file or as a manifest entry.
type ShiftRecord struct {
	Path   string   `json:"path,omitempty" yaml:"path,omitempty"`
	XShift *float64 `json:"xshift" yaml:"xshift"`
	YShift *float64 `json:"yshift" yaml:"yshift"`
}

// Shift converts the record, failing on missing fields.
func (r ShiftRecord) Shift(source string) (geometry.Point2D, error) {
	if r.XShift == nil {
		return geometry.Point2D{}, fmt.Errorf("missing xshift in %s", source)
	}
	if r.YShift == nil {
		return geometry.Point2D{}, fmt.Errorf("missing yshift in %s", source)
	}
	return geometry.Point2D{X: *r.XShift, Y: *r.YShift}, nil
}

// Manifest lists frames and their shifts.
type Manifest struct {
	Frames []ShiftRecord `json:"frames" yaml:"frames"`
}

// sidecarExts are tried in order when looking for a frame's shift file.
var sidecarExts = []string{".yaml", ".yml", ".json"}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsManifest reports whether path names a YAML or JSON manifest.
func IsManifest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Decode reads an image file without shift metadata.
func Decode(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open frame %s", path)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to decode frame %s", path)
	}

	frame := FromImage(img, geometry.Point2D{})
	frame.Path = path
	return frame, nil
}

// Load reads a frame and its sidecar shift file (<name>.yaml, .yml or .json).
func Load(path string) (*Frame, error) {
	shift, err := LoadSidecar(path)
	if err != nil {
		return nil, err
	}
	frame, err := Decode(path)
	if err != nil {
		return nil, err
	}
	frame.Shift = shift
	return frame, nil
}

// LoadSidecar finds and parses the shift file belonging to a frame.
func LoadSidecar(framePath string) (geometry.Point2D, error) {
	base := strings.TrimSuffix(framePath, filepath.Ext(framePath))
	for _, ext := range sidecarExts {
		candidate := base + ext
		data, err := os.ReadFile(candidate)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return geometry.Point2D{}, pkgerrors.Wrapf(err, "failed to read sidecar %s", candidate)
		}
		var rec ShiftRecord
		if err := unmarshal(candidate, data, &rec); err != nil {
			return geometry.Point2D{}, pkgerrors.Wrapf(err, "failed to parse sidecar %s", candidate)
		}
		return rec.Shift(candidate)
	}
	return geometry.Point2D{}, fmt.Errorf("no shift sidecar for %s (tried %s)", framePath, strings.Join(sidecarExts, ", "))
}

// LoadGlob loads every supported image matching pattern, in lexical order,
// decoding files in parallel.
func LoadGlob(pattern string) ([]*Frame, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "bad pattern %q", pattern)
	}
	var paths []string
	for _, m := range matches {
		if IsSupportedFormat(m) {
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames match %q", pattern)
	}
	sort.Strings(paths)

	return loadAll(paths, nil)
}

// LoadManifest loads the frames listed in a manifest. Relative frame paths
// are resolved against the manifest's directory.
func LoadManifest(path string) ([]*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read manifest %s", path)
	}
	var m Manifest
	if err := unmarshal(path, data, &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse manifest %s", path)
	}
	if len(m.Frames) == 0 {
		return nil, fmt.Errorf("manifest %s lists no frames", path)
	}

	dir := filepath.Dir(path)
	paths := make([]string, len(m.Frames))
	shifts := make([]geometry.Point2D, len(m.Frames))
	for i, rec := range m.Frames {
		if rec.Path == "" {
			return nil, fmt.Errorf("manifest %s: frame %d has no path", path, i)
		}
		shift, err := rec.Shift(fmt.Sprintf("manifest %s frame %d", path, i))
		if err != nil {
			return nil, err
		}
		p := rec.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		paths[i] = p
		shifts[i] = shift
	}

	return loadAll(paths, shifts)
}

// loadAll decodes paths concurrently. With shifts nil, each frame's sidecar
// supplies its shift.
func loadAll(paths []string, shifts []geometry.Point2D) ([]*Frame, error) {
	frames := make([]*Frame, len(paths))
	errs := make([]error, len(paths))

	numWorkers := runtime.NumCPU()
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if shifts == nil {
					frames[i], errs[i] = Load(paths[i])
					continue
				}
				frames[i], errs[i] = Decode(paths[i])
				if errs[i] == nil {
					frames[i].Shift = shifts[i]
				}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// WritePNG writes the frame as a 16-bit PNG and, when withSidecar is set, a
// YAML sidecar carrying its shift.
func WritePNG(f *Frame, path string, withSidecar bool) error {
	out, err := os.Create(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create %s", path)
	}
	if err := png.Encode(out, f.ToGray16()); err != nil {
		out.Close()
		return pkgerrors.Wrapf(err, "failed to encode %s", path)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if !withSidecar {
		return nil
	}

	x, y := f.Shift.X, f.Shift.Y
	data, err := yaml.Marshal(ShiftRecord{XShift: &x, YShift: &y})
	if err != nil {
		return err
	}
	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".yaml"
	return os.WriteFile(sidecar, data, 0644)
}

func unmarshal(path string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}
