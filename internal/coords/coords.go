// Package coords reads query coordinate lists and writes evaluated
// displacement rows.
//
// The input holds one "x,y" pair per line. A trailing comma, blank lines
// and lines starting with '#' are accepted.
package coords

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"astrocal/internal/distortion"
	"astrocal/pkg/geometry"
)

// ParseError reports a malformed line.
type ParseError struct {
	Source string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
}

// Parse reads coordinates from r. source names the input in errors.
func Parse(r io.Reader, source string) ([]geometry.Point2D, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var points []geometry.Point2D
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{Source: source, Line: perr.StartLine, Reason: perr.Err.Error()}
			}
			return nil, pkgerrors.Wrapf(err, "failed to read %s", source)
		}

		line, _ := cr.FieldPos(0)
		p, reason := parseRecord(rec)
		if reason != "" {
			return nil, &ParseError{Source: source, Line: line, Reason: reason}
		}
		points = append(points, p)
	}
}

func parseRecord(rec []string) (geometry.Point2D, string) {
	if len(rec) == 3 && strings.TrimSpace(rec[2]) == "" {
		rec = rec[:2]
	}
	switch {
	case len(rec) < 2:
		return geometry.Point2D{}, "missing y-ordinate"
	case len(rec) > 2:
		return geometry.Point2D{}, fmt.Sprintf("expected 2 values, got %d", len(rec))
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil {
		return geometry.Point2D{}, fmt.Sprintf("failed to parse x-ordinate: %q", rec[0])
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return geometry.Point2D{}, fmt.Sprintf("failed to parse y-ordinate: %q", rec[1])
	}
	p := geometry.Point2D{X: x, Y: y}
	if !p.IsFinite() {
		return geometry.Point2D{}, "coordinate is not finite"
	}
	return p, ""
}

// LoadFile reads a coordinate file.
func LoadFile(path string) ([]geometry.Point2D, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open coordinates %s", path)
	}
	defer f.Close()
	return Parse(f, path)
}

// FormatRow renders one displacement as "x,y,dx,dy".
func FormatRow(d distortion.Displacement) string {
	return fmt.Sprintf("%s,%s,%s,%s", formatFloat(d.X), formatFloat(d.Y), formatFloat(d.DX), formatFloat(d.DY))
}

// WriteRows writes one row per displacement, in order.
func WriteRows(w io.Writer, rows []distortion.Displacement) error {
	for _, d := range rows {
		if _, err := fmt.Fprintln(w, FormatRow(d)); err != nil {
			return err
		}
	}
	return nil
}

// WriteCoefficients writes the model as a table: a header line with the
// degree and normalisation, then "xpow,ypow,cx,cy" per term.
func WriteCoefficients(w io.Writer, m *distortion.Model) error {
	b := m.Basis
	if _, err := fmt.Fprintf(w, "# degree=%d center=%s,%s scale=%s\n",
		b.Degree, formatFloat(b.Center.X), formatFloat(b.Center.Y), formatFloat(b.Scale)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "# xpow,ypow,cx,cy"); err != nil {
		return err
	}
	for _, c := range m.Coefficients() {
		if _, err := fmt.Fprintf(w, "%d,%d,%s,%s\n", c.Term.XPow, c.Term.YPow, formatFloat(c.X), formatFloat(c.Y)); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
