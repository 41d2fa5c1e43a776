/*
Package qrsheet renders a set of links as a single printable SVG sheet of QR
codes. Codes are laid out row by row, left to right.
*/
package qrsheet

import (
	"fmt"
	"io"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/iov-one/weave/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// Sheet describes the layout of rendered codes.
type Sheet struct {
	// Columns is the number of codes in a single row.
	Columns int
	// CellSize is the width and height in pixels of a single code,
	// including its quiet zone.
	CellSize int
	// Padding is the width of the quiet zone, in modules.
	Padding int
	// Level is the error correction level of each code.
	Level qrcode.RecoveryLevel
}

// DefaultSheet returns an 8 columns layout of 200px medium error correction
// codes.
func DefaultSheet() *Sheet {
	return &Sheet{
		Columns:  8,
		CellSize: 200,
		Padding:  4,
		Level:    qrcode.Medium,
	}
}

// Validate returns an error if the layout cannot be rendered.
func (s *Sheet) Validate() error {
	var err error
	if s.Columns <= 0 {
		err = errors.AppendField(err, "Columns", errors.ErrInput)
	}
	if s.CellSize <= 0 {
		err = errors.AppendField(err, "CellSize", errors.ErrInput)
	}
	if s.Padding < 0 {
		err = errors.AppendField(err, "Padding", errors.ErrInput)
	}
	return err
}

// Render writes an SVG document with one code for each of given contents.
func (s *Sheet) Render(w io.Writer, contents []string) error {
	if err := s.Validate(); err != nil {
		return errors.Wrap(err, "sheet")
	}
	if len(contents) == 0 {
		return errors.Wrap(errors.ErrEmpty, "nothing to render")
	}

	paths := make([]string, len(contents))
	for i, c := range contents {
		p, err := s.path(c)
		if err != nil {
			return errors.Wrapf(err, "code #%d", i)
		}
		paths[i] = p
	}

	cols := s.Columns
	if len(contents) < cols {
		cols = len(contents)
	}
	rows := (len(contents) + s.Columns - 1) / s.Columns
	width, height := cols*s.CellSize, rows*s.CellSize

	canvas := svg.New(w)
	canvas.Start(width, height, fmt.Sprintf(`viewBox="0 0 %d %d"`, width, height))
	canvas.Rect(0, 0, width, height, `fill="white"`, `stroke="none"`)
	canvas.Gstyle("fill:#000000;shape-rendering:crispEdges")
	for i, p := range paths {
		x := s.CellSize * (i % s.Columns)
		y := s.CellSize * (i / s.Columns)
		canvas.Path(p, fmt.Sprintf(`transform="translate(%d,%d)"`, x, y))
	}
	canvas.Gend()
	canvas.End()
	return nil
}

// path returns the outline of all dark modules of a single code, scaled to
// the cell size. Horizontal runs of dark modules are joined.
func (s *Sheet) path(content string) (string, error) {
	code, err := qrcode.New(content, s.Level)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInput, "qr code: %s", err)
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()

	modules := len(bitmap) + 2*s.Padding
	unit := float64(s.CellSize) / float64(modules)

	var b strings.Builder
	for y, row := range bitmap {
		for x := 0; x < len(row); x++ {
			if !row[x] {
				continue
			}
			start := x
			for x < len(row) && row[x] {
				x++
			}
			fmt.Fprintf(&b, "M%s %sh%sv%sh-%sz",
				num(float64(start+s.Padding)*unit),
				num(float64(y+s.Padding)*unit),
				num(float64(x-start)*unit),
				num(unit),
				num(float64(x-start)*unit))
		}
	}
	return b.String(), nil
}

// num formats a coordinate with at most two decimal places.
func num(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
