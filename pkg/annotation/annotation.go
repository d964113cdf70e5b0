// Package annotation reads and writes the single-line, normalized
// center-form label files that accompany positive samples:
//
//	<class_id> <x_center> <y_center> <width> <height>
//
// Every coordinate is a fraction of the canvas dimension with six decimals.
package annotation

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/menta2k/cardsynth/pkg/types"
)

// ErrMalformed is returned for label lines that don't follow the format
var ErrMalformed = errors.New("malformed annotation")

// Label is one parsed annotation record
type Label struct {
	ClassID int
	Box     types.Box
}

// Format renders the record for a pixel box on a w x h canvas
func Format(classID int, box types.PixelBox, w, h int) string {
	n := box.Normalize(w, h)
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f\n", classID, n.X, n.Y, n.W, n.H)
}

// Write persists the record for box to path, replacing any existing file
func Write(path string, classID int, box types.PixelBox, w, h int) error {
	if !box.Within(w, h) {
		return fmt.Errorf("box %+v outside %dx%d canvas", box, w, h)
	}
	if err := os.WriteFile(path, []byte(Format(classID, box, w, h)), 0644); err != nil {
		return fmt.Errorf("failed to write annotation: %w", err)
	}
	return nil
}

// Parse decodes one record
func Parse(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("%w: expected 5 fields, got %d", ErrMalformed, len(fields))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 0 {
		return Label{}, fmt.Errorf("%w: bad class id %q", ErrMalformed, fields[0])
	}
	var v [4]float64
	for i, f := range fields[1:] {
		v[i], err = strconv.ParseFloat(f, 64)
		if err != nil || v[i] < 0 || v[i] > 1 {
			return Label{}, fmt.Errorf("%w: bad coordinate %q", ErrMalformed, f)
		}
	}
	return Label{ClassID: id, Box: types.Box{X: v[0], Y: v[1], W: v[2], H: v[3]}}, nil
}

// ReadFile parses the single record stored at path
func ReadFile(path string) (Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Label{}, fmt.Errorf("failed to read annotation: %w", err)
	}
	return Parse(string(data))
}

// ToPixelBox converts the label back to pixel coordinates on a w x h canvas
func (l Label) ToPixelBox(w, h int) types.PixelBox {
	fw, fh := float64(w), float64(h)
	return types.PixelBox{
		XMin: int(math.Round((l.Box.X - l.Box.W/2) * fw)),
		YMin: int(math.Round((l.Box.Y - l.Box.H/2) * fh)),
		XMax: int(math.Round((l.Box.X + l.Box.W/2) * fw)),
		YMax: int(math.Round((l.Box.Y + l.Box.H/2) * fh)),
	}
}

// WriteClassNames writes one name per line so that line i names class id i
func WriteClassNames(path string, names []string) error {
	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write class names: %w", err)
	}
	return nil
}
