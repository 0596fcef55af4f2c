/*
	This file handles color lookup tables that map a quantized intensity to a full
	RGB triple.  Binary tables are 768 bytes: 256 red values, then 256 green, then
	256 blue.  Text tables have 256 rows of 3 (r g b) or 4 (index r g b) columns,
	optionally preceded by a header line.
*/

package render

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/janelia-flyem/planerender/dvid"
)

const binaryLUTSize = 3 * 256

// ColorLUT maps each of the 256 intensities to a color.
type ColorLUT struct {
	Name    string
	R, G, B [256]uint8
}

// NewColorLUT returns a LUT from red, green, and blue tables of 256 entries each.
func NewColorLUT(name string, r, g, b []uint8) (*ColorLUT, error) {
	if len(r) != 256 || len(g) != 256 || len(b) != 256 {
		return nil, dvid.NewConfigError("color LUT %q must have 256 entries per component, got %d/%d/%d",
			name, len(r), len(g), len(b))
	}
	lut := &ColorLUT{Name: name}
	copy(lut.R[:], r)
	copy(lut.G[:], g)
	copy(lut.B[:], b)
	return lut, nil
}

// RampLUT returns the LUT equivalent to rendering with a single color, i.e., entry
// i is round(i * c / 255) per component.
func RampLUT(c RGB) *ColorLUT {
	lut := &ColorLUT{Name: c.String()}
	lut.R = colorRamp(c.R)
	lut.G = colorRamp(c.G)
	lut.B = colorRamp(c.B)
	return lut
}

// colorRamp returns round(i * c / 255) for all i.  Ties cannot occur since
// 2*i*c is even and 255 is odd.
func colorRamp(c uint8) (ramp [256]uint8) {
	for i := 0; i < 256; i++ {
		ramp[i] = uint8((i*int(c) + 127) / 255)
	}
	return
}

// Color returns the RGB triple for intensity v.
func (lut *ColorLUT) Color(v uint8) RGB {
	return RGB{lut.R[v], lut.G[v], lut.B[v]}
}

// ReadColorLUT reads a binary or text color LUT.
func ReadColorLUT(name string, r io.Reader) (*ColorLUT, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == binaryLUTSize && !isText(data) {
		return NewColorLUT(name, data[0:256], data[256:512], data[512:768])
	}
	return parseTextLUT(name, data)
}

// LoadColorLUT reads a color LUT file.  The LUT is named after the file's base name.
func LoadColorLUT(path string) (*ColorLUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadColorLUT(name, f)
}

func isText(data []byte) bool {
	for _, c := range data {
		switch {
		case c >= '0' && c <= '9', c == ' ', c == '\t', c == '\n', c == '\r', c == '.':
		default:
			return false
		}
	}
	return true
}

func parseTextLUT(name string, data []byte) (*ColorLUT, error) {
	var r, g, b []uint8
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
			if len(r) == 0 {
				continue // header
			}
			return nil, dvid.NewConfigError("color LUT %q line %d: non-numeric row %q", name, lineNum, scanner.Text())
		}
		switch len(fields) {
		case 3:
		case 4:
			fields = fields[1:]
		default:
			return nil, dvid.NewConfigError("color LUT %q line %d: expected 3 or 4 columns, got %d", name, lineNum, len(fields))
		}
		var rgb [3]uint8
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || v < 0 || v > 255 {
				return nil, dvid.NewConfigError("color LUT %q line %d: bad component %q", name, lineNum, f)
			}
			rgb[i] = uint8(v + 0.5)
		}
		r = append(r, rgb[0])
		g = append(g, rgb[1])
		b = append(b, rgb[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading color LUT %q: %v", name, err)
	}
	return NewColorLUT(name, r, g, b)
}
