/*
	This file describes 2d planes within a 5d (x, y, z, c, t) dataset.
*/

package dvid

import (
	"fmt"
	"strconv"
	"strings"
)

// Orientation gives which two spatial axes span a plane.
type Orientation uint8

const (
	// XY describes a 2d rectangle of voxels that share a z-coord.
	XY Orientation = iota

	// ZY describes a 2d rectangle of voxels that share an x-coord.  The plane's
	// horizontal axis is z and its vertical axis is y.
	ZY

	// XZ describes a 2d rectangle of voxels that share a y-coord.  The plane's
	// horizontal axis is x and its vertical axis is z.
	XZ
)

func (o Orientation) String() string {
	switch o {
	case XY:
		return "xy"
	case ZY:
		return "zy"
	case XZ:
		return "xz"
	default:
		return fmt.Sprintf("Orientation(%d)", uint8(o))
	}
}

// ParseOrientation converts "xy", "zy" (or "yz"), and "xz" into an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "xy":
		return XY, nil
	case "zy", "yz":
		return ZY, nil
	case "xz":
		return XZ, nil
	}
	return XY, fmt.Errorf("unknown plane orientation %q", s)
}

// Dims gives the extents of a dataset along each of its five axes.
type Dims struct {
	X, Y, Z, C, T int
}

// ParseDims parses a string like "512,512,30,3,1" in x,y,z,c,t order.
func ParseDims(s, sep string) (Dims, error) {
	parts := strings.Split(s, sep)
	if len(parts) != 5 {
		return Dims{}, fmt.Errorf("dims %q must have 5 values in x%sy%sz%sc%st order", s, sep, sep, sep, sep)
	}
	var v [5]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Dims{}, fmt.Errorf("bad dimension %q in %q: %v", part, s, err)
		}
		v[i] = n
	}
	d := Dims{v[0], v[1], v[2], v[3], v[4]}
	return d, d.Check()
}

// Check returns an error if any dimension is not positive.
func (d Dims) Check() error {
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 || d.C <= 0 || d.T <= 0 {
		return fmt.Errorf("all dimensions must be positive: %s", d)
	}
	return nil
}

// PlanePixels returns the number of pixels in an XY plane.
func (d Dims) PlanePixels() int {
	return d.X * d.Y
}

func (d Dims) String() string {
	return fmt.Sprintf("%d x %d x %d, %d channels, %d timepoints", d.X, d.Y, d.Z, d.C, d.T)
}

// Rect is a rectangle within a plane, in plane pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseRect parses "x,y,width,height".
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("region %q must be given as x,y,width,height", s)
	}
	var v [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Rect{}, fmt.Errorf("bad region value %q: %v", part, err)
		}
		v[i] = n
	}
	return Rect{v[0], v[1], v[2], v[3]}, nil
}

// NumPixels returns width * height.
func (r Rect) NumPixels() int {
	return r.Width * r.Height
}

// Inside returns true if r lies entirely within a plane of the given size.
func (r Rect) Inside(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X < width && r.Y < height &&
		r.Width <= width-r.X && r.Height <= height-r.Y
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// PlaneDef selects a 2d plane within a dataset.  The orientation determines which
// of X, Y, or Z is the fixed index: Z for XY, X for ZY, and Y for XZ.  An optional
// Region restricts the plane to a sub-rectangle.  PlaneDef is an immutable value.
type PlaneDef struct {
	Orientation Orientation
	X, Y, Z, T  int
	Region      *Rect
}

// NewPlaneDef returns a PlaneDef with the fixed index for the orientation set to coord.
func NewPlaneDef(o Orientation, coord, t int) PlaneDef {
	pd := PlaneDef{Orientation: o, T: t}
	switch o {
	case XY:
		pd.Z = coord
	case ZY:
		pd.X = coord
	case XZ:
		pd.Y = coord
	}
	return pd
}

// WithRegion returns a copy of the PlaneDef restricted to r.
func (pd PlaneDef) WithRegion(r Rect) PlaneDef {
	pd.Region = &r
	return pd
}

// Coord returns the fixed spatial index of the plane.
func (pd PlaneDef) Coord() int {
	switch pd.Orientation {
	case ZY:
		return pd.X
	case XZ:
		return pd.Y
	default:
		return pd.Z
	}
}

// Extent returns the width and height of the full plane in a dataset of dims d.
func (pd PlaneDef) Extent(d Dims) (width, height int) {
	switch pd.Orientation {
	case ZY:
		return d.Z, d.Y
	case XZ:
		return d.X, d.Z
	default:
		return d.X, d.Y
	}
}

// Bounds checks the plane against dataset dims and returns the rectangle of the plane
// to render: the region if given, otherwise the full plane.  An out-of-range fixed
// index returns a *PlaneNotFoundError and a malformed region a *ConfigError.
func (pd PlaneDef) Bounds(d Dims) (Rect, error) {
	var coord, limit int
	switch pd.Orientation {
	case XY:
		coord, limit = pd.Z, d.Z
	case ZY:
		coord, limit = pd.X, d.X
	case XZ:
		coord, limit = pd.Y, d.Y
	default:
		return Rect{}, NewConfigError("bad plane orientation %s", pd.Orientation)
	}
	if coord < 0 || coord >= limit {
		return Rect{}, &PlaneNotFoundError{Channel: -1, Plane: pd,
			Reason: fmt.Sprintf("fixed index %d outside [0,%d)", coord, limit)}
	}
	if pd.T < 0 || pd.T >= d.T {
		return Rect{}, &PlaneNotFoundError{Channel: -1, Plane: pd,
			Reason: fmt.Sprintf("timepoint %d outside [0,%d)", pd.T, d.T)}
	}
	width, height := pd.Extent(d)
	if pd.Region == nil {
		return Rect{0, 0, width, height}, nil
	}
	if !pd.Region.Inside(width, height) {
		return Rect{}, NewConfigError("region %s does not lie within %d x %d plane", pd.Region, width, height)
	}
	return *pd.Region, nil
}

func (pd PlaneDef) String() string {
	s := fmt.Sprintf("%s plane %d @ t=%d", pd.Orientation, pd.Coord(), pd.T)
	if pd.Region != nil {
		s += fmt.Sprintf(", region %s", pd.Region)
	}
	return s
}
