package storage

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/planerender/dvid"
)

// PlaneGetter returns the full XY plane of a channel at (z, t).  A nil plane with a
// nil error means no data was stored for it.
type PlaneGetter func(ctx context.Context, c, z, t int) ([]byte, error)

// ExtractPlane assembles the plane pd of channel c, clipped to its region, from the
// XY planes returned by get.  Only the XY planes intersecting the requested region
// are read.
func ExtractPlane(ctx context.Context, info DatasetInfo, c int, pd dvid.PlaneDef, get PlaneGetter) ([]byte, error) {
	dims := info.Dims
	rect, err := pd.Bounds(dims)
	if err != nil {
		if pnf, ok := err.(*dvid.PlaneNotFoundError); ok {
			pnf.Channel = c
		}
		return nil, err
	}
	if c < 0 || c >= dims.C {
		return nil, &dvid.PlaneNotFoundError{Channel: c, Plane: pd,
			Reason: fmt.Sprintf("channel %d outside [0,%d)", c, dims.C)}
	}

	bytesPerVoxel := info.PixelType.Bytes()
	xyRowBytes := dims.X * bytesPerVoxel
	rowBytes := rect.Width * bytesPerVoxel
	out := make([]byte, rect.NumPixels()*bytesPerVoxel)

	getXY := func(z int) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plane, err := get(ctx, c, z, pd.T)
		if err != nil {
			return nil, err
		}
		if plane == nil {
			return nil, &dvid.PlaneNotFoundError{Channel: c, Plane: pd,
				Reason: fmt.Sprintf("no data stored for z %d", z)}
		}
		if len(plane) != info.PlaneBytes() {
			return nil, fmt.Errorf("stored XY plane (c %d, z %d, t %d) has %d bytes, expected %d",
				c, z, pd.T, len(plane), info.PlaneBytes())
		}
		return plane, nil
	}

	switch pd.Orientation {
	case dvid.XY:
		plane, err := getXY(pd.Z)
		if err != nil {
			return nil, err
		}
		for row := 0; row < rect.Height; row++ {
			src := (rect.Y+row)*xyRowBytes + rect.X*bytesPerVoxel
			copy(out[row*rowBytes:(row+1)*rowBytes], plane[src:src+rowBytes])
		}

	case dvid.ZY:
		// Each column of the output comes from a different XY plane.
		for col := 0; col < rect.Width; col++ {
			plane, err := getXY(rect.X + col)
			if err != nil {
				return nil, err
			}
			for row := 0; row < rect.Height; row++ {
				src := (rect.Y+row)*xyRowBytes + pd.X*bytesPerVoxel
				dst := (row*rect.Width + col) * bytesPerVoxel
				copy(out[dst:dst+bytesPerVoxel], plane[src:src+bytesPerVoxel])
			}
		}

	case dvid.XZ:
		// Each row of the output is a row of a different XY plane.
		for row := 0; row < rect.Height; row++ {
			plane, err := getXY(rect.Y + row)
			if err != nil {
				return nil, err
			}
			src := pd.Y*xyRowBytes + rect.X*bytesPerVoxel
			copy(out[row*rowBytes:(row+1)*rowBytes], plane[src:src+rowBytes])
		}

	default:
		return nil, dvid.NewConfigError("bad plane orientation %s", pd.Orientation)
	}
	return out, nil
}
