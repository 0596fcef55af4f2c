/*
	Package storage provides the raw plane sources read by the renderer.

	Sources keep each channel of a dataset as XY planes indexed by (channel, z, t).
	Planes of other orientations are assembled from those XY planes on demand, reading
	only the planes and rows a request's region needs.  Values are raw little-endian
	samples of the dataset's pixel type; serialization and compression happen inside
	each engine.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/janelia-flyem/planerender/dvid"
)

// ErrDatasetNotFound is returned when a store has no dataset with a requested name.
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	Name      string        `json:"name"`
	UUID      string        `json:"uuid"`
	Dims      dvid.Dims     `json:"dims"`
	PixelType dvid.DataType `json:"pixelType"`
	Created   time.Time     `json:"created"`
}

// Check returns an error if the dataset description can't be stored.
func (info DatasetInfo) Check() error {
	if info.Name == "" {
		return fmt.Errorf("dataset requires a name")
	}
	if err := info.Dims.Check(); err != nil {
		return fmt.Errorf("dataset %q: %v", info.Name, err)
	}
	if !info.PixelType.Valid() {
		return fmt.Errorf("dataset %q has invalid pixel type %s", info.Name, info.PixelType)
	}
	return nil
}

// PlaneBytes returns the number of bytes in a full XY plane of the dataset.
func (info DatasetInfo) PlaneBytes() int {
	return info.Dims.PlanePixels() * info.PixelType.Bytes()
}

func (info DatasetInfo) String() string {
	return fmt.Sprintf("dataset %q (%s, %s)", info.Name, info.Dims, info.PixelType)
}

// Dataset is a source of raw planes for one dataset.  It satisfies the renderer's
// RawPlaneSource interface.
type Dataset interface {
	Info() DatasetInfo
	Extents(ctx context.Context) (dvid.Dims, error)
	Fetch(ctx context.Context, channel int, pd dvid.PlaneDef) (dvid.DataType, []byte, error)
}

// Store holds named datasets.
type Store interface {
	// Datasets returns the descriptions of all stored datasets sorted by name.
	Datasets() ([]DatasetInfo, error)

	// Dataset returns a source for the named dataset or ErrDatasetNotFound.
	Dataset(name string) (Dataset, error)

	Close()
}
