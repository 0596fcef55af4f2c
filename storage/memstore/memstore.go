// Package memstore keeps raw datasets in memory.  It is used for tests and for
// rendering small volumes without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/twinj/uuid"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/storage"
)

type planeKey struct {
	c, z, t int
}

// Volume is an in-memory dataset.
type Volume struct {
	info storage.DatasetInfo

	mu     sync.RWMutex
	planes map[planeKey][]byte
}

// New returns an empty volume.  Planes are added with Put.
func New(name string, dims dvid.Dims, dt dvid.DataType) (*Volume, error) {
	info := storage.DatasetInfo{
		Name:      name,
		UUID:      uuid.NewV4().String(),
		Dims:      dims,
		PixelType: dt,
		Created:   time.Now(),
	}
	if err := info.Check(); err != nil {
		return nil, err
	}
	return &Volume{
		info:   info,
		planes: make(map[planeKey][]byte),
	}, nil
}

// Put stores the XY plane of channel c at (z, t).  The data is not copied.
func (v *Volume) Put(c, z, t int, raw []byte) error {
	d := v.info.Dims
	if c < 0 || c >= d.C || z < 0 || z >= d.Z || t < 0 || t >= d.T {
		return fmt.Errorf("plane (c %d, z %d, t %d) outside %s", c, z, t, d)
	}
	if len(raw) != v.info.PlaneBytes() {
		return fmt.Errorf("XY plane for %s must have %d bytes, got %d", v.info, v.info.PlaneBytes(), len(raw))
	}
	v.mu.Lock()
	v.planes[planeKey{c, z, t}] = raw
	v.mu.Unlock()
	return nil
}

// Info returns the description of the volume.
func (v *Volume) Info() storage.DatasetInfo {
	return v.info
}

// Extents returns the dimensions of the volume.
func (v *Volume) Extents(ctx context.Context) (dvid.Dims, error) {
	return v.info.Dims, nil
}

// Fetch returns the requested plane of a channel.
func (v *Volume) Fetch(ctx context.Context, channel int, pd dvid.PlaneDef) (dvid.DataType, []byte, error) {
	data, err := storage.ExtractPlane(ctx, v.info, channel, pd, v.get)
	if err != nil {
		return 0, nil, err
	}
	return v.info.PixelType, data, nil
}

func (v *Volume) get(ctx context.Context, c, z, t int) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.planes[planeKey{c, z, t}], nil
}

// Bytes returns the approximate memory held by the volume.
func (v *Volume) Bytes() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return size.Of(v.planes)
}

// Store is a set of in-memory volumes.
type Store struct {
	mu      sync.RWMutex
	volumes map[string]*Volume
}

// NewStore returns a store holding the given volumes.
func NewStore(volumes ...*Volume) *Store {
	s := &Store{volumes: make(map[string]*Volume, len(volumes))}
	for _, v := range volumes {
		s.Add(v)
	}
	return s
}

// Add puts a volume into the store, replacing any volume with the same name.
func (s *Store) Add(v *Volume) {
	s.mu.Lock()
	s.volumes[v.info.Name] = v
	s.mu.Unlock()
	dvid.Debugf("Added in-memory %s\n", v.info)
}

// Datasets returns the descriptions of all volumes sorted by name.
func (s *Store) Datasets() ([]storage.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]storage.DatasetInfo, 0, len(s.volumes))
	for _, v := range s.volumes {
		infos = append(infos, v.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Dataset returns the named volume.
func (s *Store) Dataset(name string) (storage.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, found := s.volumes[name]
	if !found {
		return nil, fmt.Errorf("%w: %q", storage.ErrDatasetNotFound, name)
	}
	return v, nil
}

// Close drops all volumes.
func (s *Store) Close() {
	s.mu.Lock()
	s.volumes = make(map[string]*Volume)
	s.mu.Unlock()
}
