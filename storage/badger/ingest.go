package badger

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/storage"
)

// Ingest stores a dataset read from a raw stream of little-endian XY planes.  Planes
// are ordered by time point, then channel, then z, so the stream is a sequence of
// C-major stacks.  Any existing dataset with the same name is replaced.  The dataset
// description is stored only after all planes are written, so a failed ingest leaves
// no dataset under the name.
func (s *Store) Ingest(ctx context.Context, info storage.DatasetInfo, r io.Reader) (storage.DatasetInfo, error) {
	timedLog := dvid.NewTimeLog()
	info, err := prepareInfo(info)
	if err != nil {
		return info, err
	}
	if err := s.deleteDataset(info.Name); err != nil {
		return info, fmt.Errorf("can't clear existing dataset %q: %v", info.Name, err)
	}

	wb := s.bdp.NewWriteBatch()
	defer wb.Cancel()

	d := info.Dims
	var total uint64
	for t := 0; t < d.T; t++ {
		for c := 0; c < d.C; c++ {
			for z := 0; z < d.Z; z++ {
				if err := ctx.Err(); err != nil {
					return info, err
				}
				plane := make([]byte, info.PlaneBytes())
				if _, err := io.ReadFull(r, plane); err != nil {
					return info, fmt.Errorf("can't read plane (c %d, z %d, t %d) of %s: %v", c, z, t, info, err)
				}
				value, err := dvid.SerializeData(plane, s.compression, dvid.CRC32)
				if err != nil {
					return info, err
				}
				if err := wb.Set(planeKey(info.Name, c, z, t), value); err != nil {
					return info, fmt.Errorf("can't store plane (c %d, z %d, t %d) of %s: %v", c, z, t, info, err)
				}
				total += uint64(len(plane))
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return info, fmt.Errorf("can't flush planes of %s: %v", info, err)
	}
	if info, err = s.PutDataset(info); err != nil {
		return info, err
	}
	timedLog.Infof("Ingested %s of raw planes into %s\n", humanize.Bytes(total), info)
	return info, nil
}
