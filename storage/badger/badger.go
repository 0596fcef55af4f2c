/*
	Package badger stores raw datasets in a Badger key-value database.

	Dataset descriptions are stored as JSON under metadata keys.  Each XY plane of a
	channel is stored under a key built from the dataset name and the plane's
	(channel, t, z) indices, with values serialized through dvid.SerializeData so
	they are compressed and checksummed.
*/
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/storage"
)

const (
	metadataPrefix byte = 0x01
	planePrefix    byte = 0x02

	// syncInterval is how often buffered writes are synced to disk.
	syncInterval = 30 * time.Second
)

// badgerLogger routes Badger's own log messages through dvid logging.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { dvid.Errorf(format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { dvid.Warningf(format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { dvid.Debugf(format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { dvid.Debugf(format, args...) }

// Store is a Badger-backed set of datasets.
type Store struct {
	// Directory of datastore; empty for in-memory stores.
	directory string

	compression dvid.Compression
	bdp         *badger.DB

	// stopSyncCh is used to signal the sync goroutine to stop.
	stopSyncCh chan struct{}
}

// Open returns a store at path, creating a database if one doesn't exist.  Planes
// written through the store use the given compression.
func Open(path string, compression dvid.Compression) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("path must be specified for a badger store")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dvid.Infof("Database not already at path (%s). Creating directory...\n", path)
		if err := os.MkdirAll(path, 0744); err != nil {
			return nil, fmt.Errorf("can't make directory at %s: %v", path, err)
		}
	}
	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithSyncWrites(false).
		WithLogger(badgerLogger{})

	timedLog := dvid.NewTimeLog()
	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open badger @ %s: %v", path, err)
	}
	timedLog.Infof("Opened badger @ %s", path)

	s := &Store{
		directory:   path,
		compression: compression,
		bdp:         bdp,
		stopSyncCh:  make(chan struct{}),
	}
	go s.syncPeriodically()
	return s, nil
}

// OpenInMemory returns a store that keeps all data in memory.
func OpenInMemory(compression dvid.Compression) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{})
	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open in-memory badger: %v", err)
	}
	return &Store{compression: compression, bdp: bdp}, nil
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func (s *Store) syncPeriodically() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSyncCh:
			dvid.Infof("Stopping sync goroutine for badger @ %s\n", s.directory)
			return
		case <-ticker.C:
			if err := s.bdp.Sync(); err != nil {
				dvid.Errorf("Unable to sync badger @ %s: %v\n", s.directory, err)
			}
		}
	}
}

func (s *Store) String() string {
	if s.directory == "" {
		return "in-memory badger"
	}
	return fmt.Sprintf("badger @ %s", s.directory)
}

// Close closes the store.
func (s *Store) Close() {
	if s == nil || s.bdp == nil {
		return
	}
	if s.stopSyncCh != nil {
		close(s.stopSyncCh)
	}
	if err := s.bdp.Close(); err != nil {
		dvid.Errorf("Error closing %s: %v\n", s, err)
	} else {
		dvid.Infof("Closed %s\n", s)
	}
	s.bdp = nil
}

func metadataKey(name string) []byte {
	return append([]byte{metadataPrefix}, name...)
}

// planeKey orders planes by dataset, channel, time, then z.
func planeKey(name string, c, z, t int) []byte {
	key := make([]byte, 0, 3+len(name)+10)
	key = append(key, planePrefix)
	key = binary.BigEndian.AppendUint16(key, uint16(len(name)))
	key = append(key, name...)
	key = binary.BigEndian.AppendUint16(key, uint16(c))
	key = binary.BigEndian.AppendUint32(key, uint32(t))
	key = binary.BigEndian.AppendUint32(key, uint32(z))
	return key
}

// PutDataset stores a dataset description, replacing any with the same name.  A
// UUID and creation time are assigned if not already set.
func (s *Store) PutDataset(info storage.DatasetInfo) (storage.DatasetInfo, error) {
	info, err := prepareInfo(info)
	if err != nil {
		return info, err
	}
	value, err := json.Marshal(info)
	if err != nil {
		return info, err
	}
	err = s.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(metadataKey(info.Name), value)
	})
	if err != nil {
		return info, fmt.Errorf("can't store %s: %v", info, err)
	}
	dvid.Infof("Stored %s in %s\n", info, s)
	return info, nil
}

// prepareInfo checks a dataset description and assigns its UUID and creation time
// if not already set.
func prepareInfo(info storage.DatasetInfo) (storage.DatasetInfo, error) {
	if err := info.Check(); err != nil {
		return info, err
	}
	if info.Dims.C > 0xFFFF {
		return info, fmt.Errorf("dataset %q has %d channels, more than the %d supported", info.Name, info.Dims.C, 0xFFFF)
	}
	if info.UUID == "" {
		info.UUID = uuid.NewV4().String()
	}
	if info.Created.IsZero() {
		info.Created = time.Now()
	}
	return info, nil
}

// deleteDataset removes the description and every plane of the named dataset.
func (s *Store) deleteDataset(name string) error {
	prefix := planeKey(name, 0, 0, 0)[:3+len(name)]
	keys := [][]byte{metadataKey(name)}
	err := s.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	wb := s.bdp.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	dvid.Debugf("Deleted dataset %q with %d planes from %s\n", name, len(keys)-1, s)
	return nil
}

// DatasetInfo returns the description of the named dataset.
func (s *Store) DatasetInfo(name string) (storage.DatasetInfo, error) {
	var info storage.DatasetInfo
	var found bool
	err := s.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metadataKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &info)
		})
	})
	if err != nil {
		return info, err
	}
	if !found {
		return info, fmt.Errorf("%w: %q", storage.ErrDatasetNotFound, name)
	}
	return info, nil
}

// PutPlane stores the XY plane of channel c at (z, t) for the named dataset.
func (s *Store) PutPlane(name string, c, z, t int, raw []byte) error {
	info, err := s.DatasetInfo(name)
	if err != nil {
		return err
	}
	d := info.Dims
	if c < 0 || c >= d.C || z < 0 || z >= d.Z || t < 0 || t >= d.T {
		return fmt.Errorf("plane (c %d, z %d, t %d) outside %s", c, z, t, info)
	}
	if len(raw) != info.PlaneBytes() {
		return fmt.Errorf("XY plane for %s must have %d bytes, got %d", info, info.PlaneBytes(), len(raw))
	}
	value, err := dvid.SerializeData(raw, s.compression, dvid.CRC32)
	if err != nil {
		return err
	}
	return s.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(planeKey(name, c, z, t), value)
	})
}

// Datasets returns the descriptions of all stored datasets sorted by name.
func (s *Store) Datasets() ([]storage.DatasetInfo, error) {
	var infos []storage.DatasetInfo
	err := s.bdp.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{metadataPrefix}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var info storage.DatasetInfo
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &info)
			})
			if err != nil {
				return fmt.Errorf("bad metadata under key %q: %v", it.Item().Key(), err)
			}
			infos = append(infos, info)
		}
		return nil
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, err
}

// Dataset returns a raw plane source for the named dataset.
func (s *Store) Dataset(name string) (storage.Dataset, error) {
	info, err := s.DatasetInfo(name)
	if err != nil {
		return nil, err
	}
	return &dataset{s: s, info: info}, nil
}

// Usage returns the on-disk size of the LSM tree and value log.
func (s *Store) Usage() string {
	lsm, vlog := s.bdp.Size()
	return fmt.Sprintf("%s LSM, %s value log", humanize.Bytes(uint64(lsm)), humanize.Bytes(uint64(vlog)))
}

type dataset struct {
	s    *Store
	info storage.DatasetInfo
}

func (d *dataset) Info() storage.DatasetInfo {
	return d.info
}

func (d *dataset) Extents(ctx context.Context) (dvid.Dims, error) {
	return d.info.Dims, nil
}

func (d *dataset) Fetch(ctx context.Context, channel int, pd dvid.PlaneDef) (dvid.DataType, []byte, error) {
	data, err := storage.ExtractPlane(ctx, d.info, channel, pd, d.get)
	if err != nil {
		return 0, nil, err
	}
	return d.info.PixelType, data, nil
}

// get reads and deserializes a stored XY plane, returning nil if none was stored.
func (d *dataset) get(ctx context.Context, c, z, t int) ([]byte, error) {
	var value []byte
	err := d.s.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(planeKey(d.info.Name, c, z, t))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil || value == nil {
		return nil, err
	}
	data, _, err := dvid.DeserializeData(value, true)
	if err != nil {
		return nil, fmt.Errorf("plane (c %d, z %d, t %d) of %q: %v", c, z, t, d.info.Name, err)
	}
	return data, nil
}
