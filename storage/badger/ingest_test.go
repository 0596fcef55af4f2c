package badger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/storage"
)

func TestIngest(t *testing.T) {
	s, err := OpenInMemory(dvid.Snappy)
	if err != nil {
		t.Fatalf("can't open in-memory store: %v\n", err)
	}
	defer s.Close()

	// Stream ordered t, c, z with each plane filled by its index in the stream.
	info := testInfo()
	info.PixelType = dvid.T_uint8
	d := info.Dims
	var raw bytes.Buffer
	for i := 0; i < d.T*d.C*d.Z; i++ {
		raw.Write(bytes.Repeat([]byte{byte(i)}, d.PlanePixels()))
	}
	info, err = s.Ingest(context.Background(), info, &raw)
	if err != nil {
		t.Fatalf("can't ingest: %v\n", err)
	}

	ds, err := s.Dataset(info.Name)
	if err != nil {
		t.Fatalf("can't get ingested dataset: %v\n", err)
	}
	// channel 1, z 2, t 1 is stream plane (1*C + 1)*Z + 2 = 11
	_, data, err := ds.Fetch(context.Background(), 1, dvid.NewPlaneDef(dvid.XY, 2, 1))
	if err != nil {
		t.Fatalf("can't fetch ingested plane: %v\n", err)
	}
	for i, v := range data {
		if v != 11 {
			t.Fatalf("pixel %d: expected 11, got %d\n", i, v)
		}
	}
}

func TestIngestShortStream(t *testing.T) {
	s, err := OpenInMemory(dvid.Uncompressed)
	if err != nil {
		t.Fatalf("can't open in-memory store: %v\n", err)
	}
	defer s.Close()

	info := testInfo()
	if _, err := s.Ingest(context.Background(), info, bytes.NewReader(make([]byte, info.PlaneBytes()*3+1))); err == nil {
		t.Errorf("expected error ingesting truncated stream\n")
	}
	if _, err := s.DatasetInfo(info.Name); !errors.Is(err, storage.ErrDatasetNotFound) {
		t.Errorf("expected no dataset after failed ingest, got %v\n", err)
	}
	if infos, err := s.Datasets(); err != nil || len(infos) != 0 {
		t.Errorf("expected empty store after failed ingest, got %v, %v\n", infos, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Ingest(ctx, info, bytes.NewReader(make([]byte, info.PlaneBytes()*info.Dims.C*info.Dims.Z*info.Dims.T))); err == nil {
		t.Errorf("expected error ingesting with cancelled context\n")
	}
}

func hasPlane(t *testing.T, s *Store, name string, c, z, tp int) bool {
	var found bool
	err := s.bdp.View(func(txn *badger.Txn) error {
		_, err := txn.Get(planeKey(name, c, z, tp))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		t.Fatalf("can't look up plane: %v\n", err)
	}
	return found
}

func TestReingest(t *testing.T) {
	s, err := OpenInMemory(dvid.Snappy)
	if err != nil {
		t.Fatalf("can't open in-memory store: %v\n", err)
	}
	defer s.Close()

	info := testInfo()
	info.PixelType = dvid.T_uint8
	d := info.Dims
	n := d.T * d.C * d.Z * d.PlanePixels()
	if _, err := s.Ingest(context.Background(), info, bytes.NewReader(bytes.Repeat([]byte{9}, n))); err != nil {
		t.Fatalf("can't ingest: %v\n", err)
	}

	// A failed re-ingest removes the old dataset rather than mixing old and new planes.
	if _, err := s.Ingest(context.Background(), info, bytes.NewReader(make([]byte, n/2))); err == nil {
		t.Fatalf("expected error ingesting truncated stream\n")
	}
	if _, err := s.Dataset(info.Name); !errors.Is(err, storage.ErrDatasetNotFound) {
		t.Errorf("expected no dataset after failed re-ingest, got %v\n", err)
	}
	if hasPlane(t, s, info.Name, 1, 2, 1) {
		t.Errorf("expected plane from first ingest to be gone\n")
	}

	// A smaller re-ingest leaves no planes beyond its own extents.
	small := info
	small.Dims.T = 1
	if _, err := s.Ingest(context.Background(), small, bytes.NewReader(make([]byte, n/2))); err != nil {
		t.Fatalf("can't re-ingest: %v\n", err)
	}
	if hasPlane(t, s, info.Name, 0, 0, 1) {
		t.Errorf("expected plane at t 1 from first ingest to be gone\n")
	}
	if !hasPlane(t, s, info.Name, 1, 2, 0) {
		t.Errorf("expected plane at t 0 from re-ingest\n")
	}
}
