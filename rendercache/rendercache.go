/*
	Package rendercache caches the images produced by renderers.

	Images are keyed by the dataset, plane definition, and every binding
	setting that affects output, so a changed window or color misses the cache.  The
	wrapped renderer itself stays stateless.  Concurrent requests for the same key
	share a single render.  Images larger than 1/1024 of the cache are rendered but
	not cached.
*/
package rendercache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coocood/freecache"
	"github.com/golang/groupcache/singleflight"

	"github.com/janelia-flyem/planerender/dvid"
	"github.com/janelia-flyem/planerender/render"
)

// Renderer renders planes with a set of channel bindings.
type Renderer interface {
	Render(ctx context.Context, pd dvid.PlaneDef, bindings []render.ChannelBinding) (*render.Image, error)
}

// Stats reports cache usage.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Shared  int64 `json:"shared"`
	Entries int64 `json:"entries"`
	Evicted int64 `json:"evicted"`
}

// Cache is a caching decorator for Renderers.  One cache can serve renderers of many
// datasets since the dataset ID is part of every key.
type Cache struct {
	cache  *freecache.Cache
	expire int // seconds, 0 is no expiration
	group  singleflight.Group

	shared int64
}

// New returns a cache of ~mb megabytes.  If mb is zero, no images are stored and
// only concurrent identical requests are collapsed.  Entries expire after the given
// duration, or never if zero.
func New(mb int, expire time.Duration) *Cache {
	c := &Cache{expire: int(expire / time.Second)}
	if mb > 0 {
		c.cache = freecache.NewCache(mb * dvid.Mega)
		dvid.Infof("Created freecache of ~ %d MB for rendered images.\n", mb)
	}
	return c
}

// Key returns the encoding of a render request that identifies its cached image.
func Key(datasetID string, pd dvid.PlaneDef, bindings []render.ChannelBinding) []byte {
	buf := make([]byte, 0, 256)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(datasetID)))
	buf = append(buf, datasetID...)
	buf = append(buf, byte(pd.Orientation))
	for _, v := range []int{pd.X, pd.Y, pd.Z, pd.T} {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
	}
	if pd.Region != nil {
		buf = append(buf, 'R')
		for _, v := range []int{pd.Region.X, pd.Region.Y, pd.Region.Width, pd.Region.Height} {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		}
	}
	for _, b := range bindings {
		buf = b.AppendKey(buf)
	}
	return buf
}

// hashKey returns the freecache key for a request key.  Cached values hold the full
// request key so a hash collision is a miss.
func hashKey(key []byte) []byte {
	return binary.LittleEndian.AppendUint64(nil, xxhash.Sum64(key))
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %v", dvid.ErrCancelled, context.Cause(ctx))
}

type result struct {
	img    *render.Image
	err    error
	leader bool
}

// Render returns the cached image for the request, rendering it with r on a miss.
// The datasetID must identify everything about r that changes its output, e.g., its
// source and rendering model.  Every caller gets its own copy of the image.  A caller
// returns as soon as its own ctx is done, and a shared render cancelled by another
// caller is retried for callers whose ctx is still live.
func (c *Cache) Render(ctx context.Context, r Renderer, datasetID string, pd dvid.PlaneDef, bindings []render.ChannelBinding) (*render.Image, error) {
	key := Key(datasetID, pd, bindings)
	img, err := c.lookup(key)
	if err != nil || img != nil {
		return img, err
	}

	for {
		ch := make(chan result, 1)
		go func() {
			var res result
			v, err := c.group.Do(string(key), func() (interface{}, error) {
				res.leader = true
				// A render for this key may have finished since the lookup above.
				if img, err := c.lookup(key); err != nil || img != nil {
					return img, err
				}
				img, err := r.Render(ctx, pd, bindings)
				if err != nil {
					return nil, err
				}
				c.store(key, img)
				return img, nil
			})
			if err == nil {
				res.img = v.(*render.Image)
			}
			res.err = err
			ch <- res
		}()

		var res result
		select {
		case <-ctx.Done():
			return nil, cancelled(ctx)
		case res = <-ch:
		}
		if res.err != nil {
			if errors.Is(res.err, dvid.ErrCancelled) && !res.leader && ctx.Err() == nil {
				dvid.Debugf("Shared render of %s cancelled by another caller, retrying\n", pd)
				continue
			}
			return nil, res.err
		}
		if !res.leader {
			atomic.AddInt64(&c.shared, 1)
		}
		return res.img.Clone(), nil
	}
}

// lookup returns the cached image for key or nil if there is none.
func (c *Cache) lookup(key []byte) (*render.Image, error) {
	if c.cache == nil {
		return nil, nil
	}
	hk := hashKey(key)
	value, err := c.cache.Get(hk)
	if err != nil && err != freecache.ErrNotFound {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	stored, value, err := splitValue(value)
	if err != nil {
		dvid.Errorf("unable to decode cached image: %v\n", err)
		c.cache.Del(hk)
		return nil, nil
	}
	if !bytes.Equal(stored, key) {
		return nil, nil
	}
	img, err := decodeImage(value)
	if err != nil {
		dvid.Errorf("unable to decode cached image: %v\n", err)
		c.cache.Del(hk)
		return nil, nil
	}
	return img, nil
}

func (c *Cache) store(key []byte, img *render.Image) {
	if c.cache == nil {
		return
	}
	encoded, err := encodeImage(img)
	if err != nil {
		dvid.Errorf("unable to encode rendered image for cache: %v\n", err)
		return
	}
	value := make([]byte, 0, 4+len(key)+len(encoded))
	value = binary.LittleEndian.AppendUint32(value, uint32(len(key)))
	value = append(value, key...)
	value = append(value, encoded...)
	if err := c.cache.Set(hashKey(key), value, c.expire); err != nil {
		if err == freecache.ErrLargeEntry {
			dvid.Debugf("Not caching %d x %d image of %d bytes\n", img.Width, img.Height, len(value))
			return
		}
		dvid.Errorf("unable to cache rendered image: %v\n", err)
	}
}

// splitValue separates the request key from the encoded image of a cached value.
func splitValue(value []byte) (key, encoded []byte, err error) {
	if len(value) < 4 {
		return nil, nil, fmt.Errorf("cached value has only %d bytes", len(value))
	}
	n := int(binary.LittleEndian.Uint32(value[0:4]))
	if n > len(value)-4 {
		return nil, nil, fmt.Errorf("cached value has %d bytes, too short for %d byte key", len(value), n)
	}
	return value[4 : 4+n], value[4+n:], nil
}

// Stats returns counts of cache use.
func (c *Cache) Stats() Stats {
	s := Stats{Shared: atomic.LoadInt64(&c.shared)}
	if c.cache != nil {
		s.Hits = c.cache.HitCount()
		s.Misses = c.cache.MissCount()
		s.Entries = c.cache.EntryCount()
		s.Evicted = c.cache.EvacuateCount()
	}
	return s
}

// Clear drops all cached images.
func (c *Cache) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// encodeImage packs the image size ahead of its snappy-compressed pixels.
func encodeImage(img *render.Image) ([]byte, error) {
	pix, err := dvid.SerializeData(img.Pix, dvid.Snappy, dvid.NoChecksum)
	if err != nil {
		return nil, err
	}
	value := make([]byte, 8, 8+len(pix))
	binary.LittleEndian.PutUint32(value[0:4], uint32(img.Width))
	binary.LittleEndian.PutUint32(value[4:8], uint32(img.Height))
	return append(value, pix...), nil
}

func decodeImage(value []byte) (*render.Image, error) {
	if len(value) < 8 {
		return nil, fmt.Errorf("cached image has only %d bytes", len(value))
	}
	width := int(binary.LittleEndian.Uint32(value[0:4]))
	height := int(binary.LittleEndian.Uint32(value[4:8]))
	pix, _, err := dvid.DeserializeData(value[8:], true)
	if err != nil {
		return nil, err
	}
	if len(pix) != 4*width*height {
		return nil, fmt.Errorf("cached %d x %d image has %d bytes", width, height, len(pix))
	}
	return &render.Image{Width: width, Height: height, Pix: pix}, nil
}
